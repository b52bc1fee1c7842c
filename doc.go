// Package arctool packages research-data directories into self-describing,
// verifiable tar archives.
//
// A dataset directory holds administrative metadata, a manifest of payload
// files with their hashes, a README.yml of descriptive metadata, and the
// payload itself. This package provides a compact API over the [dataset],
// [manifest] and [archive] packages for the usual lifecycle:
//
//	if err := arctool.GenerateManifest(ctx, "./brassica_rnaseq_reads"); err != nil {
//	    return err
//	}
//	tarPath, err := arctool.BuildArchive(ctx, "./brassica_rnaseq_reads", "./out")
//	if err != nil {
//	    return err
//	}
//	gzPath, err := arctool.CompressArchive(ctx, tarPath)
//	if err != nil {
//	    return err
//	}
//
// Later, the archive is checked against its own manifest without extracting
// it:
//
//	a, err := arctool.OpenArchive(gzPath)
//	if err != nil {
//	    return err
//	}
//	defer a.Close()
//	ok := arctool.VerifyAll(ctx, a)
//
// # Archive layout
//
// The first three tar entries are always the administrative metadata, the
// manifest and README.yml, in that order. Readers rely on this to summarise
// an archive from its first few kilobytes.
//
// # Errors
//
// Failures wrap one of [ErrConfiguration], [ErrIO], [ErrNotFound] or
// [ErrFormat] and can be tested with errors.Is. A hash mismatch is not an
// error; verification reports it as false.
package arctool
