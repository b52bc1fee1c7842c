// Package archive builds, compresses and verifies dataset tar archives.
//
// An archive is a single tar stream whose first three entries are always the
// dataset's administrative metadata, its manifest and its README.yml, in that
// order. Payload entries follow. Because the manifest sits at a fixed
// position near the start of the stream, an archive can be identified and
// summarised by reading a few kilobytes, and individual payload files can be
// re-hashed without extracting anything to disk.
//
// Builder writes a dataset directory as such a tar. Compress gzips a finished
// tar and removes the original only after the compressed file is durable.
// Open reads either form back; Archive verifies payload files against the
// manifest hashes.
package archive
