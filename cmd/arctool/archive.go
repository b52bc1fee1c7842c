package main

import (
	"encoding/json"
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/meigma/arctool/archive"
	"github.com/meigma/arctool/dataset"
	"github.com/meigma/arctool/manifest"
)

func newManifestCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Manage dataset manifests",
		Args:  cobra.NoArgs,
	}

	var hashFunction string
	var workers int
	create := &cobra.Command{
		Use:   "create DATASET",
		Short: "Hash the payload and write the dataset manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, err := dataset.Open(args[0], dataset.WithLogger(a.logger))
			if err != nil {
				return err
			}
			m, err := ds.UpdateManifest(cmd.Context(),
				manifest.GenerateWithHashFunction(hashFunction),
				manifest.GenerateWithWorkers(workers))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Wrote %s (%d files, %s)\n", ds.ManifestPath(), m.Len(), units.HumanSize(float64(m.TotalSize())))
			return nil
		},
	}
	create.Flags().StringVar(&hashFunction, "hash", manifest.DefaultHashFunction, "hash function: sha1, sha256 or sha512")
	create.Flags().IntVar(&workers, "workers", 0, "files hashed concurrently (0 = number of CPUs)")
	cmd.AddCommand(create)
	return cmd
}

func newArchiveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Build, compress and describe dataset archives",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(
		newArchiveCreateCommand(a),
		newArchiveCompressCommand(a),
		newArchiveDecompressCommand(a),
		newArchiveDescribeCommand(a),
	)
	return cmd
}

func newArchiveCreateCommand(a *app) *cobra.Command {
	var output string
	var noOverwrite bool
	cmd := &cobra.Command{
		Use:   "create DATASET",
		Short: "Write the dataset as <output>/<name>.tar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := archive.NewBuilder(args[0],
				archive.BuildWithOverwrite(!noOverwrite),
				archive.BuildWithLogger(a.logger))
			if err != nil {
				return err
			}
			path, err := b.PersistToTar(cmd.Context(), output)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", ".", "directory to write the archive to")
	cmd.Flags().BoolVar(&noOverwrite, "no-overwrite", false, "fail if the archive already exists")
	return cmd
}

func newArchiveCompressCommand(a *app) *cobra.Command {
	var workers, level int
	cmd := &cobra.Command{
		Use:   "compress TAR",
		Short: "Gzip a tar archive and remove the original",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := archive.Compress(cmd.Context(), args[0],
				archive.CompressWithConcurrency(workers),
				archive.CompressWithLevel(level),
				archive.CompressWithLogger(a.logger))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, path)
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 1, "blocks compressed in parallel")
	cmd.Flags().IntVar(&level, "level", archive.DefaultCompression, "gzip level (-1 default, 1 fastest, 9 smallest)")
	return cmd
}

func newArchiveDecompressCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "decompress TAR.GZ",
		Short: "Expand a compressed archive back to a tar and remove the original",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := archive.Decompress(cmd.Context(), args[0], archive.CompressWithLogger(a.logger))
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, path)
			return nil
		},
	}
}

func newArchiveDescribeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe ARCHIVE",
		Short: "Print an OCI content descriptor for an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := archive.Describe(cmd.Context(), args[0], archive.OpenWithLogger(a.logger))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(desc)
		},
	}
}
