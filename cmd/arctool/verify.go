package main

import (
	"encoding/json"
	"fmt"

	"github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/meigma/arctool/archive"
)

func newVerifyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Inspect and verify archives",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(
		newVerifySummaryCommand(a),
		newVerifyAllCommand(a),
		newVerifyFileCommand(a),
	)
	return cmd
}

func (a *app) open(path string) (*archive.Archive, error) {
	return archive.Open(path, archive.OpenWithLogger(a.logger))
}

func newVerifySummaryCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "summary ARCHIVE",
		Short: "Summarise an archive from its manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			arc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer arc.Close()

			s := arc.Summarise()
			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			fmt.Fprintf(a.stdout, "name:          %s\n", s.Name)
			fmt.Fprintf(a.stdout, "uuid:          %s\n", s.UUID)
			fmt.Fprintf(a.stdout, "creator:       %s\n", s.CreatorUsername)
			fmt.Fprintf(a.stdout, "files:         %d\n", s.FileCount)
			fmt.Fprintf(a.stdout, "total size:    %s (%d bytes)\n", units.HumanSize(float64(s.TotalSize)), s.TotalSize)
			fmt.Fprintf(a.stdout, "hash function: %s\n", s.HashFunction)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func newVerifyAllCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "all ARCHIVE",
		Short: "Re-hash every payload file and compare with the manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer arc.Close()

			report, err := arc.Verify(cmd.Context())
			if err != nil {
				return err
			}
			for _, p := range report.Mismatched {
				fmt.Fprintf(a.stdout, "MISMATCH %s\n", p)
			}
			for _, p := range report.Missing {
				fmt.Fprintf(a.stdout, "MISSING  %s\n", p)
			}
			if !report.OK() {
				fmt.Fprintf(a.stdout, "%d of %d files failed verification\n",
					len(report.Mismatched)+len(report.Missing), arc.Manifest().Len())
				return statusError{code: 1}
			}
			fmt.Fprintf(a.stdout, "All %d files verified\n", len(report.Verified))
			return nil
		},
	}
}

func newVerifyFileCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "file ARCHIVE PATH",
		Short: "Re-hash one payload file and compare with the manifest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			arc, err := a.open(args[0])
			if err != nil {
				return err
			}
			defer arc.Close()

			if !arc.VerifyFile(cmd.Context(), args[1]) {
				fmt.Fprintf(a.stdout, "FAILED %s\n", args[1])
				return statusError{code: 1}
			}
			fmt.Fprintf(a.stdout, "OK %s\n", args[1])
			return nil
		},
	}
}
