package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/meigma/arctool/dataset"
)

func newNewCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Create a dataset or project directory",
		Args:  cobra.NoArgs,
	}
	cmd.AddCommand(newNewDatasetCommand(a), newNewProjectCommand(a))
	return cmd
}

type newDatasetOptions struct {
	parent       string
	project      string
	name         string
	ownerNames   []string
	ownerEmails  []string
	confidential bool
	pii          bool
	date         string
	creator      string
}

func newNewDatasetCommand(a *app) *cobra.Command {
	var opts newDatasetOptions
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Create a dataset directory with metadata and an empty payload",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runNewDataset(cmd, a, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.parent, "parent", ".", "directory to create the dataset in")
	flags.StringVar(&opts.project, "project", "", "project name")
	flags.StringVar(&opts.name, "name", "", "dataset name")
	flags.StringArrayVar(&opts.ownerNames, "owner-name", nil, "owner name (repeatable)")
	flags.StringArrayVar(&opts.ownerEmails, "owner-email", nil, "owner email, paired with --owner-name")
	flags.BoolVar(&opts.confidential, "confidential", false, "dataset is confidential")
	flags.BoolVar(&opts.pii, "pii", false, "dataset holds personally identifiable information")
	flags.StringVar(&opts.date, "date", "", "archive date (YYYY-MM-DD, default today)")
	flags.StringVar(&opts.creator, "creator", "", "creator username (default current user)")
	_ = cmd.MarkFlagRequired("project") //nolint:errcheck // flag is defined above
	_ = cmd.MarkFlagRequired("name")    //nolint:errcheck // flag is defined above
	return cmd
}

func runNewDataset(cmd *cobra.Command, a *app, opts newDatasetOptions) error {
	if len(opts.ownerNames) != len(opts.ownerEmails) {
		return fmt.Errorf("got %d --owner-name and %d --owner-email flags", len(opts.ownerNames), len(opts.ownerEmails))
	}
	date := opts.date
	if date == "" {
		date = time.Now().Format(dataset.DateLayout)
	}
	meta := dataset.DescriptiveMetadata{
		ProjectName:     opts.project,
		DatasetName:     opts.name,
		Confidential:    opts.confidential,
		PersonallyIdent: opts.pii,
		ArchiveDate:     date,
	}
	for i := range opts.ownerNames {
		meta.Owners = append(meta.Owners, dataset.Owner{Name: opts.ownerNames[i], Email: opts.ownerEmails[i]})
	}

	createOpts := []dataset.Option{dataset.WithLogger(a.logger)}
	if opts.creator != "" {
		createOpts = append(createOpts, dataset.CreateWithCreator(opts.creator))
	}
	ds, err := dataset.Create(cmd.Context(), opts.parent, meta, createOpts...)
	if err != nil {
		return err
	}

	data, err := meta.Marshal()
	if err != nil {
		return err
	}
	if res := dataset.ValidateReadme(data); !res.Valid {
		for _, reason := range res.Reasons {
			fmt.Fprintf(a.stderr, "warning: README.yml: %s\n", reason)
		}
	}
	fmt.Fprintf(a.stdout, "Created dataset %s\n", ds.Path())
	fmt.Fprintf(a.stdout, "Add payload files to %s, then run: arctool manifest create %s\n", ds.PayloadRoot(), ds.Path())
	return nil
}

func newNewProjectCommand(a *app) *cobra.Command {
	var parent, creator string
	cmd := &cobra.Command{
		Use:   "project NAME",
		Short: "Create a project directory to hold datasets",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			opts := []dataset.Option{dataset.WithLogger(a.logger)}
			if creator != "" {
				opts = append(opts, dataset.CreateWithCreator(creator))
			}
			p, err := dataset.CreateProject(parent, args[0], opts...)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "Created project %s\n", p.Path())
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", ".", "directory to create the project in")
	cmd.Flags().StringVar(&creator, "creator", "", "creator username (default current user)")
	return cmd
}
