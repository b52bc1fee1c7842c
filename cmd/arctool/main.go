// Command arctool creates, archives and verifies research datasets.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCommand(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		var status statusError
		if errors.As(err, &status) {
			return status.code
		}
		fmt.Fprintf(stderr, "arctool: %v\n", err)
		return 1
	}
	return 0
}

// statusError ends a command with an exit status after its output has been
// written.
type statusError struct {
	code int
}

func (e statusError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// app carries state shared by every subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer

	verbose   bool
	logFormat string
	logger    *slog.Logger
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:           "arctool",
		Short:         "Package research data as verifiable archives",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setupLogging()
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&a.logFormat, "log-format", "text", "log format: text or json")

	cmd.AddCommand(
		newNewCommand(a),
		newManifestCommand(a),
		newArchiveCommand(a),
		newVerifyCommand(a),
		newVersionCommand(a),
	)
	return cmd
}

func (a *app) setupLogging() error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	switch a.logFormat {
	case "text":
		a.logger = slog.New(slog.NewTextHandler(a.stderr, opts))
	case "json":
		a.logger = slog.New(slog.NewJSONHandler(a.stderr, opts))
	default:
		return fmt.Errorf("unknown log format %q", a.logFormat)
	}
	return nil
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the arctool version",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			fmt.Fprintf(a.stdout, "arctool %s\n", version)
			return nil
		},
	}
}
