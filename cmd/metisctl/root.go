package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"metis/internal/storage"
	"metis/pkg/metis"
)

var validFormats = []string{"text", "json"}

// rootOptions holds the global flags shared by every command.
type rootOptions struct {
	Verbose      bool
	Format       string
	Store        string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "metisctl",
		Short:         "Forward-time population genetics simulator",
		Long:          "Run discrete-generation genetic simulations described by YAML scenarios and inspect their recorded statistics.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "log every cycle")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.Store, "store", storage.DefaultStoreKind, "store backend: "+storage.KindMemory+"|"+storage.KindSQLite)
	flags.StringVar(&opts.DBPath, "db-path", "metis.db", "sqlite database path")
	flags.StringVar(&opts.ArtifactsDir, "artifacts-dir", "runs", "directory for per-run artifacts")
	flags.StringVar(&opts.ExportsDir, "exports-dir", "exports", "directory for exported runs")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newRunsCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	return cmd
}

// newLogger writes text logs to w, at debug level with --verbose.
func newLogger(opts *rootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newClient(cmd *cobra.Command, opts *rootOptions) (*metis.Client, error) {
	return metis.New(metis.Options{
		StoreKind:    opts.Store,
		DBPath:       opts.DBPath,
		ArtifactsDir: opts.ArtifactsDir,
		ExportsDir:   opts.ExportsDir,
		Logger:       newLogger(opts, cmd.ErrOrStderr()),
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
