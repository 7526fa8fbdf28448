// Package cmd provides the CLI commands for SupaQuery.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/anishks07/SupaQuery/internal/config"
	"github.com/anishks07/SupaQuery/internal/logging"
	"github.com/anishks07/SupaQuery/internal/output"
	"github.com/anishks07/SupaQuery/internal/service"
	"github.com/anishks07/SupaQuery/pkg/version"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	storage string
	json    bool
	noColor bool
	debug   bool

	loggingCleanup func()
}

// NewRootCmd creates the root command for the supaquery CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "supaquery",
		Short: "Question answering over your documents, fully local",
		Long: `SupaQuery answers questions over ingested documents using hybrid
retrieval: dense vectors, a knowledge graph, and keyword rerank. Answers
carry citations back to the source (page numbers for PDFs, timestamps for
audio).

Everything runs locally: Ollama for embeddings and generation, a Bolt
graph store for the knowledge graph.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("supaquery version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.storage, "storage", "", "Storage root (default from config)")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Emit machine-readable JSON")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return opts.setupLogging()
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		if opts.loggingCleanup != nil {
			opts.loggingCleanup()
			opts.loggingCleanup = nil
		}
		return nil
	}

	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newIngestCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newDeleteCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newDoctorCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command with signal-aware context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)
	err := root.Execute()
	if err != nil {
		out := output.New(os.Stderr, output.Options{})
		out.Error(err)
	}
	return err
}

func (o *rootOptions) setupLogging() error {
	level := "info"
	if o.debug {
		level = "debug"
	}
	logCfg := logging.Config{
		Level:         level,
		WriteToStderr: o.debug,
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging is observability, not a prerequisite.
		slog.Warn("log file unavailable", "error", err)
		return nil
	}
	o.loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

// loadConfig loads layered configuration and applies flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, err
	}
	if o.storage != "" {
		cfg.Storage.Path = o.storage
	}
	if o.debug {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// newOutput builds the writer for a command's stdout.
func (o *rootOptions) newOutput(cmd *cobra.Command) *output.Writer {
	return output.New(cmd.OutOrStdout(), output.Options{
		JSON:    o.json,
		NoColor: o.noColor,
	})
}

// withService builds the service, runs fn, and tears the service down.
func (o *rootOptions) withService(cmd *cobra.Command, svcOpts service.Options, fn func(ctx context.Context, svc *service.Service, out *output.Writer) error) error {
	ctx := cmd.Context()
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	svc, err := service.New(ctx, cfg, slog.Default(), svcOpts)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	return fn(ctx, svc, o.newOutput(cmd))
}
