package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/anishks07/SupaQuery/internal/logging"
	"github.com/anishks07/SupaQuery/internal/mcp"
	"github.com/anishks07/SupaQuery/internal/service"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Run the MCP server over stdio for AI clients. Exposes the ask,
ingest_document, list_documents, delete_document, and stats tools.

stdout is reserved for the JSON-RPC stream; logs go to the log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// MCP owns stdout, so swap stderr logging for file-only.
			cleanup, err := logging.SetupMCPMode()
			if err == nil {
				defer cleanup()
			}

			ctx := cmd.Context()
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			svc, err := service.New(ctx, cfg, slog.Default(), service.Options{Writer: true})
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			server, err := mcp.NewServer(svc, slog.Default())
			if err != nil {
				return err
			}
			return server.Serve(ctx)
		},
	}

	return cmd
}
