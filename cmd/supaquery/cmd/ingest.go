package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
	"github.com/anishks07/SupaQuery/internal/output"
	"github.com/anishks07/SupaQuery/internal/service"
)

func newIngestCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <payload.json>...",
		Short: "Index parser payloads into every store",
		Long: `Index one or more parser payloads. A payload is the external parser's
JSON output: document metadata plus chunk_data with text and citations.

Each payload is written to the catalog, the vector index, the keyword
index, and the knowledge graph. Requires a reachable graph store.

Examples:
  supaquery ingest contract.json
  supaquery ingest payloads/*.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd, service.Options{Writer: true},
				func(ctx context.Context, svc *service.Service, out *output.Writer) error {
					for _, path := range args {
						data, err := os.ReadFile(path)
						if err != nil {
							return sqerrors.New(sqerrors.ErrCodeFileNotFound,
								"cannot read payload "+path, err)
						}
						res, err := svc.IngestPayload(ctx, data)
						if err != nil {
							return err
						}
						out.Ingested(res)
					}
					return nil
				})
		},
	}

	return cmd
}
