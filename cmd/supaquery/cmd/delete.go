package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/anishks07/SupaQuery/internal/output"
	"github.com/anishks07/SupaQuery/internal/service"
)

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <doc-id>...",
		Short: "Remove documents from the catalog and every index",
		Long: `Remove documents by ID. The catalog entry is removed first, then the
vector index, keyword index, and knowledge graph sides. Requires a
reachable graph store.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd, service.Options{Writer: true, SkipOllamaCheck: true},
				func(ctx context.Context, svc *service.Service, out *output.Writer) error {
					for _, docID := range args {
						if err := svc.DeleteDocument(ctx, docID); err != nil {
							return err
						}
						out.Successf("deleted %s", docID)
					}
					return nil
				})
		},
	}

	return cmd
}
