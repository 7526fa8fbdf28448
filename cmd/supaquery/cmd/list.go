package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/anishks07/SupaQuery/internal/output"
	"github.com/anishks07/SupaQuery/internal/service"
)

func newListCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls", "documents"},
		Short:   "List the ingested documents",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(cmd, service.Options{SkipOllamaCheck: true},
				func(ctx context.Context, svc *service.Service, out *output.Writer) error {
					docs, err := svc.ListDocuments(ctx)
					if err != nil {
						return err
					}
					out.Documents(docs)
					return nil
				})
		},
	}

	return cmd
}
