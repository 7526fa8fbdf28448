package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anishks07/SupaQuery/internal/output"
	"github.com/anishks07/SupaQuery/internal/service"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <terms>",
		Short: "Find matching chunks without generating an answer",
		Long: `Run a BM25 keyword search over the indexed chunk text and print the
matches with their scores and citations. Works without Ollama; for
semantic retrieval use ask.

Examples:
  supaquery search "settlement amount"
  supaquery search --top-k 3 "quarterly payments"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return opts.withService(cmd, service.Options{SkipOllamaCheck: true},
				func(ctx context.Context, svc *service.Service, out *output.Writer) error {
					chunks, err := svc.Search(ctx, query, topK)
					if err != nil {
						return err
					}
					out.SearchResults(chunks)
					return nil
				})
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "n", 0, "Maximum number of results (default from config)")

	return cmd
}
