package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/anishks07/SupaQuery/internal/output"
	"github.com/anishks07/SupaQuery/internal/rag"
	"github.com/anishks07/SupaQuery/internal/service"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		docFilter []string
		topK      int
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the ingested documents",
		Long: `Answer a question using hybrid retrieval over the ingested documents.

The answer carries citations back to the source documents: page numbers
for PDFs and DOCX files, timestamps for audio transcripts.

Examples:
  supaquery ask "What does the settlement total?"
  supaquery ask --json "Who signed the contract?"
  supaquery ask --doc doc_a1b2c3 "What does section 4 cover?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return opts.withService(cmd, service.Options{},
				func(ctx context.Context, svc *service.Service, out *output.Writer) error {
					ans, err := svc.Ask(ctx, question, rag.AskOptions{DocFilter: docFilter, TopK: topK})
					if err != nil {
						return err
					}
					out.Answer(ans)
					return nil
				})
		},
	}

	cmd.Flags().StringSliceVar(&docFilter, "doc", nil, "Restrict retrieval to these document IDs (repeatable)")
	cmd.Flags().IntVarP(&topK, "top-k", "n", 0, "Chunks to retrieve per attempt (default from config)")

	return cmd
}
