package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/anishks07/SupaQuery/internal/output"
	"github.com/anishks07/SupaQuery/internal/service"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Show document, vector, keyword, and graph counts plus the active
embedding and LLM models. Unreachable sides report as unavailable
instead of failing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(cmd, service.Options{SkipOllamaCheck: true},
				func(ctx context.Context, svc *service.Service, out *output.Writer) error {
					st := svc.Stats(ctx)
					out.Stats(&st)
					return nil
				})
		},
	}

	return cmd
}
