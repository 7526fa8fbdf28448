package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/anishks07/SupaQuery/internal/output"
	"github.com/anishks07/SupaQuery/internal/service"
	"github.com/anishks07/SupaQuery/internal/watcher"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var settleMs int

	cmd := &cobra.Command{
		Use:   "watch <spool-dir>",
		Short: "Watch a spool directory and ingest payloads as they arrive",
		Long: `Watch a directory for parser payloads (*.json) and ingest each one
once it stops changing. Processed payloads move to done/, rejected
payloads to failed/. Runs until interrupted.

Examples:
  supaquery watch ./spool
  supaquery watch --settle-ms 1000 /var/spool/supaquery`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd, service.Options{Writer: true},
				func(ctx context.Context, svc *service.Service, out *output.Writer) error {
					ingestor, err := svc.RequireIngestor()
					if err != nil {
						return err
					}

					w, err := watcher.New(args[0], ingestor, watcher.Options{
						SettleWindow: time.Duration(settleMs) * time.Millisecond,
						Logger:       slog.Default(),
					})
					if err != nil {
						return err
					}

					out.Statusf("👀", "watching %s (ctrl-c to stop)", args[0])
					return w.Run(ctx)
				})
		},
	}

	cmd.Flags().IntVar(&settleMs, "settle-ms", 0, "Quiet period before a payload is ingested (default 500)")

	return cmd
}
