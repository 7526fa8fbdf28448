package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
	"github.com/anishks07/SupaQuery/internal/output"
	"github.com/anishks07/SupaQuery/internal/preflight"
	"github.com/anishks07/SupaQuery/internal/service"
)

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	var (
		verbose bool
		repair  bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check dependencies and diagnose index issues",
		Long: `Run diagnostics against the external dependencies and the index.

Checks:
  - Storage root writability and disk space
  - Ollama reachability, embedding and LLM models pulled
  - Graph store reachability over Bolt

With --repair, also cross-checks the catalog against the vector index
and knowledge graph, and removes orphaned documents.

Examples:
  supaquery doctor
  supaquery doctor --verbose
  supaquery doctor --repair`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, opts, verbose, repair)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&repair, "repair", false, "Cross-check the indexes and remove orphans")

	return cmd
}

func runDoctor(cmd *cobra.Command, opts *rootOptions, verbose, repair bool) error {
	ctx := cmd.Context()
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(ctx, cfg)

	if opts.json {
		if err := printDoctorJSON(cmd, checker, results); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return sqerrors.ConfigError("system check failed", nil)
	}

	if repair {
		return runRepair(cmd, opts)
	}
	return nil
}

// runRepair opens the service as a writer and reconciles the indexes.
func runRepair(cmd *cobra.Command, opts *rootOptions) error {
	return opts.withService(cmd, service.Options{Writer: true, SkipOllamaCheck: true},
		func(ctx context.Context, svc *service.Service, out *output.Writer) error {
			ingestor, err := svc.RequireIngestor()
			if err != nil {
				return err
			}
			report, err := ingestor.CheckConsistency(ctx, true)
			if err != nil {
				return err
			}
			out.Consistency(report)
			return nil
		})
}

// doctorJSON is the machine-readable doctor report.
type doctorJSON struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func printDoctorJSON(cmd *cobra.Command, checker *preflight.Checker, results []preflight.CheckResult) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(doctorJSON{
		Status: checker.SummaryStatus(results),
		Checks: results,
	})
}
