// Package main provides the entry point for the supaquery CLI.
package main

import (
	"os"

	"github.com/anishks07/SupaQuery/cmd/supaquery/cmd"
	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(sqerrors.ExitCode(err))
	}
}
