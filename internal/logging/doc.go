// Package logging provides file-based structured logging with rotation for
// SupaQuery. Logs are JSON-encoded via log/slog and written to a rotated file
// (logs/supaquery.log under the storage root by default), with optional
// stderr mirroring for CLI runs.
//
// MCP serving mode must keep stdout and stderr clean for the protocol stream,
// so it logs to file only.
package logging
