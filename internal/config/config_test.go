package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "bolt://localhost:7687", cfg.Graph.URI)
	assert.Equal(t, 30, cfg.Graph.TimeoutSeconds)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, 60, cfg.LLM.TimeoutSeconds)
	assert.Equal(t, 120, cfg.LLM.GenerateTimeoutSeconds)
	assert.Equal(t, 4, cfg.LLM.MaxConcurrent)
	assert.Equal(t, "./storage", cfg.Storage.Path)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 12000, cfg.Retrieval.ContextBudget)
	assert.InDelta(t, 0.7, cfg.Evaluation.QualityThreshold, 1e-9)
	assert.Equal(t, 2, cfg.Evaluation.MaxRetries)
	assert.True(t, cfg.Features.MultiQueryEnabled())
	assert.True(t, cfg.Features.EvaluationEnabled())
}

func TestLoad_NoConfigFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Retrieval.TopK, cfg.Retrieval.TopK)
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
graph:
  uri: bolt://graph.internal:7687
  timeout_seconds: 10
llm:
  model: mistral
retrieval:
  top_k: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "supaquery.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph.internal:7687", cfg.Graph.URI)
	assert.Equal(t, 10, cfg.Graph.TimeoutSeconds)
	assert.Equal(t, "mistral", cfg.LLM.Model)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	// Untouched sections keep defaults.
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := "retrieval:\n  top_k: 8\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "supaquery.yaml"), []byte(content), 0o644))

	t.Setenv("SUPAQUERY_TOP_K", "12")
	t.Setenv("SUPAQUERY_LLM_MODEL", "qwen2.5")
	t.Setenv("SUPAQUERY_MULTI_QUERY", "false")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Retrieval.TopK)
	assert.Equal(t, "qwen2.5", cfg.LLM.Model)
	assert.False(t, cfg.Features.MultiQueryEnabled())
}

func TestLoad_FileCanDisableFeatures(t *testing.T) {
	dir := t.TempDir()
	content := "features:\n  multi_query: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "supaquery.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	// An explicit false in the file must survive the merge with defaults.
	assert.False(t, cfg.Features.MultiQueryEnabled())
	assert.True(t, cfg.Features.EvaluationEnabled(), "unset toggles keep their default")
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "supaquery.yaml"), []byte("graph: ["), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }},
		{"negative dimensions", func(c *Config) { c.Embedding.Dimensions = -1 }},
		{"threshold above one", func(c *Config) { c.Evaluation.QualityThreshold = 1.5 }},
		{"zero threshold", func(c *Config) { c.Evaluation.QualityThreshold = 0 }},
		{"negative retries", func(c *Config) { c.Evaluation.MaxRetries = -1 }},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"zero permits", func(c *Config) { c.LLM.MaxConcurrent = 0 }},
		{"bad graph scheme", func(c *Config) { c.Graph.URI = "http://localhost:7687" }},
		{"empty storage path", func(c *Config) { c.Storage.Path = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, sqerrors.ErrCodeConfigInvalid, sqerrors.GetCode(err))
			assert.Equal(t, 2, sqerrors.ExitCode(err))
		})
	}
}

func TestLoad_ValidationFailureKeepsConfigCode(t *testing.T) {
	dir := t.TempDir()
	content := "retrieval:\n  top_k: -3\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "supaquery.yaml"), []byte(content), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Equal(t, sqerrors.ErrCodeConfigInvalid, sqerrors.GetCode(err))
	assert.Equal(t, 2, sqerrors.ExitCode(err))
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	assert.NoError(t, NewConfig().Validate())
}

func TestEnvOverride_IgnoresUnparsableNumbers(t *testing.T) {
	t.Setenv("SUPAQUERY_TOP_K", "not-a-number")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
}
