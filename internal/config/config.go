// Package config defines SupaQuery's layered configuration: hardcoded
// defaults, an optional user config file, an optional project config file,
// then SUPAQUERY_* environment overrides, in increasing precedence.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

// GraphConfig configures the Bolt graph store connection.
type GraphConfig struct {
	// URI is the Bolt endpoint of the graph store.
	URI string `yaml:"uri"`
	// Username and Password are optional Bolt credentials.
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// TimeoutSeconds bounds every graph call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// LLMConfig configures the local generative model server.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// TimeoutSeconds bounds scoring/classification calls.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// GenerateTimeoutSeconds bounds full answer generation.
	GenerateTimeoutSeconds int `yaml:"generate_timeout_seconds"`
	// MaxConcurrent is the semaphore permit count for in-flight LLM calls.
	MaxConcurrent int     `yaml:"max_concurrent"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
}

// StorageConfig configures on-disk state.
type StorageConfig struct {
	// Path is the storage root holding the vector index, keyword index,
	// catalog database, and logs.
	Path string `yaml:"path"`
}

// EmbeddingConfig configures the embedding model.
type EmbeddingConfig struct {
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// RetrievalConfig configures the hybrid retriever.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
	// SemanticK is the vector-stage candidate count.
	SemanticK int `yaml:"semantic_k"`
	// GraphMaxDepth and GraphMaxNodes bound traversal retrieval.
	GraphMaxDepth int `yaml:"graph_max_depth"`
	GraphMaxNodes int `yaml:"graph_max_nodes"`
	// ContextBudget is the assembled-context character budget.
	ContextBudget int `yaml:"context_budget"`
}

// EvaluationConfig configures the answer evaluator and retry loop.
type EvaluationConfig struct {
	QualityThreshold float64 `yaml:"quality_threshold"`
	MaxRetries       int     `yaml:"max_retries"`
}

// FeatureConfig toggles optional pipeline stages. The pointers distinguish
// an explicit `false` in a config file from an unset field, which would
// otherwise silently re-enable a stage on merge.
type FeatureConfig struct {
	MultiQuery *bool `yaml:"multi_query"`
	Evaluation *bool `yaml:"evaluation"`
}

// MultiQueryEnabled reports the multi-query toggle, on when unset.
func (f FeatureConfig) MultiQueryEnabled() bool {
	return f.MultiQuery == nil || *f.MultiQuery
}

// EvaluationEnabled reports the evaluation toggle, on when unset.
func (f FeatureConfig) EvaluationEnabled() bool {
	return f.Evaluation == nil || *f.Evaluation
}

func boolPtr(b bool) *bool { return &b }

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Config is the complete SupaQuery configuration.
type Config struct {
	Graph      GraphConfig      `yaml:"graph"`
	LLM        LLMConfig        `yaml:"llm"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Features   FeatureConfig    `yaml:"features"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// NewConfig returns the hardcoded defaults.
func NewConfig() *Config {
	return &Config{
		Graph: GraphConfig{
			URI:            "bolt://localhost:7687",
			TimeoutSeconds: 30,
		},
		LLM: LLMConfig{
			BaseURL:                "http://localhost:11434",
			Model:                  "llama3.2",
			TimeoutSeconds:         60,
			GenerateTimeoutSeconds: 120,
			MaxConcurrent:          4,
			Temperature:            0.7,
			MaxTokens:              1024,
		},
		Storage: StorageConfig{
			Path: "./storage",
		},
		Embedding: EmbeddingConfig{
			Model:      "all-minilm",
			Dimensions: 384,
		},
		Retrieval: RetrievalConfig{
			TopK:          5,
			SemanticK:     20,
			GraphMaxDepth: 2,
			GraphMaxNodes: 15,
			ContextBudget: 12000,
		},
		Evaluation: EvaluationConfig{
			QualityThreshold: 0.7,
			MaxRetries:       2,
		},
		Features: FeatureConfig{
			MultiQuery: boolPtr(true),
			Evaluation: boolPtr(true),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// GetUserConfigPath returns the user-level config path, honoring
// XDG_CONFIG_HOME when set.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "supaquery", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "supaquery", "config.yaml")
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/supaquery/config.yaml)
//  3. Project config (supaquery.yaml / supaquery.yml in dir)
//  4. Environment variables (SUPAQUERY_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadYAML(path); err != nil {
				return nil, fmt.Errorf("failed to load user config: %w", err)
			}
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from supaquery.yaml or .yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{"supaquery.yaml", "supaquery.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	// No config file is fine - use defaults.
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Graph.URI != "" {
		c.Graph.URI = other.Graph.URI
	}
	if other.Graph.Username != "" {
		c.Graph.Username = other.Graph.Username
	}
	if other.Graph.Password != "" {
		c.Graph.Password = other.Graph.Password
	}
	if other.Graph.TimeoutSeconds != 0 {
		c.Graph.TimeoutSeconds = other.Graph.TimeoutSeconds
	}

	if other.LLM.BaseURL != "" {
		c.LLM.BaseURL = other.LLM.BaseURL
	}
	if other.LLM.Model != "" {
		c.LLM.Model = other.LLM.Model
	}
	if other.LLM.TimeoutSeconds != 0 {
		c.LLM.TimeoutSeconds = other.LLM.TimeoutSeconds
	}
	if other.LLM.GenerateTimeoutSeconds != 0 {
		c.LLM.GenerateTimeoutSeconds = other.LLM.GenerateTimeoutSeconds
	}
	if other.LLM.MaxConcurrent != 0 {
		c.LLM.MaxConcurrent = other.LLM.MaxConcurrent
	}
	if other.LLM.Temperature != 0 {
		c.LLM.Temperature = other.LLM.Temperature
	}
	if other.LLM.MaxTokens != 0 {
		c.LLM.MaxTokens = other.LLM.MaxTokens
	}

	if other.Storage.Path != "" {
		c.Storage.Path = other.Storage.Path
	}

	if other.Embedding.Model != "" {
		c.Embedding.Model = other.Embedding.Model
	}
	if other.Embedding.Dimensions != 0 {
		c.Embedding.Dimensions = other.Embedding.Dimensions
	}

	if other.Retrieval.TopK != 0 {
		c.Retrieval.TopK = other.Retrieval.TopK
	}
	if other.Retrieval.SemanticK != 0 {
		c.Retrieval.SemanticK = other.Retrieval.SemanticK
	}
	if other.Retrieval.GraphMaxDepth != 0 {
		c.Retrieval.GraphMaxDepth = other.Retrieval.GraphMaxDepth
	}
	if other.Retrieval.GraphMaxNodes != 0 {
		c.Retrieval.GraphMaxNodes = other.Retrieval.GraphMaxNodes
	}
	if other.Retrieval.ContextBudget != 0 {
		c.Retrieval.ContextBudget = other.Retrieval.ContextBudget
	}

	if other.Evaluation.QualityThreshold != 0 {
		c.Evaluation.QualityThreshold = other.Evaluation.QualityThreshold
	}
	if other.Evaluation.MaxRetries != 0 {
		c.Evaluation.MaxRetries = other.Evaluation.MaxRetries
	}

	if other.Features.MultiQuery != nil {
		c.Features.MultiQuery = other.Features.MultiQuery
	}
	if other.Features.Evaluation != nil {
		c.Features.Evaluation = other.Features.Evaluation
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
}

// applyEnvOverrides applies SUPAQUERY_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SUPAQUERY_GRAPH_URI"); v != "" {
		c.Graph.URI = v
	}
	if v := os.Getenv("SUPAQUERY_GRAPH_USERNAME"); v != "" {
		c.Graph.Username = v
	}
	if v := os.Getenv("SUPAQUERY_GRAPH_PASSWORD"); v != "" {
		c.Graph.Password = v
	}
	if v := os.Getenv("SUPAQUERY_GRAPH_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Graph.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("SUPAQUERY_LLM_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("SUPAQUERY_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("SUPAQUERY_LLM_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLM.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("SUPAQUERY_LLM_GENERATE_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLM.GenerateTimeoutSeconds = n
		}
	}
	if v := os.Getenv("SUPAQUERY_LLM_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLM.MaxConcurrent = n
		}
	}
	if v := os.Getenv("SUPAQUERY_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("SUPAQUERY_EMBED_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := os.Getenv("SUPAQUERY_EMBED_DIM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Embedding.Dimensions = n
		}
	}
	if v := os.Getenv("SUPAQUERY_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retrieval.TopK = n
		}
	}
	if v := os.Getenv("SUPAQUERY_QUALITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Evaluation.QualityThreshold = f
		}
	}
	if v := os.Getenv("SUPAQUERY_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Evaluation.MaxRetries = n
		}
	}
	if v := os.Getenv("SUPAQUERY_MULTI_QUERY"); v != "" {
		c.Features.MultiQuery = boolPtr(parseBool(v, c.Features.MultiQueryEnabled()))
	}
	if v := os.Getenv("SUPAQUERY_EVALUATION"); v != "" {
		c.Features.Evaluation = boolPtr(parseBool(v, c.Features.EvaluationEnabled()))
	}
	if v := os.Getenv("SUPAQUERY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func parseBool(s string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.ToLower(s))
	if err != nil {
		return fallback
	}
	return b
}

// Validate checks the final configuration for inconsistencies. Failures
// carry the config error code so the CLI exits with the config status.
func (c *Config) Validate() error {
	if c.Embedding.Dimensions <= 0 {
		return sqerrors.ConfigError(
			fmt.Sprintf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions), nil)
	}
	if c.Evaluation.QualityThreshold <= 0 || c.Evaluation.QualityThreshold > 1 {
		return sqerrors.ConfigError(
			fmt.Sprintf("evaluation.quality_threshold must be in (0,1], got %g", c.Evaluation.QualityThreshold), nil)
	}
	if c.Evaluation.MaxRetries < 0 {
		return sqerrors.ConfigError(
			fmt.Sprintf("evaluation.max_retries must be non-negative, got %d", c.Evaluation.MaxRetries), nil)
	}
	if c.Retrieval.TopK <= 0 {
		return sqerrors.ConfigError(
			fmt.Sprintf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK), nil)
	}
	if c.LLM.MaxConcurrent <= 0 {
		return sqerrors.ConfigError(
			fmt.Sprintf("llm.max_concurrent must be positive, got %d", c.LLM.MaxConcurrent), nil)
	}
	if _, err := url.Parse(c.LLM.BaseURL); err != nil {
		return sqerrors.ConfigError("llm.base_url is not a valid URL", err)
	}
	if !strings.HasPrefix(c.Graph.URI, "bolt://") && !strings.HasPrefix(c.Graph.URI, "neo4j://") {
		return sqerrors.ConfigError(
			fmt.Sprintf("graph.uri must use bolt:// or neo4j:// scheme, got %q", c.Graph.URI), nil)
	}
	if c.Storage.Path == "" {
		return sqerrors.ConfigError("storage.path must not be empty", nil)
	}
	return nil
}

// GraphTimeout returns the graph call timeout as a duration-friendly seconds
// count, defaulting when unset.
func (c *Config) GraphTimeout() int {
	if c.Graph.TimeoutSeconds <= 0 {
		return 30
	}
	return c.Graph.TimeoutSeconds
}
