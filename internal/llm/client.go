// Package llm is the client for the local Ollama generation endpoint. All
// callers share one client; a weighted semaphore bounds concurrent requests
// so multi-query expansion cannot starve answer generation.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

const (
	// DefaultBaseURL is the default Ollama endpoint.
	DefaultBaseURL = "http://localhost:11434"
	// DefaultModel is the default generation model.
	DefaultModel = "llama3.2"

	// DefaultTimeout bounds short completions (classification, query
	// expansion, evaluation).
	DefaultTimeout = 60 * time.Second
	// DefaultGenerateTimeout bounds full answer generation.
	DefaultGenerateTimeout = 120 * time.Second

	// DefaultMaxConcurrent is the number of in-flight requests allowed.
	DefaultMaxConcurrent = 4

	probeTimeout = 5 * time.Second
)

// Options tunes a single Generate call. Zero values take the client config.
type Options struct {
	System      string
	Temperature float64
	MaxTokens   int
	// Long selects the generation timeout instead of the short one.
	Long bool
}

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client generates text. The production client speaks Ollama; tests script
// responses.
type Client interface {
	Generate(ctx context.Context, prompt string, opts *Options) (string, error)
	Chat(ctx context.Context, messages []Message, opts *Options) (string, error)
	Available(ctx context.Context) bool
	ModelName() string
	Close() error
}

// Config configures the Ollama client.
type Config struct {
	BaseURL         string
	Model           string
	Timeout         time.Duration
	GenerateTimeout time.Duration
	MaxConcurrent   int
	Temperature     float64
	MaxTokens       int
	Logger          *slog.Logger
}

// OllamaClient talks to Ollama's /api/generate endpoint.
type OllamaClient struct {
	client  *http.Client
	config  Config
	sem     *semaphore.Weighted
	breaker *sqerrors.CircuitBreaker
	logger  *slog.Logger
}

var _ Client = (*OllamaClient)(nil)

// NewOllamaClient builds a client; it does not contact the endpoint.
func NewOllamaClient(cfg Config) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = DefaultGenerateTimeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &OllamaClient{
		client:  &http.Client{},
		config:  cfg,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		breaker: sqerrors.NewCircuitBreaker("llm"),
		logger:  cfg.Logger,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []Message       `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  generateOptions `json:"options"`
}

type chatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

// Generate runs one completion. The call waits for a semaphore permit, so at
// most MaxConcurrent requests are in flight at once.
func (c *OllamaClient) Generate(ctx context.Context, prompt string, opts *Options) (string, error) {
	if opts == nil {
		opts = &Options{}
	}
	var result generateResponse
	err := c.post(ctx, "/api/generate", generateRequest{
		Model:   c.config.Model,
		Prompt:  prompt,
		System:  opts.System,
		Stream:  false,
		Options: c.generateOptions(opts),
	}, opts, &result)
	if err != nil {
		return "", err
	}

	c.logger.Debug("llm generation complete",
		"model", c.config.Model,
		"prompt_chars", len(prompt),
		"response_chars", len(result.Response))
	return result.Response, nil
}

// Chat runs one completion over a message history. A System option is
// prepended as a system-role message.
func (c *OllamaClient) Chat(ctx context.Context, messages []Message, opts *Options) (string, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.System != "" {
		messages = append([]Message{{Role: "system", Content: opts.System}}, messages...)
	}

	var result chatResponse
	err := c.post(ctx, "/api/chat", chatRequest{
		Model:    c.config.Model,
		Messages: messages,
		Stream:   false,
		Options:  c.generateOptions(opts),
	}, opts, &result)
	if err != nil {
		return "", err
	}

	c.logger.Debug("llm chat complete",
		"model", c.config.Model,
		"messages", len(messages),
		"response_chars", len(result.Message.Content))
	return result.Message.Content, nil
}

func (c *OllamaClient) generateOptions(opts *Options) generateOptions {
	temperature := c.config.Temperature
	if opts.Temperature > 0 {
		temperature = opts.Temperature
	}
	maxTokens := c.config.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	return generateOptions{Temperature: temperature, NumPredict: maxTokens}
}

// post sends one request under the semaphore and breaker, mapping transport
// trouble onto the error taxonomy.
func (c *OllamaClient) post(ctx context.Context, path string, payload any, opts *Options, out any) error {
	// Fail fast while the endpoint is known dead; an open breaker skips
	// the full generation timeout.
	if !c.breaker.Allow() {
		return sqerrors.UnavailableError("llm", "llm endpoint unreachable", sqerrors.ErrCircuitOpen).
			WithSuggestion("check that ollama is running: ollama serve")
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.sem.Release(1)

	timeout := c.config.Timeout
	if opts.Long {
		timeout = c.config.GenerateTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return sqerrors.Wrap(sqerrors.ErrCodeInternal, err)
	}
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return sqerrors.Wrap(sqerrors.ErrCodeInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return sqerrors.TimeoutError("llm", "generation timed out", err).
				WithDetail("timeout", timeout.String())
		}
		c.breaker.RecordFailure()
		return sqerrors.UnavailableError("llm", "llm endpoint unreachable", err).
			WithSuggestion("check that ollama is running: ollama serve")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return sqerrors.UnavailableError("llm",
			fmt.Sprintf("generation failed with status %d", resp.StatusCode), nil).
			WithDetail("body", string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return sqerrors.UnavailableError("llm", "decode generation response", err)
	}
	c.breaker.RecordSuccess()
	return nil
}

// Available reports whether the endpoint answers its model listing.
func (c *OllamaClient) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ModelName returns the configured generation model.
func (c *OllamaClient) ModelName() string { return c.config.Model }

// Close releases idle connections.
func (c *OllamaClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
