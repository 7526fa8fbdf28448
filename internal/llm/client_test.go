package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

func TestOllamaClient_Generate(t *testing.T) {
	var gotReq generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(generateResponse{Response: "Paris is the capital.", Done: true})
	}))
	defer server.Close()

	c := NewOllamaClient(Config{BaseURL: server.URL, Model: "llama3.2", Temperature: 0.7})
	defer c.Close()

	answer, err := c.Generate(context.Background(), "What is the capital of France?", &Options{System: "Answer briefly."})
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital.", answer)
	assert.Equal(t, "llama3.2", gotReq.Model)
	assert.Equal(t, "Answer briefly.", gotReq.System)
	assert.False(t, gotReq.Stream)
	assert.InDelta(t, 0.7, gotReq.Options.Temperature, 1e-9)
}

func TestOllamaClient_UnreachableMapsToDependencyError(t *testing.T) {
	c := NewOllamaClient(Config{BaseURL: "http://127.0.0.1:1"})
	defer c.Close()

	_, err := c.Generate(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Equal(t, sqerrors.ErrCodeLLMUnavailable, sqerrors.GetCode(err))
	assert.True(t, sqerrors.IsRetryable(err))
}

func TestOllamaClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewOllamaClient(Config{BaseURL: server.URL})
	defer c.Close()

	_, err := c.Generate(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Equal(t, sqerrors.ErrCodeLLMUnavailable, sqerrors.GetCode(err))
}

func TestOllamaClient_TimeoutMapsToTimeoutError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c := NewOllamaClient(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond})
	defer c.Close()

	_, err := c.Generate(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Equal(t, sqerrors.ErrCodeLLMTimeout, sqerrors.GetCode(err))
}

func TestOllamaClient_SemaphoreBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		json.NewEncoder(w).Encode(generateResponse{Response: "ok", Done: true})
	}))
	defer server.Close()

	c := NewOllamaClient(Config{BaseURL: server.URL, MaxConcurrent: 2})
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Generate(context.Background(), "hello", nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestOllamaClient_Available(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewOllamaClient(Config{BaseURL: server.URL})
	defer c.Close()
	assert.True(t, c.Available(context.Background()))

	down := NewOllamaClient(Config{BaseURL: "http://127.0.0.1:1"})
	defer down.Close()
	assert.False(t, down.Available(context.Background()))
}

func TestOllamaClient_BreakerFailsFastAfterRepeatedFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	serverURL := server.URL
	server.Close() // every connection is refused from here on

	c := NewOllamaClient(Config{BaseURL: serverURL})
	defer c.Close()

	for i := 0; i < 3; i++ {
		_, err := c.Generate(context.Background(), "hello", nil)
		require.Error(t, err)
	}

	// Circuit is open now; the failure surfaces without a dial attempt.
	_, err := c.Generate(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Equal(t, sqerrors.ErrCodeLLMUnavailable, sqerrors.GetCode(err))
	assert.ErrorIs(t, err, sqerrors.ErrCircuitOpen)
	assert.Zero(t, calls.Load())
}

func TestOllamaClient_Chat(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(chatResponse{
			Message: Message{Role: "assistant", Content: "It rose through 2019."},
			Done:    true,
		})
	}))
	defer server.Close()

	c := NewOllamaClient(Config{BaseURL: server.URL, Model: "llama3.2"})
	defer c.Close()

	answer, err := c.Chat(context.Background(), []Message{
		{Role: "user", Content: "What did the report say about revenue?"},
		{Role: "assistant", Content: "Revenue grew in 2018."},
		{Role: "user", Content: "And the year after?"},
	}, &Options{System: "Answer briefly."})
	require.NoError(t, err)
	assert.Equal(t, "It rose through 2019.", answer)

	require.Len(t, gotReq.Messages, 4)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "Answer briefly.", gotReq.Messages[0].Content)
	assert.Equal(t, "And the year after?", gotReq.Messages[3].Content)
	assert.False(t, gotReq.Stream)
}
