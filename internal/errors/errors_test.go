package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupaError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("original error")

	// When: wrapping with SupaError
	supaErr := New(ErrCodeFileNotFound, "payload not found: doc.json", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, supaErr)
	assert.Equal(t, originalErr, errors.Unwrap(supaErr))
	assert.True(t, errors.Is(supaErr, originalErr))
}

func TestSupaError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeConfigNotFound,
			message:  "config file not found",
			expected: "[ERR_101_CONFIG_NOT_FOUND] config file not found",
		},
		{
			name:     "storage error",
			code:     ErrCodeFileNotFound,
			message:  "payload.json not found",
			expected: "[ERR_201_FILE_NOT_FOUND] payload.json not found",
		},
		{
			name:     "dependency error",
			code:     ErrCodeLLMTimeout,
			message:  "generation timed out",
			expected: "[ERR_301_LLM_TIMEOUT] generation timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestSupaError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeFileNotFound, "payload A not found", nil)
	err2 := New(ErrCodeFileNotFound, "payload B not found", nil)

	// Then: they match by code
	assert.True(t, errors.Is(err1, err2))
}

func TestSupaError_Is_DoesNotMatchDifferentCodes(t *testing.T) {
	// Given: two errors with different codes
	err1 := New(ErrCodeFileNotFound, "payload not found", nil)
	err2 := New(ErrCodeConfigNotFound, "config not found", nil)

	// Then: they don't match
	assert.False(t, errors.Is(err1, err2))
}

func TestSupaError_WithDetails_AddsContext(t *testing.T) {
	// Given: a base error
	err := New(ErrCodeFileNotFound, "payload not found", nil)

	// When: adding details
	err = err.WithDetail("path", "/spool/doc.json")
	err = err.WithDetail("size", "1024")

	// Then: details are available
	assert.Equal(t, "/spool/doc.json", err.Details["path"])
	assert.Equal(t, "1024", err.Details["size"])
}

func TestSupaError_WithSuggestion_AddsSuggestion(t *testing.T) {
	// Given: a dependency error
	err := New(ErrCodeLLMUnavailable, "ollama unreachable", nil)

	// When: adding suggestion
	err = err.WithSuggestion("Start the Ollama server and retry")

	// Then: suggestion is available
	assert.Equal(t, "Start the Ollama server and retry", err.Suggestion)
}

func TestSupaError_CategoryFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantCategory Category
	}{
		{ErrCodeConfigNotFound, CategoryConfig},
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeFileNotFound, CategoryStorage},
		{ErrCodeIndexInconsistent, CategoryStorage},
		{ErrCodeLLMTimeout, CategoryDependency},
		{ErrCodeGraphUnavailable, CategoryDependency},
		{ErrCodeInvalidInput, CategoryValidation},
		{ErrCodeDimensionMismatch, CategoryValidation},
		{ErrCodeInternal, CategoryInternal},
		{ErrCodeSearchFailed, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantCategory, err.Category)
		})
	}
}

func TestSupaError_SeverityFromCode(t *testing.T) {
	tests := []struct {
		code         string
		wantSeverity Severity
	}{
		{ErrCodeCorruptIndex, SeverityFatal},
		{ErrCodeModelMismatch, SeverityFatal},
		{ErrCodeFileNotFound, SeverityError},
		{ErrCodeLLMTimeout, SeverityWarning}, // Retryable, so warning
		{ErrCodeGraphUnavailable, SeverityWarning},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantSeverity, err.Severity)
		})
	}
}

func TestSupaError_RetryableFromCode(t *testing.T) {
	tests := []struct {
		code          string
		wantRetryable bool
	}{
		{ErrCodeLLMTimeout, true},
		{ErrCodeGraphTimeout, true},
		{ErrCodeGraphUnavailable, true},
		{ErrCodeEmbedderFailed, true},
		{ErrCodeFileNotFound, false},
		{ErrCodeConfigInvalid, false},
		{ErrCodeCorruptIndex, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "test message", nil)
			assert.Equal(t, tt.wantRetryable, err.Retryable)
		})
	}
}

func TestWrap_CreatesSupaErrorFromError(t *testing.T) {
	// Given: a standard error
	originalErr := errors.New("something went wrong")

	// When: wrapping with a code
	supaErr := Wrap(ErrCodeInternal, originalErr)

	// Then: creates proper SupaError
	require.NotNil(t, supaErr)
	assert.Equal(t, ErrCodeInternal, supaErr.Code)
	assert.Equal(t, "something went wrong", supaErr.Message)
	assert.Equal(t, originalErr, supaErr.Cause)
}

func TestConfigError_CreatesConfigCategoryError(t *testing.T) {
	err := ConfigError("invalid yaml syntax", nil)

	assert.Equal(t, CategoryConfig, err.Category)
	assert.Contains(t, err.Code, "CONFIG")
}

func TestInputError_CreatesValidationCategoryError(t *testing.T) {
	err := InputError("question cannot be empty", nil)

	assert.Equal(t, CategoryValidation, err.Category)
	assert.True(t, IsInput(err))
}

func TestUnavailableError_MapsDependencyToCode(t *testing.T) {
	llmErr := UnavailableError("llm", "connection refused", nil)
	graphErr := UnavailableError("graph", "bolt handshake failed", nil)

	assert.Equal(t, ErrCodeLLMUnavailable, llmErr.Code)
	assert.Equal(t, ErrCodeGraphUnavailable, graphErr.Code)
	assert.True(t, llmErr.Retryable)
	assert.True(t, IsUnavailable(graphErr))
	assert.Equal(t, "graph", graphErr.Details["dependency"])
}

func TestTimeoutError_MapsDependencyToCode(t *testing.T) {
	llmErr := TimeoutError("llm", "generation exceeded deadline", nil)
	graphErr := TimeoutError("graph", "traversal exceeded 30s", nil)

	assert.True(t, IsTimeout(llmErr))
	assert.True(t, IsTimeout(graphErr))
	assert.Equal(t, ErrCodeGraphTimeout, graphErr.Code)
}

func TestInconsistencyError_IsFlaggedNotRetryable(t *testing.T) {
	err := InconsistencyError("chunk ids diverge for doc-1", nil)

	assert.True(t, IsInconsistency(err))
	assert.False(t, err.Retryable)
	assert.Equal(t, CategoryStorage, err.Category)
}

func TestIsRetryable_ChecksRetryableFlag(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "retryable SupaError",
			err:      New(ErrCodeLLMTimeout, "timeout", nil),
			expected: true,
		},
		{
			name:     "non-retryable SupaError",
			err:      New(ErrCodeFileNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "wrapped retryable error",
			err:      Wrap(ErrCodeGraphTimeout, errors.New("wrapped")),
			expected: true,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsRetryable(tt.err))
		})
	}
}

func TestIsFatal_ChecksFatalSeverity(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "corrupt index",
			err:      New(ErrCodeCorruptIndex, "index corrupt", nil),
			expected: true,
		},
		{
			name:     "embedding model mismatch",
			err:      New(ErrCodeModelMismatch, "metadata written by other model", nil),
			expected: true,
		},
		{
			name:     "non-fatal error",
			err:      New(ErrCodeFileNotFound, "not found", nil),
			expected: false,
		},
		{
			name:     "standard error",
			err:      errors.New("standard error"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsFatal(tt.err))
		})
	}
}

func TestExitCode_MapsTaxonomyToProcessContract(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, 0},
		{"config error", ConfigError("bad yaml", nil), 2},
		{"input error", InputError("empty question", nil), 2},
		{"llm unavailable", UnavailableError("llm", "refused", nil), 3},
		{"graph unavailable", UnavailableError("graph", "refused", nil), 3},
		{"internal error", InternalError("boom", nil), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}
