package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attrMap(t *testing.T, attrs []any) map[string]any {
	t.Helper()
	require.Zero(t, len(attrs)%2, "attrs must be key-value pairs")
	m := make(map[string]any, len(attrs)/2)
	for i := 0; i < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		require.True(t, ok, "attr key must be a string")
		m[key] = attrs[i+1]
	}
	return m
}

func TestLogAttrs_TypedError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := UnavailableError("llm", "llm endpoint unreachable", cause).
		WithDetail("timeout", "60s")

	m := attrMap(t, LogAttrs(err))

	assert.Equal(t, "llm endpoint unreachable", m["error"])
	assert.Equal(t, ErrCodeLLMUnavailable, m["error_code"])
	assert.Equal(t, string(CategoryDependency), m["category"])
	assert.Equal(t, true, m["retryable"])
	assert.Equal(t, "dial tcp: connection refused", m["cause"])
	assert.Equal(t, "60s", m["detail_timeout"])
}

func TestLogAttrs_StandardError(t *testing.T) {
	m := attrMap(t, LogAttrs(errors.New("something went wrong")))

	assert.Equal(t, "something went wrong", m["error"])
	assert.NotContains(t, m, "error_code")
}

func TestLogAttrs_NilError(t *testing.T) {
	assert.Nil(t, LogAttrs(nil))
}
