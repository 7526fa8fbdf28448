package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

func TestMapError_Nil(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError_Taxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{
			name:     "validation maps to invalid params",
			err:      sqerrors.New(sqerrors.ErrCodeQueryEmpty, "question is empty", nil),
			wantCode: ErrCodeInvalidParams,
		},
		{
			name:     "graph unavailable maps to dependency code",
			err:      sqerrors.UnavailableError("graph", "graph store unreachable", nil),
			wantCode: ErrCodeDependencyUnavailable,
		},
		{
			name:     "llm timeout maps to timeout code",
			err:      sqerrors.TimeoutError("llm", "generation timed out", nil),
			wantCode: ErrCodeTimeout,
		},
		{
			name:     "missing document maps to document not found",
			err:      sqerrors.New(sqerrors.ErrCodeFileNotFound, "no such document", nil),
			wantCode: ErrCodeDocumentNotFound,
		},
		{
			name:     "index divergence maps to inconsistency code",
			err:      sqerrors.InconsistencyError("graph write failed after vector commit", nil),
			wantCode: ErrCodeIndexInconsistent,
		},
		{
			name:     "context deadline maps to timeout",
			err:      context.DeadlineExceeded,
			wantCode: ErrCodeTimeout,
		},
		{
			name:     "unknown errors map to internal",
			err:      assert.AnError,
			wantCode: ErrCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			me := MapError(tt.err)
			require.NotNil(t, me)
			assert.Equal(t, tt.wantCode, me.Code)
			assert.NotEmpty(t, me.Message)
		})
	}
}

func TestMapError_FoldsSuggestionIntoMessage(t *testing.T) {
	err := sqerrors.UnavailableError("graph", "graph store unreachable", nil).
		WithSuggestion("start the graph store on bolt://localhost:7687")

	me := MapError(err)
	require.NotNil(t, me)
	assert.Contains(t, me.Message, "graph store unreachable")
	assert.Contains(t, me.Message, "start the graph store")
}
