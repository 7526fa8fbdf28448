package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anishks07/SupaQuery/internal/chunk"
	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

func newTestKeywordIndex(t *testing.T) *BleveIndex {
	t.Helper()
	idx, err := NewMemOnlyBleveIndex(nil)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestBleveIndex_AddAndSearch(t *testing.T) {
	idx := newTestKeywordIndex(t)

	chunks := []chunk.Chunk{
		testChunk("doc1", 0, "The quarterly revenue grew by twelve percent."),
		testChunk("doc1", 1, "Headcount stayed flat through the quarter."),
		testChunk("doc2", 0, "The security audit found no critical issues."),
	}
	require.NoError(t, idx.Add(context.Background(), chunks))

	results, err := idx.Search(context.Background(), "revenue", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc1_chunk_0", results[0].ChunkID)
	assert.Equal(t, "doc1", results[0].DocID)
	assert.Contains(t, results[0].Text, "revenue")
	assert.Contains(t, results[0].MatchedTerms, "revenue")
	assert.Greater(t, results[0].Score, 0.0)
}

func TestBleveIndex_SearchIsCaseInsensitive(t *testing.T) {
	idx := newTestKeywordIndex(t)

	require.NoError(t, idx.Add(context.Background(),
		[]chunk.Chunk{testChunk("doc1", 0, "Berlin hosts the annual conference.")}))

	results, err := idx.Search(context.Background(), "BERLIN", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestBleveIndex_EmptyQueryRejected(t *testing.T) {
	idx := newTestKeywordIndex(t)

	_, err := idx.Search(context.Background(), "", 5)
	require.Error(t, err)
	assert.Equal(t, sqerrors.ErrCodeQueryEmpty, sqerrors.GetCode(err))
}

func TestBleveIndex_DeleteDocument(t *testing.T) {
	idx := newTestKeywordIndex(t)

	require.NoError(t, idx.Add(context.Background(), []chunk.Chunk{
		testChunk("doc1", 0, "shared keyword alpha"),
		testChunk("doc1", 1, "shared keyword beta"),
		testChunk("doc2", 0, "shared keyword gamma"),
	}))

	require.NoError(t, idx.DeleteDocument(context.Background(), "doc1"))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Search(context.Background(), "shared", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc2", results[0].DocID)
}

func TestBleveIndex_ReAddReplacesChunk(t *testing.T) {
	idx := newTestKeywordIndex(t)

	require.NoError(t, idx.Add(context.Background(),
		[]chunk.Chunk{testChunk("doc1", 0, "original wording")}))
	require.NoError(t, idx.Add(context.Background(),
		[]chunk.Chunk{testChunk("doc1", 0, "revised wording")}))

	count, err := idx.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := idx.Search(context.Background(), "revised", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestBleveIndex_PersistAndReopen(t *testing.T) {
	dir := t.TempDir()

	idx, err := NewBleveIndex(dir, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Add(context.Background(),
		[]chunk.Chunk{testChunk("doc1", 0, "durable content")}))
	require.NoError(t, idx.Close())

	reopened, err := NewBleveIndex(dir, nil)
	require.NoError(t, err)
	defer reopened.Close()

	results, err := reopened.Search(context.Background(), "durable", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}
