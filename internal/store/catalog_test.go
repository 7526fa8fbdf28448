package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anishks07/SupaQuery/internal/chunk"
	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

func newTestCatalog(t *testing.T) *SQLiteCatalog {
	t.Helper()
	cat, err := NewSQLiteCatalog(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func TestSQLiteCatalog_UpsertAndGet(t *testing.T) {
	cat := newTestCatalog(t)

	doc := Document{
		ID:          "doc1",
		Filename:    "report.pdf",
		Type:        chunk.MediaPDF,
		UserID:      "u1",
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		TotalChunks: 7,
		PageCount:   12,
	}
	require.NoError(t, cat.Upsert(context.Background(), doc))

	got, err := cat.Get(context.Background(), "doc1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "report.pdf", got.Filename)
	assert.Equal(t, chunk.MediaPDF, got.Type)
	assert.Equal(t, 7, got.TotalChunks)
	assert.Equal(t, 12, got.PageCount)
	assert.True(t, got.CreatedAt.Equal(doc.CreatedAt))
}

func TestSQLiteCatalog_GetUnknownReturnsNil(t *testing.T) {
	cat := newTestCatalog(t)

	got, err := cat.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteCatalog_UpsertReplacesExisting(t *testing.T) {
	cat := newTestCatalog(t)

	require.NoError(t, cat.Upsert(context.Background(), Document{
		ID: "doc1", Filename: "v1.pdf", Type: chunk.MediaPDF, TotalChunks: 3,
	}))
	require.NoError(t, cat.Upsert(context.Background(), Document{
		ID: "doc1", Filename: "v2.pdf", Type: chunk.MediaPDF, TotalChunks: 5,
	}))

	got, err := cat.Get(context.Background(), "doc1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v2.pdf", got.Filename)
	assert.Equal(t, 5, got.TotalChunks)

	count, err := cat.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteCatalog_UpsertRejectsEmptyID(t *testing.T) {
	cat := newTestCatalog(t)

	err := cat.Upsert(context.Background(), Document{Filename: "x.pdf"})
	require.Error(t, err)
	assert.Equal(t, sqerrors.ErrCodeInvalidDocument, sqerrors.GetCode(err))
}

func TestSQLiteCatalog_ListOrdersByCreation(t *testing.T) {
	cat := newTestCatalog(t)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"doc-c", "doc-a", "doc-b"} {
		require.NoError(t, cat.Upsert(context.Background(), Document{
			ID:        id,
			Filename:  id + ".docx",
			Type:      chunk.MediaDocx,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	docs, err := cat.List(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "doc-c", docs[0].ID)
	assert.Equal(t, "doc-a", docs[1].ID)
	assert.Equal(t, "doc-b", docs[2].ID)
}

func TestSQLiteCatalog_DeleteIsIdempotent(t *testing.T) {
	cat := newTestCatalog(t)

	require.NoError(t, cat.Upsert(context.Background(), Document{
		ID: "doc1", Filename: "a.pdf", Type: chunk.MediaPDF,
	}))

	require.NoError(t, cat.Delete(context.Background(), "doc1"))
	require.NoError(t, cat.Delete(context.Background(), "doc1"))

	count, err := cat.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSQLiteCatalog_AudioDuration(t *testing.T) {
	cat := newTestCatalog(t)

	require.NoError(t, cat.Upsert(context.Background(), Document{
		ID: "doc1", Filename: "standup.mp3", Type: chunk.MediaAudio, Duration: 812.4,
	}))

	got, err := cat.Get(context.Background(), "doc1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 812.4, got.Duration, 1e-9)
}
