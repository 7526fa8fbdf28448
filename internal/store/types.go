// Package store holds SupaQuery's local persistent state: the HNSW vector
// index over chunk embeddings, the bleve keyword index over chunk text, and
// the SQLite document catalog that owns document identity.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/anishks07/SupaQuery/internal/chunk"
)

// Document is a catalog record. The catalog owns document identity; the
// vector index and graph store hold derived state keyed by ID.
type Document struct {
	ID          string
	Filename    string
	Type        chunk.MediaType
	UserID      string
	CreatedAt   time.Time
	TotalChunks int
	// PageCount is set for paginated sources, 0 otherwise.
	PageCount int
	// Duration is set for audio sources (seconds), 0 otherwise.
	Duration float64
}

// VectorMeta is one entry of the metadata sidecar persisted in parallel with
// the vector index.
type VectorMeta struct {
	ChunkID  string
	DocID    string
	Source   string
	Text     string
	Citation string
	// Vector retains the unit-norm embedding so Delete can rebuild the
	// graph without re-encoding.
	Vector []float32
}

// VectorResult is one vector search hit.
type VectorResult struct {
	ChunkID  string
	DocID    string
	Source   string
	Text     string
	Citation string
	Distance float32
	// Score is the similarity 1/(1+distance).
	Score float32
}

// KeywordResult is one keyword (BM25) search hit.
type KeywordResult struct {
	ChunkID      string
	DocID        string
	Source       string
	Text         string
	Citation     string
	Score        float64
	MatchedTerms []string
}

// VectorStats summarizes the vector index.
type VectorStats struct {
	TotalVectors int `json:"total_vectors"`
	Dimensions   int `json:"dimensions"`
	Documents    int `json:"documents"`
}

// VectorIndex is the persistent ANN index over chunk embeddings.
// Add and DeleteDocument require a single writer; Search is safe for many
// concurrent readers.
type VectorIndex interface {
	Add(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int, docFilter []string) ([]VectorResult, error)
	DeleteDocument(ctx context.Context, docID string) error
	ChunkIDs(docID string) []string
	DocumentIDs() []string
	Contains(chunkID string) bool
	Stats() VectorStats
	Save() error
	Close() error
}

// KeywordIndex is the persistent BM25 index over chunk text.
type KeywordIndex interface {
	Add(ctx context.Context, chunks []chunk.Chunk) error
	Search(ctx context.Context, query string, limit int) ([]KeywordResult, error)
	DeleteDocument(ctx context.Context, docID string) error
	Count() (int, error)
	Close() error
}

// Catalog is the relational adapter owning document identity.
type Catalog interface {
	Upsert(ctx context.Context, doc Document) error
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context) ([]Document, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// VectorIndexConfig configures the HNSW vector index.
type VectorIndexConfig struct {
	// Dimensions is the fixed embedding dimension.
	Dimensions int
	// ModelName identifies the embedding model; persisted in the metadata
	// header and checked on load.
	ModelName string
	// M and EfSearch are HNSW tuning parameters.
	M        int
	EfSearch int
}

// ErrDimensionMismatch reports an embedding whose length does not match the
// index dimension.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
