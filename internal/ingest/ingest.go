// Package ingest orchestrates document ingestion: catalog upsert, chunk
// embedding, vector and keyword indexing, graph writes, and entity
// extraction, in that order. It also owns deletion cascades and the
// cross-store consistency check.
package ingest

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/anishks07/SupaQuery/internal/chunk"
	"github.com/anishks07/SupaQuery/internal/embed"
	"github.com/anishks07/SupaQuery/internal/entity"
	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
	"github.com/anishks07/SupaQuery/internal/graph"
	"github.com/anishks07/SupaQuery/internal/store"
)

// mentionContextWindow is how many characters around a mention the stored
// context snippet includes on each side.
const mentionContextWindow = 100

// graphWriter is the slice of the graph store ingestion needs.
type graphWriter interface {
	AddDocument(ctx context.Context, doc store.Document, chunks []chunk.Chunk) error
	AddEntities(ctx context.Context, chunkID string, mentions []graph.Mention) error
	DeleteDocument(ctx context.Context, docID string) error
	DocumentChunkIDs(ctx context.Context, docID string) ([]string, error)
	DocumentIDs(ctx context.Context) ([]string, error)
}

// Result summarizes one ingestion.
type Result struct {
	DocID    string
	Filename string
	Chunks   int
	Entities int
}

// Ingestor writes one document at a time across the catalog, the vector and
// keyword indexes, and the graph. Writes go vector-before-graph; a graph
// failure after the vector commit surfaces as an index inconsistency that
// the maintenance pass repairs.
type Ingestor struct {
	mu        sync.Mutex
	embedder  embed.Embedder
	vector    store.VectorIndex
	keyword   store.KeywordIndex
	graph     graphWriter
	catalog   store.Catalog
	extractor *entity.Extractor
	logger    *slog.Logger
}

// NewIngestor wires the ingestion sides. The caller holds the storage lock
// for the Ingestor's lifetime.
func NewIngestor(
	embedder embed.Embedder,
	vector store.VectorIndex,
	keyword store.KeywordIndex,
	graphStore graphWriter,
	catalog store.Catalog,
	logger *slog.Logger,
) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		embedder:  embedder,
		vector:    vector,
		keyword:   keyword,
		graph:     graphStore,
		catalog:   catalog,
		extractor: entity.NewExtractor(),
		logger:    logger,
	}
}

// IngestPayload parses a parser payload and ingests it.
func (in *Ingestor) IngestPayload(ctx context.Context, data []byte) (*Result, error) {
	doc, chunks, err := ParsePayload(data)
	if err != nil {
		return nil, err
	}
	return in.Ingest(ctx, doc, chunks)
}

// Ingest indexes one document: catalog, embeddings, vector index, keyword
// index, graph, then entities. Entity extraction never fails ingestion.
func (in *Ingestor) Ingest(ctx context.Context, doc store.Document, chunks []chunk.Chunk) (*Result, error) {
	if len(chunks) == 0 {
		return nil, sqerrors.New(sqerrors.ErrCodeInvalidDocument, "document has no chunks", nil)
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	doc.TotalChunks = len(chunks)
	if err := in.catalog.Upsert(ctx, doc); err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if err := in.vector.Add(ctx, chunks, vectors); err != nil {
		return nil, err
	}
	if err := in.keyword.Add(ctx, chunks); err != nil {
		return nil, err
	}

	// Vector committed; from here failures leave the stores divergent and
	// are reported as inconsistencies for the maintenance pass.
	if err := in.graph.AddDocument(ctx, doc, chunks); err != nil {
		return nil, sqerrors.InconsistencyError(
			"graph write failed after vector commit for "+doc.ID, err).
			WithDetail("doc_id", doc.ID).
			WithSuggestion("run doctor --repair once the graph store is reachable")
	}

	entityCount := in.addEntities(ctx, chunks)

	in.logger.Info("document ingested",
		"doc_id", doc.ID,
		"filename", doc.Filename,
		"type", string(doc.Type),
		"chunks", len(chunks),
		"entities", entityCount)

	return &Result{
		DocID:    doc.ID,
		Filename: doc.Filename,
		Chunks:   len(chunks),
		Entities: entityCount,
	}, nil
}

// addEntities extracts and writes entity mentions per chunk. Extraction and
// graph failures degrade to fewer entities, never to a failed ingestion.
func (in *Ingestor) addEntities(ctx context.Context, chunks []chunk.Chunk) int {
	var count int
	for _, c := range chunks {
		entities := in.extractor.Extract(c.Text)
		if len(entities) == 0 {
			continue
		}
		mentions := make([]graph.Mention, 0, len(entities))
		for _, e := range entities {
			mentions = append(mentions, graph.Mention{
				Entity:  e,
				Context: mentionContext(c.Text, e),
			})
		}
		if err := in.graph.AddEntities(ctx, c.ID, mentions); err != nil {
			in.logger.Warn("entity write failed, continuing without mentions",
				"chunk_id", c.ID, "error", err)
			continue
		}
		count += len(mentions)
	}
	return count
}

// mentionContext is the snippet around one mention.
func mentionContext(text string, e entity.Entity) string {
	start := e.StartChar - mentionContextWindow
	if start < 0 {
		start = 0
	}
	end := e.EndChar + mentionContextWindow
	if end > len(text) {
		end = len(text)
	}
	if start >= end {
		return ""
	}
	return text[start:end]
}

// Delete removes a document everywhere. The catalog entry goes first; if a
// derived side then fails the document is already invisible and the
// maintenance pass sweeps the stragglers.
func (in *Ingestor) Delete(ctx context.Context, docID string) error {
	if docID == "" {
		return sqerrors.New(sqerrors.ErrCodeInvalidDocument, "document ID is empty", nil)
	}
	in.mu.Lock()
	defer in.mu.Unlock()

	if err := in.catalog.Delete(ctx, docID); err != nil {
		return err
	}

	var failed []string
	if err := in.vector.DeleteDocument(ctx, docID); err != nil {
		in.logger.Warn("vector delete failed", "doc_id", docID, "error", err)
		failed = append(failed, "vector")
	}
	if err := in.keyword.DeleteDocument(ctx, docID); err != nil {
		in.logger.Warn("keyword delete failed", "doc_id", docID, "error", err)
		failed = append(failed, "keyword")
	}
	if err := in.graph.DeleteDocument(ctx, docID); err != nil {
		in.logger.Warn("graph delete failed", "doc_id", docID, "error", err)
		failed = append(failed, "graph")
	}
	if len(failed) > 0 {
		return sqerrors.InconsistencyError(
			"document "+docID+" removed from catalog but not from: "+strings.Join(failed, ", "), nil).
			WithDetail("doc_id", docID).
			WithSuggestion("run doctor --repair to sweep the remaining index entries")
	}
	return nil
}
