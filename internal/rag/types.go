// Package rag implements the question-answering pipeline: query
// classification and routing, multi-query expansion, hybrid retrieval over
// the vector index and knowledge graph, lexical reranking, context assembly,
// answer generation, and answer evaluation with bounded retries.
package rag

import (
	"context"

	"github.com/anishks07/SupaQuery/internal/graph"
	"github.com/anishks07/SupaQuery/internal/store"
)

// QueryType is the classified intent of a question.
type QueryType string

const (
	QueryDocumentList QueryType = "document_list"
	QuerySummary      QueryType = "summary"
	QueryFact         QueryType = "fact"
	QueryEntity       QueryType = "entity"
	QueryDate         QueryType = "date"
	QueryGeneral      QueryType = "general"
)

// Strategy names how an answer was produced.
type Strategy string

const (
	StrategyRetrieve    Strategy = "retrieve"
	StrategyNoDocuments Strategy = "no_documents"
	StrategyClarify     Strategy = "clarify"
	StrategyDirectReply Strategy = "direct_reply"
)

// RetrievedChunk is one candidate carried through the retrieval stages.
type RetrievedChunk struct {
	ChunkID  string
	DocID    string
	Source   string
	Text     string
	Citation string
	// Score is the semantic similarity for vector hits; graph-only hits
	// carry a nominal score.
	Score float64
	// Origin records which stage produced the chunk.
	Origin ChunkOrigin
	// Entities mentioned by the chunk, when known.
	Entities []string
}

// ChunkOrigin tags the retrieval stage a chunk came from.
type ChunkOrigin string

const (
	OriginSemantic  ChunkOrigin = "semantic"
	OriginGraph     ChunkOrigin = "graph"
	OriginVariation ChunkOrigin = "variation"
	OriginKeyword   ChunkOrigin = "keyword"
)

// Answer is the pipeline's final product.
type Answer struct {
	Text      string
	Strategy  Strategy
	QueryType QueryType
	RouteRule string
	Sources   []Source
	Chunks    []RetrievedChunk
	// Entities aggregates the knowledge-graph entities of the documents
	// the chunks came from.
	Entities   []graph.DocEntity
	Evaluation *Evaluation
	Attempts   int
}

// Turn is one exchange in the conversation preceding a question.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Source is a deduplicated provenance record for the answer.
type Source struct {
	DocID    string
	Filename string
	Citation string
}

// graphSearcher is the slice of the graph store retrieval needs.
type graphSearcher interface {
	TraversalRetrieve(ctx context.Context, terms []string) ([]graph.Result, error)
	QuerySimilarChunks(ctx context.Context, terms []string, limit int) ([]graph.Result, error)
	DocumentEntities(ctx context.Context, docID string) ([]graph.DocEntity, error)
}

// vectorSearcher is the slice of the vector index retrieval needs.
type vectorSearcher interface {
	Search(ctx context.Context, query []float32, k int, docFilter []string) ([]store.VectorResult, error)
}
