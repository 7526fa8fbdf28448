// Package service wires SupaQuery's components into one container: config
// in, catalog/indexes/graph/embedder/LLM constructed in dependency order,
// closed in reverse. There are no package-level singletons; everything hangs
// off the Service.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/anishks07/SupaQuery/internal/config"
	"github.com/anishks07/SupaQuery/internal/embed"
	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
	"github.com/anishks07/SupaQuery/internal/graph"
	"github.com/anishks07/SupaQuery/internal/ingest"
	"github.com/anishks07/SupaQuery/internal/llm"
	"github.com/anishks07/SupaQuery/internal/rag"
	"github.com/anishks07/SupaQuery/internal/store"
)

// embedCacheSize is the LRU capacity of the embedding cache.
const embedCacheSize = 2048

// Options tunes service construction per command.
type Options struct {
	// Writer acquires the storage lock and requires a reachable graph
	// store. Commands that mutate the indexes set this.
	Writer bool
	// SkipOllamaCheck constructs the embedder without probing the model
	// list, for commands that never embed.
	SkipOllamaCheck bool
}

// Service is the assembled engine.
type Service struct {
	Config    *config.Config
	Logger    *slog.Logger
	Catalog   store.Catalog
	Vector    store.VectorIndex
	Keyword   store.KeywordIndex
	Graph     *graph.Store
	Embedder  embed.Embedder
	LLM       llm.Client
	Ingestor  *ingest.Ingestor
	Retriever *rag.Retriever
	Pipeline  *rag.Pipeline

	lock    *ingest.StorageLock
	closers []func() error
}

// New builds the service. The graph store is optional for read paths:
// when it is unreachable queries degrade to vector-only retrieval, but
// writer commands fail fast.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{Config: cfg, Logger: logger}

	if opts.Writer {
		s.lock = ingest.NewStorageLock(cfg.Storage.Path)
		if err := s.lock.Acquire(); err != nil {
			return nil, err
		}
		s.closers = append(s.closers, s.lock.Release)
	}

	catalog, err := store.NewSQLiteCatalog(cfg.Storage.Path, logger)
	if err != nil {
		return nil, s.closeAfter(err)
	}
	s.Catalog = catalog
	s.closers = append(s.closers, catalog.Close)

	vector, err := store.NewHNSWIndex(cfg.Storage.Path, store.VectorIndexConfig{
		Dimensions: cfg.Embedding.Dimensions,
		ModelName:  cfg.Embedding.Model,
	}, logger)
	if err != nil {
		return nil, s.closeAfter(err)
	}
	s.Vector = vector
	s.closers = append(s.closers, vector.Close)

	keyword, err := store.NewBleveIndex(cfg.Storage.Path, logger)
	if err != nil {
		return nil, s.closeAfter(err)
	}
	s.Keyword = keyword
	s.closers = append(s.closers, keyword.Close)

	graphStore, err := graph.NewStore(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, graph.Options{
		Timeout:  time.Duration(cfg.GraphTimeout()) * time.Second,
		MaxDepth: cfg.Retrieval.GraphMaxDepth,
		MaxNodes: cfg.Retrieval.GraphMaxNodes,
		Logger:   logger,
	})
	if err != nil {
		if opts.Writer {
			return nil, s.closeAfter(err)
		}
		logger.Warn("graph store unreachable, retrieval degrades to vector-only", sqerrors.LogAttrs(err)...)
	} else {
		s.Graph = graphStore
		s.closers = append(s.closers, func() error { return graphStore.Close(context.Background()) })
	}

	embedder, err := s.buildEmbedder(ctx, opts)
	if err != nil {
		return nil, s.closeAfter(err)
	}
	s.Embedder = embedder
	s.closers = append(s.closers, embedder.Close)

	client := llm.NewOllamaClient(llm.Config{
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		Timeout:         time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		GenerateTimeout: time.Duration(cfg.LLM.GenerateTimeoutSeconds) * time.Second,
		MaxConcurrent:   cfg.LLM.MaxConcurrent,
		Temperature:     cfg.LLM.Temperature,
		MaxTokens:       cfg.LLM.MaxTokens,
		Logger:          logger,
	})
	s.LLM = client
	s.closers = append(s.closers, client.Close)

	retrieverCfg := rag.RetrieverConfig{
		TopK:      cfg.Retrieval.TopK,
		SemanticK: cfg.Retrieval.SemanticK,
	}
	// A typed nil *graph.Store inside the interface would defeat the
	// retriever's nil checks, so the nil case passes nil explicitly.
	var retriever *rag.Retriever
	if s.Graph != nil {
		retriever = rag.NewRetriever(embedder, s.Vector, s.Graph, s.Keyword, retrieverCfg, logger)
	} else {
		retriever = rag.NewRetriever(embedder, s.Vector, nil, s.Keyword, retrieverCfg, logger)
	}
	s.Retriever = retriever

	s.Pipeline = rag.NewPipeline(client, retriever, s.Catalog, rag.PipelineConfig{
		TopK:             cfg.Retrieval.TopK,
		ContextBudget:    cfg.Retrieval.ContextBudget,
		MaxRetries:       cfg.Evaluation.MaxRetries,
		QualityThreshold: cfg.Evaluation.QualityThreshold,
		MultiQuery:       cfg.Features.MultiQueryEnabled(),
		Evaluation:       cfg.Features.EvaluationEnabled(),
	}, logger)

	if s.Graph != nil {
		s.Ingestor = ingest.NewIngestor(embedder, s.Vector, s.Keyword, s.Graph, s.Catalog, logger)
	}

	return s, nil
}

func (s *Service) buildEmbedder(ctx context.Context, opts Options) (embed.Embedder, error) {
	inner, err := embed.NewOllamaEmbedder(ctx, embed.OllamaConfig{
		Host:            s.Config.LLM.BaseURL,
		Model:           s.Config.Embedding.Model,
		Dimensions:      s.Config.Embedding.Dimensions,
		SkipHealthCheck: opts.SkipOllamaCheck,
	})
	if err != nil {
		return nil, err
	}
	return embed.NewCachedEmbedder(inner, embedCacheSize), nil
}

// closeAfter tears down what was already built and returns err.
func (s *Service) closeAfter(err error) error {
	s.close()
	return err
}

func (s *Service) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.Logger.Warn("close failed", "error", err)
		}
	}
	s.closers = nil
}

// Close releases every component in reverse construction order.
func (s *Service) Close() error {
	s.close()
	return nil
}

// RequireIngestor returns the ingestor or the graph-unavailable error for
// commands that must write.
func (s *Service) RequireIngestor() (*ingest.Ingestor, error) {
	if s.Ingestor == nil {
		return nil, sqerrors.UnavailableError("graph",
			"ingestion requires the graph store", nil).
			WithSuggestion("start the graph store on " + s.Config.Graph.URI)
	}
	return s.Ingestor, nil
}

// Ask answers a question through the pipeline.
func (s *Service) Ask(ctx context.Context, question string, opts rag.AskOptions) (*rag.Answer, error) {
	return s.Pipeline.AskWith(ctx, question, opts)
}

// IngestPayload ingests a parser payload. Requires the graph store.
func (s *Service) IngestPayload(ctx context.Context, payload []byte) (*ingest.Result, error) {
	ing, err := s.RequireIngestor()
	if err != nil {
		return nil, err
	}
	return ing.IngestPayload(ctx, payload)
}

// DeleteDocument removes a document from every index side.
func (s *Service) DeleteDocument(ctx context.Context, docID string) error {
	ing, err := s.RequireIngestor()
	if err != nil {
		return err
	}
	return ing.Delete(ctx, docID)
}

// Search runs a BM25 keyword lookup over the chunk text. No embedding or
// generation is involved, so it works with Ollama down.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]rag.RetrievedChunk, error) {
	if query == "" {
		return nil, sqerrors.New(sqerrors.ErrCodeQueryEmpty, "search terms are empty", nil)
	}
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	results, err := s.Keyword.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	chunks := make([]rag.RetrievedChunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, rag.RetrievedChunk{
			ChunkID:  r.ChunkID,
			DocID:    r.DocID,
			Source:   r.Source,
			Text:     r.Text,
			Citation: r.Citation,
			Score:    r.Score,
			Origin:   rag.OriginKeyword,
		})
	}
	return chunks, nil
}

// ListDocuments returns the catalog contents.
func (s *Service) ListDocuments(ctx context.Context) ([]store.Document, error) {
	return s.Catalog.List(ctx)
}

// Stats aggregates cross-store totals for the stats surfaces.
type Stats struct {
	Documents    int               `json:"documents"`
	Vector       store.VectorStats `json:"vector"`
	KeywordDocs  int               `json:"keyword_docs"`
	Graph        *graph.Stats      `json:"graph,omitempty"`
	EmbedModel   string            `json:"embed_model"`
	LLMModel     string            `json:"llm_model"`
	LLMAvailable bool              `json:"llm_available"`
}

// Stats collects counts from every side. Unreachable sides are reported as
// zero or absent rather than failing the call.
func (s *Service) Stats(ctx context.Context) Stats {
	stats := Stats{
		Vector:       s.Vector.Stats(),
		EmbedModel:   s.Embedder.ModelName(),
		LLMModel:     s.LLM.ModelName(),
		LLMAvailable: s.LLM.Available(ctx),
	}
	if n, err := s.Catalog.Count(ctx); err == nil {
		stats.Documents = n
	}
	if n, err := s.Keyword.Count(); err == nil {
		stats.KeywordDocs = n
	}
	if s.Graph != nil {
		if g, err := s.Graph.Stats(ctx); err == nil {
			stats.Graph = &g
		}
	}
	return stats
}
