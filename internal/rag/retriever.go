package rag

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/anishks07/SupaQuery/internal/embed"
	"github.com/anishks07/SupaQuery/internal/entity"
	"github.com/anishks07/SupaQuery/internal/graph"
	"github.com/anishks07/SupaQuery/internal/store"
)

const (
	// DefaultTopK is the number of chunks handed to generation.
	DefaultTopK = 5
	// DefaultSemanticK is the vector search fan-out.
	DefaultSemanticK = 20

	// graphHitScore is the nominal semantic score for chunks only the
	// graph produced.
	graphHitScore = 0.5
)

// RetrieverConfig tunes the retrieval stages.
type RetrieverConfig struct {
	TopK      int
	SemanticK int
}

// Retriever runs hybrid retrieval: vector search and graph traversal in
// parallel, merge, entity/filename filtering, lexical rerank, and a
// variation pass over the remaining query phrasings.
type Retriever struct {
	embedder  embed.Embedder
	vector    vectorSearcher
	graph     graphSearcher
	keyword   store.KeywordIndex
	extractor *entity.Extractor
	reranker  *LexicalReranker
	cfg       RetrieverConfig
	logger    *slog.Logger
}

// NewRetriever wires the retrieval stages. graph and keyword may be nil;
// their stages are skipped (keyword only backs the variation pass when the
// graph is unreachable).
func NewRetriever(
	embedder embed.Embedder,
	vector vectorSearcher,
	graphStore graphSearcher,
	keyword store.KeywordIndex,
	cfg RetrieverConfig,
	logger *slog.Logger,
) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.SemanticK <= 0 {
		cfg.SemanticK = DefaultSemanticK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder:  embedder,
		vector:    vector,
		graph:     graphStore,
		keyword:   keyword,
		extractor: entity.NewExtractor(),
		reranker:  NewLexicalReranker(),
		cfg:       cfg,
		logger:    logger,
	}
}

// Options widens retrieval on evaluator-driven retries.
type RetrieveOptions struct {
	// TopK overrides the configured top-k when positive.
	TopK int
	// UseEntities forces the graph stages even for queries with few
	// extracted entities.
	UseEntities bool
	// DocFilter restricts vector search to these document IDs.
	DocFilter []string
}

// Retrieve runs the full stage sequence. queries carries the original
// question first and its paraphrases after. Graph failures degrade to
// vector-only results rather than failing retrieval.
func (r *Retriever) Retrieve(ctx context.Context, queries []string, opts RetrieveOptions) ([]RetrievedChunk, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	original := queries[0]
	topK := r.cfg.TopK
	if opts.TopK > 0 {
		topK = opts.TopK
	}

	terms := r.queryTerms(original)

	// Stage 1+2: vector search and graph traversal in parallel.
	var semantic []RetrievedChunk
	var traversal []RetrievedChunk

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := r.semanticSearch(gctx, original, opts.DocFilter)
		if err != nil {
			return err
		}
		semantic = hits
		return nil
	})
	if r.graph != nil && len(terms) > 0 {
		g.Go(func() error {
			results, err := r.graph.TraversalRetrieve(gctx, terms)
			if err != nil {
				r.logger.Warn("graph traversal unavailable, continuing with vector results", "error", err)
				return nil
			}
			traversal = graphChunks(results)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Stage 3: merge, semantic copies win on collision.
	merged := mergeChunks(semantic, traversal)

	// Entity-focused retries pull in chunks sharing the query's entities
	// even when traversal missed them.
	if opts.UseEntities && r.graph != nil && len(terms) > 0 {
		if results, err := r.graph.QuerySimilarChunks(ctx, terms, topK); err == nil {
			merged = mergeChunks(merged, graphChunks(results))
		}
	}

	// Stage 4: narrow to documents named in the query, never to nothing.
	merged = r.smartFilter(original, merged)

	// Stage 5: lexical rerank down to 2*topK.
	reranked := r.reranker.Rerank(original, merged, 2*topK)

	// Stage 6: variation pass adds graph neighbors of the paraphrases.
	reranked = r.variationPass(ctx, queries[1:], reranked, topK)

	// Stage 7: final truncation.
	if len(reranked) > 2*topK {
		reranked = reranked[:2*topK]
	}
	r.annotateEntities(reranked)
	return reranked, nil
}

// annotateEntities records the entity mentions of each surviving chunk so
// context assembly can summarize them.
func (r *Retriever) annotateEntities(chunks []RetrievedChunk) {
	for i := range chunks {
		seen := make(map[string]bool)
		for _, e := range r.extractor.Extract(chunks[i].Text) {
			if seen[e.Text] {
				continue
			}
			seen[e.Text] = true
			chunks[i].Entities = append(chunks[i].Entities, e.Text)
		}
	}
}

// DocumentEntities aggregates the graph's entities for the given documents,
// deduplicated by (name, type) and ordered by mention count. An unreachable
// graph yields an empty result rather than an error.
func (r *Retriever) DocumentEntities(ctx context.Context, docIDs []string) []graph.DocEntity {
	if r.graph == nil || len(docIDs) == 0 {
		return nil
	}
	type entityKey struct{ name, typ string }
	seen := make(map[entityKey]bool)
	var entities []graph.DocEntity
	for _, id := range docIDs {
		docEnts, err := r.graph.DocumentEntities(ctx, id)
		if err != nil {
			r.logger.Debug("document entity lookup failed", "doc_id", id, "error", err)
			continue
		}
		for _, e := range docEnts {
			k := entityKey{e.Name, e.Type}
			if seen[k] {
				continue
			}
			seen[k] = true
			entities = append(entities, e)
		}
	}
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Mentions > entities[j].Mentions
	})
	return entities
}

func (r *Retriever) semanticSearch(ctx context.Context, query string, docFilter []string) ([]RetrievedChunk, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := r.vector.Search(ctx, vec, r.cfg.SemanticK, docFilter)
	if err != nil {
		return nil, err
	}
	chunks := make([]RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, RetrievedChunk{
			ChunkID:  h.ChunkID,
			DocID:    h.DocID,
			Source:   h.Source,
			Text:     h.Text,
			Citation: h.Citation,
			Score:    float64(h.Score),
			Origin:   OriginSemantic,
		})
	}
	return chunks, nil
}

// queryTerms extracts entity mentions from the query for the graph stages,
// falling back to significant words when extraction finds nothing.
func (r *Retriever) queryTerms(query string) []string {
	var terms []string
	for _, e := range r.extractor.Extract(query) {
		terms = append(terms, e.Text)
	}
	if len(terms) == 0 {
		terms = significantWords(query)
	}
	return terms
}

var queryStopWords = map[string]bool{
	"what": true, "when": true, "where": true, "which": true, "who": true,
	"how": true, "does": true, "the": true, "this": true, "that": true,
	"with": true, "from": true, "about": true, "have": true, "been": true,
	"were": true, "was": true, "are": true, "and": true, "for": true,
}

func significantWords(query string) []string {
	var words []string
	for _, w := range tokenizeQuery(query) {
		if len(w) >= 4 && !queryStopWords[w] {
			words = append(words, w)
		}
	}
	return words
}

func graphChunks(results []graph.Result) []RetrievedChunk {
	chunks := make([]RetrievedChunk, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, RetrievedChunk{
			ChunkID:  res.ChunkID,
			DocID:    res.DocID,
			Source:   res.Source,
			Text:     res.Text,
			Citation: res.Citation,
			Score:    graphHitScore,
			Origin:   OriginGraph,
		})
	}
	return chunks
}

// mergeKey identifies a chunk across retrieval paths. The text-prefix hash
// catches chunks indexed before chunk IDs were stable.
func mergeKey(c RetrievedChunk) string {
	if c.ChunkID != "" {
		return c.ChunkID
	}
	prefix := c.Text
	if len(prefix) > 100 {
		prefix = prefix[:100]
	}
	h := fnv.New64a()
	h.Write([]byte(prefix))
	return fmt.Sprintf("text:%x", h.Sum64())
}

// mergeChunks unions the two result sets. When both paths return the same
// chunk the semantic copy wins, keeping its real similarity score.
func mergeChunks(semantic, traversal []RetrievedChunk) []RetrievedChunk {
	merged := make([]RetrievedChunk, 0, len(semantic)+len(traversal))
	seen := make(map[string]bool, len(semantic))
	for _, c := range semantic {
		seen[mergeKey(c)] = true
		merged = append(merged, c)
	}
	for _, c := range traversal {
		if seen[mergeKey(c)] {
			continue
		}
		seen[mergeKey(c)] = true
		merged = append(merged, c)
	}
	return merged
}

// smartFilter narrows candidates to documents the query names. Entity
// mentions extracted from the query are matched against chunk source
// filenames; when no filename matches, chunk text is tried instead. A
// filter that would empty the set is discarded.
func (r *Retriever) smartFilter(query string, chunks []RetrievedChunk) []RetrievedChunk {
	if len(chunks) == 0 {
		return chunks
	}
	tokens := r.filterTokens(query)
	if len(tokens) == 0 {
		return chunks
	}

	bySource := matchChunks(chunks, tokens, func(c RetrievedChunk) string { return c.Source })
	if len(bySource) > 0 {
		return bySource
	}
	byText := matchChunks(chunks, tokens, func(c RetrievedChunk) string { return c.Text })
	if len(byText) > 0 {
		return byText
	}
	r.logger.Debug("entity filter matched nothing, keeping unfiltered candidates",
		"tokens", len(tokens))
	return chunks
}

// filterTokens lowercases the query's entity mentions, keeping each full
// name and its individual words of three or more characters.
func (r *Retriever) filterTokens(query string) []string {
	seen := make(map[string]bool)
	var tokens []string
	for _, e := range r.extractor.Extract(query) {
		name := strings.ToLower(e.Text)
		for _, tok := range append(strings.Fields(name), name) {
			if len(tok) >= 3 && !seen[tok] {
				seen[tok] = true
				tokens = append(tokens, tok)
			}
		}
	}
	return tokens
}

func matchChunks(chunks []RetrievedChunk, tokens []string, field func(RetrievedChunk) string) []RetrievedChunk {
	var matched []RetrievedChunk
	for _, c := range chunks {
		text := strings.ToLower(field(c))
		for _, tok := range tokens {
			if strings.Contains(text, tok) {
				matched = append(matched, c)
				break
			}
		}
	}
	return matched
}

// variationPass asks the graph for chunks similar to each paraphrase and
// appends any the earlier stages missed, stopping once the candidate set
// holds 2*topK chunks. When the graph is down the keyword index stands
// in; when both are down the pass is skipped.
func (r *Retriever) variationPass(ctx context.Context, variations []string, chunks []RetrievedChunk, topK int) []RetrievedChunk {
	if len(variations) == 0 {
		return chunks
	}
	seen := make(map[string]bool, len(chunks))
	for _, c := range chunks {
		seen[mergeKey(c)] = true
	}

	for _, variation := range variations {
		if len(chunks) >= 2*topK {
			break
		}
		for _, c := range r.variationChunks(ctx, variation, topK) {
			if seen[mergeKey(c)] {
				continue
			}
			seen[mergeKey(c)] = true
			chunks = append(chunks, c)
		}
	}
	return chunks
}

func (r *Retriever) variationChunks(ctx context.Context, variation string, topK int) []RetrievedChunk {
	if r.graph != nil {
		results, err := r.graph.QuerySimilarChunks(ctx, significantWords(variation), topK)
		if err == nil {
			chunks := graphChunks(results)
			for i := range chunks {
				chunks[i].Origin = OriginVariation
			}
			return chunks
		}
		r.logger.Debug("graph variation query failed, trying keyword index", "error", err)
	}
	if r.keyword == nil {
		return nil
	}
	hits, err := r.keyword.Search(ctx, variation, topK)
	if err != nil {
		r.logger.Debug("keyword variation query failed", "error", err)
		return nil
	}
	chunks := make([]RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, RetrievedChunk{
			ChunkID:  h.ChunkID,
			DocID:    h.DocID,
			Source:   h.Source,
			Text:     h.Text,
			Citation: h.Citation,
			Score:    graphHitScore,
			Origin:   OriginVariation,
		})
	}
	return chunks
}
