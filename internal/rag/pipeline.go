package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
	"github.com/anishks07/SupaQuery/internal/graph"
	"github.com/anishks07/SupaQuery/internal/llm"
	"github.com/anishks07/SupaQuery/internal/store"
)

// DefaultMaxRetries bounds evaluation-driven retries; with the initial
// attempt that is three generations at most.
const DefaultMaxRetries = 2

// extractFallbackChars is how much of the best chunk an extractive fallback
// answer quotes when generation fails.
const extractFallbackChars = 500

const answerSystemPrompt = "You are a document assistant. Answer the question using only the " +
	"provided context. Name the source documents you drew from. If the context does not " +
	"contain the answer, say so plainly instead of guessing."

// entityContextChunks caps the excerpts carried alongside the entity
// roster, which leads the context for entity questions.
const entityContextChunks = 3

// systemPrompt appends type-specific instructions to the base prompt.
func systemPrompt(queryType QueryType) string {
	switch queryType {
	case QueryEntity:
		return answerSystemPrompt + " When asked about people or organizations, list every " +
			"entity from the known-entities section as **Name** (Type) without elaborating."
	case QueryDate:
		return answerSystemPrompt + " When asked about dates or events, extract every date " +
			"or time period from the context and present them in chronological order."
	case QuerySummary:
		return answerSystemPrompt + " When summarizing, cover the main findings and key " +
			"points concisely, organized logically."
	default:
		return answerSystemPrompt
	}
}

// userPrompt renders the final prompt, with an instruction tail matching
// the question's type.
func userPrompt(query, contextText string, queryType QueryType) string {
	switch queryType {
	case QueryEntity:
		return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nList all people and organizations "+
			"mentioned above, one per line as \"- **Name** (Type)\".", contextText, query)
	case QueryDate:
		return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nList every date or time period "+
			"found in the context as \"- [Date]: event\".", contextText, query)
	default:
		return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", contextText, query)
	}
}

// PipelineConfig tunes the ask pipeline.
type PipelineConfig struct {
	TopK             int
	ContextBudget    int
	MaxRetries       int
	QualityThreshold float64
	// MultiQuery and Evaluation toggle those stages.
	MultiQuery bool
	Evaluation bool
}

// Pipeline answers questions end to end: route, classify, expand, retrieve,
// generate, evaluate, retry.
type Pipeline struct {
	classifier *Classifier
	router     *Router
	expander   *MultiQueryGenerator
	retriever  *Retriever
	evaluator  *Evaluator
	client     llm.Client
	catalog    store.Catalog
	cfg        PipelineConfig
	logger     *slog.Logger
}

// NewPipeline wires the pipeline stages.
func NewPipeline(
	client llm.Client,
	retriever *Retriever,
	catalog store.Catalog,
	cfg PipelineConfig,
	logger *slog.Logger,
) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.ContextBudget <= 0 {
		cfg.ContextBudget = DefaultContextBudget
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier: NewClassifier(),
		router:     NewRouter(),
		expander:   NewMultiQueryGenerator(client, DefaultVariations, logger),
		retriever:  retriever,
		evaluator:  NewEvaluator(client, cfg.QualityThreshold, logger),
		client:     client,
		catalog:    catalog,
		cfg:        cfg,
		logger:     logger,
	}
}

// AskOptions narrows one ask. Zero values mean no restriction.
type AskOptions struct {
	// DocFilter restricts retrieval to these document IDs.
	DocFilter []string
	// TopK overrides the configured top-k when positive.
	TopK int
	// History conditions query expansion on the preceding conversation.
	History []Turn
}

// Ask answers one question. Invalid input is the only error; dependency
// trouble degrades to the best answer the surviving stages can produce.
func (p *Pipeline) Ask(ctx context.Context, query string) (*Answer, error) {
	return p.AskWith(ctx, query, AskOptions{})
}

// AskWith is Ask with a per-request document filter and top-k override.
func (p *Pipeline) AskWith(ctx context.Context, query string, askOpts AskOptions) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, sqerrors.New(sqerrors.ErrCodeQueryEmpty, "question is empty", nil)
	}

	docs, err := p.catalog.List(ctx)
	if err != nil {
		return nil, err
	}

	// An empty corpus never reaches the LLM; the envelope is stock.
	if len(docs) == 0 {
		return &Answer{
			Text: "You haven't uploaded any documents yet. Ingest a document first, " +
				"then ask me about its contents.",
			Strategy:  StrategyNoDocuments,
			QueryType: p.classifier.Classify(query),
			Attempts:  0,
		}, nil
	}

	route := p.router.Route(query, len(docs))
	switch route.Decision {
	case DecideDirectReply:
		return &Answer{
			Text:      route.Reply,
			Strategy:  StrategyDirectReply,
			QueryType: p.classifier.Classify(query),
			RouteRule: route.RuleID,
		}, nil
	case DecideClarify:
		return &Answer{
			Text:      route.Reply,
			Strategy:  StrategyClarify,
			QueryType: p.classifier.Classify(query),
			RouteRule: route.RuleID,
		}, nil
	}

	queryType := p.classifier.Classify(query)
	if queryType == QueryDocumentList {
		return p.answerDocumentList(docs, route.RuleID), nil
	}

	return p.answerWithRetrieval(ctx, query, queryType, route.RuleID, docs, askOpts)
}

// answerDocumentList is answered from the catalog alone.
func (p *Pipeline) answerDocumentList(docs []store.Document, ruleID string) *Answer {
	var b strings.Builder
	fmt.Fprintf(&b, "You have %d document(s):\n", len(docs))
	sources := make([]Source, 0, len(docs))
	for _, doc := range docs {
		fmt.Fprintf(&b, "- %s (%s, %d chunks)\n", doc.Filename, doc.Type, doc.TotalChunks)
		sources = append(sources, Source{DocID: doc.ID, Filename: doc.Filename})
	}
	return &Answer{
		Text:      strings.TrimRight(b.String(), "\n"),
		Strategy:  StrategyRetrieve,
		QueryType: QueryDocumentList,
		RouteRule: ruleID,
		Sources:   sources,
	}
}

func (p *Pipeline) answerWithRetrieval(ctx context.Context, query string, queryType QueryType, ruleID string, docs []store.Document, askOpts AskOptions) (*Answer, error) {
	queries := []string{query}
	if p.cfg.MultiQuery {
		queries = p.expander.GenerateWith(ctx, query, askOpts.History)
	}

	var best *Answer
	activeQuery := query
	opts := RetrieveOptions{TopK: p.cfg.TopK, DocFilter: askOpts.DocFilter}
	if askOpts.TopK > 0 {
		opts.TopK = askOpts.TopK
	}

	maxAttempts := 1
	if p.cfg.Evaluation {
		maxAttempts = p.cfg.MaxRetries + 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			queries[0] = activeQuery
		}

		chunks, err := p.retriever.Retrieve(ctx, queries, opts)
		if err != nil {
			return nil, err
		}
		entities := p.retriever.DocumentEntities(ctx, chunkDocIDs(chunks))

		answerText, generated := p.generate(ctx, activeQuery, queryType, chunks, entities, askOpts.History)
		candidate := &Answer{
			Text:      answerText,
			Strategy:  StrategyRetrieve,
			QueryType: queryType,
			RouteRule: ruleID,
			Chunks:    chunks,
			Sources:   collectSources(chunks, docs),
			Entities:  entities,
			Attempts:  attempt,
		}

		if !p.cfg.Evaluation {
			return candidate, nil
		}

		eval := p.evaluator.Evaluate(ctx, query, answerText, chunks)
		candidate.Evaluation = &eval

		if best == nil || eval.Overall > best.Evaluation.Overall {
			best = candidate
		}
		if eval.Sufficient || attempt == maxAttempts {
			break
		}
		// Retrying cannot improve on an extractive fallback while the LLM
		// is down; the scored first attempt stands.
		if !generated {
			p.logger.Warn("generation unavailable, skipping retries")
			break
		}

		p.logger.Info("answer below threshold, retrying",
			"attempt", attempt,
			"overall", eval.Overall,
			"expand_search", eval.Retry.ExpandSearch,
			"use_entities", eval.Retry.UseEntities,
			"refine_query", eval.Retry.RefineQuery)

		opts.TopK = eval.Retry.TopK
		opts.UseEntities = eval.Retry.UseEntities
		if eval.Retry.ExpandSearch && len(queries) == 1 {
			queries = p.expander.GenerateWith(ctx, query, askOpts.History)
		}
		if eval.Retry.RefineQuery {
			activeQuery = p.refineQuery(ctx, query)
		}
	}

	// The best attempt stands even when every attempt fell short.
	return best, nil
}

// generate produces the answer text. When the LLM is unreachable the answer
// degrades to an extract of the best chunk rather than failing the ask; the
// second return value reports whether the LLM actually generated the text.
// With conversation history the chat endpoint carries the turns; otherwise
// a single completion suffices.
func (p *Pipeline) generate(ctx context.Context, query string, queryType QueryType, chunks []RetrievedChunk, entities []graph.DocEntity, history []Turn) (string, bool) {
	contextText := p.assembleContext(queryType, chunks, entities)
	if contextText == "" {
		return "I couldn't find anything relevant to that in your documents.", true
	}

	prompt := userPrompt(query, contextText, queryType)
	opts := &llm.Options{System: systemPrompt(queryType), Long: true}

	var answer string
	var err error
	if len(history) > 0 {
		messages := make([]llm.Message, 0, len(history)+1)
		for _, turn := range history {
			messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
		}
		messages = append(messages, llm.Message{Role: "user", Content: prompt})
		answer, err = p.client.Chat(ctx, messages, opts)
	} else {
		answer, err = p.client.Generate(ctx, prompt, opts)
	}
	if err != nil {
		p.logger.Warn("generation failed, falling back to extract", sqerrors.LogAttrs(err)...)
		return extractiveFallback(chunks), false
	}
	return strings.TrimSpace(answer), true
}

// assembleContext renders the prompt context. Entity questions lead with
// the entity roster and carry only a few excerpts; everything else gets
// the full excerpt context.
func (p *Pipeline) assembleContext(queryType QueryType, chunks []RetrievedChunk, entities []graph.DocEntity) string {
	if queryType == QueryEntity && len(entities) > 0 {
		head := chunks
		if len(head) > entityContextChunks {
			head = head[:entityContextChunks]
		}
		parts := []string{entityRoster(entities)}
		if excerpts := BuildContext(head, p.cfg.ContextBudget/2); excerpts != "" {
			parts = append(parts, excerpts)
		}
		return strings.Join(parts, "\n\n")
	}
	return BuildContext(chunks, p.cfg.ContextBudget)
}

// chunkDocIDs lists the distinct documents the chunks came from, in rank
// order.
func chunkDocIDs(chunks []RetrievedChunk) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, c := range chunks {
		if c.DocID == "" || seen[c.DocID] {
			continue
		}
		seen[c.DocID] = true
		ids = append(ids, c.DocID)
	}
	return ids
}

// extractiveFallback quotes the top-ranked chunk directly.
func extractiveFallback(chunks []RetrievedChunk) string {
	if len(chunks) == 0 {
		return "I couldn't find anything relevant to that in your documents."
	}
	top := chunks[0]
	text := strings.TrimSpace(top.Text)
	if len(text) > extractFallbackChars {
		text = text[:extractFallbackChars] + "..."
	}
	return fmt.Sprintf("I couldn't generate a full answer right now, but the most relevant passage (from %s) is:\n\n%s",
		sourceLabel(top), text)
}

// refineQuery asks the LLM for a sharper phrasing; on failure the original
// stands.
func (p *Pipeline) refineQuery(ctx context.Context, query string) string {
	prompt := fmt.Sprintf(
		"Rewrite this question to be more specific and searchable, keeping its meaning. "+
			"Reply with the rewritten question only.\n\nQuestion: %s", query)
	refined, err := p.client.Generate(ctx, prompt, &llm.Options{Temperature: 0.3})
	if err != nil {
		return query
	}
	refined = strings.Trim(strings.TrimSpace(refined), `"'`)
	if len(refined) < minVariationChars {
		return query
	}
	return refined
}

// collectSources deduplicates provenance per document and citation.
func collectSources(chunks []RetrievedChunk, docs []store.Document) []Source {
	filenames := make(map[string]string, len(docs))
	for _, d := range docs {
		filenames[d.ID] = d.Filename
	}

	seen := make(map[string]bool)
	var sources []Source
	for _, c := range chunks {
		key := c.DocID + "|" + c.Citation
		if seen[key] {
			continue
		}
		seen[key] = true
		filename := filenames[c.DocID]
		if filename == "" {
			filename = c.Source
		}
		sources = append(sources, Source{
			DocID:    c.DocID,
			Filename: filename,
			Citation: c.Citation,
		})
	}
	return sources
}
