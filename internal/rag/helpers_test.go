package rag

import (
	"context"
	"strings"
	"sync"

	"github.com/anishks07/SupaQuery/internal/graph"
	"github.com/anishks07/SupaQuery/internal/llm"
	"github.com/anishks07/SupaQuery/internal/store"
)

// fakeLLM serves canned responses matched by prompt substring, in rule
// order, and records every prompt it saw.
type fakeLLM struct {
	mu       sync.Mutex
	rules    []llmRule
	seqRules []llmSeqRule
	err      error
	prompts  []string
}

type llmRule struct {
	contains string
	response string
}

type llmSeqRule struct {
	contains  string
	responses []string
}

func (f *fakeLLM) respond(contains, response string) *fakeLLM {
	f.rules = append(f.rules, llmRule{contains: contains, response: response})
	return f
}

// respondSeq serves one response per matching call, in order, for prompts
// whose answer must change across attempts.
func (f *fakeLLM) respondSeq(contains string, responses ...string) *fakeLLM {
	f.seqRules = append(f.seqRules, llmSeqRule{contains: contains, responses: responses})
	return f
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ *llm.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	for i := range f.seqRules {
		rule := &f.seqRules[i]
		if strings.Contains(prompt, rule.contains) && len(rule.responses) > 0 {
			response := rule.responses[0]
			rule.responses = rule.responses[1:]
			return response, nil
		}
	}
	for _, rule := range f.rules {
		if strings.Contains(prompt, rule.contains) {
			return rule.response, nil
		}
	}
	return "", nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message, opts *llm.Options) (string, error) {
	var b strings.Builder
	for _, m := range messages {
		b.WriteString(m.Role + ": " + m.Content + "\n")
	}
	return f.Generate(ctx, b.String(), opts)
}

func (f *fakeLLM) Available(context.Context) bool { return f.err == nil }
func (f *fakeLLM) ModelName() string              { return "fake" }
func (f *fakeLLM) Close() error                   { return nil }

// fakeVector returns preset hits regardless of the query vector.
type fakeVector struct {
	hits  []store.VectorResult
	err   error
	calls int
}

func (f *fakeVector) Search(_ context.Context, _ []float32, k int, docFilter []string) ([]store.VectorResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	allowed := make(map[string]bool)
	for _, id := range docFilter {
		allowed[id] = true
	}
	var out []store.VectorResult
	for _, h := range f.hits {
		if len(allowed) > 0 && !allowed[h.DocID] {
			continue
		}
		out = append(out, h)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// fakeGraph returns preset traversal, similarity, and entity results.
type fakeGraph struct {
	traversal    []graph.Result
	traversalErr error
	similar      []graph.Result
	similarErr   error
	similarCalls int
	docEntities  map[string][]graph.DocEntity
}

func (f *fakeGraph) TraversalRetrieve(context.Context, []string) ([]graph.Result, error) {
	return f.traversal, f.traversalErr
}

func (f *fakeGraph) QuerySimilarChunks(context.Context, []string, int) ([]graph.Result, error) {
	f.similarCalls++
	return f.similar, f.similarErr
}

func (f *fakeGraph) DocumentEntities(_ context.Context, docID string) ([]graph.DocEntity, error) {
	return f.docEntities[docID], nil
}

// fakeCatalog is an in-memory store.Catalog.
type fakeCatalog struct {
	docs []store.Document
}

func (f *fakeCatalog) Upsert(_ context.Context, doc store.Document) error {
	f.docs = append(f.docs, doc)
	return nil
}

func (f *fakeCatalog) Get(_ context.Context, id string) (*store.Document, error) {
	for i := range f.docs {
		if f.docs[i].ID == id {
			return &f.docs[i], nil
		}
	}
	return nil, nil
}

func (f *fakeCatalog) List(context.Context) ([]store.Document, error) { return f.docs, nil }

func (f *fakeCatalog) Delete(_ context.Context, id string) error {
	out := f.docs[:0]
	for _, d := range f.docs {
		if d.ID != id {
			out = append(out, d)
		}
	}
	f.docs = out
	return nil
}

func (f *fakeCatalog) Count(context.Context) (int, error) { return len(f.docs), nil }
func (f *fakeCatalog) Close() error                       { return nil }

func vectorHit(chunkID, docID, source, text string, score float32) store.VectorResult {
	return store.VectorResult{
		ChunkID: chunkID,
		DocID:   docID,
		Source:  source,
		Text:    text,
		Score:   score,
	}
}

func graphHit(chunkID, docID, source, text string, matches int) graph.Result {
	return graph.Result{
		ChunkID:    chunkID,
		DocID:      docID,
		Source:     source,
		Text:       text,
		MatchCount: matches,
	}
}
