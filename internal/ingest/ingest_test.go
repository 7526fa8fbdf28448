package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anishks07/SupaQuery/internal/chunk"
	"github.com/anishks07/SupaQuery/internal/embed"
	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
	"github.com/anishks07/SupaQuery/internal/graph"
	"github.com/anishks07/SupaQuery/internal/store"
)

// fakeVector records operations; ids holds the chunk IDs per document.
type fakeVector struct {
	calls  *[]string
	ids    map[string][]string
	addErr error
	delErr error
}

func (f *fakeVector) Add(_ context.Context, chunks []chunk.Chunk, _ [][]float32) error {
	*f.calls = append(*f.calls, "vector.Add")
	if f.addErr != nil {
		return f.addErr
	}
	for _, c := range chunks {
		f.ids[c.DocID] = append(f.ids[c.DocID], c.ID)
	}
	return nil
}

func (f *fakeVector) Search(context.Context, []float32, int, []string) ([]store.VectorResult, error) {
	return nil, nil
}

func (f *fakeVector) DeleteDocument(_ context.Context, docID string) error {
	*f.calls = append(*f.calls, "vector.Delete")
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.ids, docID)
	return nil
}

func (f *fakeVector) ChunkIDs(docID string) []string { return f.ids[docID] }

func (f *fakeVector) DocumentIDs() []string {
	var out []string
	for id := range f.ids {
		out = append(out, id)
	}
	return out
}

func (f *fakeVector) Contains(string) bool     { return false }
func (f *fakeVector) Stats() store.VectorStats { return store.VectorStats{} }
func (f *fakeVector) Save() error              { return nil }
func (f *fakeVector) Close() error             { return nil }

type fakeKeyword struct {
	calls *[]string
	docs  map[string]bool
}

func (f *fakeKeyword) Add(_ context.Context, chunks []chunk.Chunk) error {
	*f.calls = append(*f.calls, "keyword.Add")
	for _, c := range chunks {
		f.docs[c.DocID] = true
	}
	return nil
}

func (f *fakeKeyword) Search(context.Context, string, int) ([]store.KeywordResult, error) {
	return nil, nil
}

func (f *fakeKeyword) DeleteDocument(_ context.Context, docID string) error {
	*f.calls = append(*f.calls, "keyword.Delete")
	delete(f.docs, docID)
	return nil
}

func (f *fakeKeyword) Count() (int, error) { return len(f.docs), nil }
func (f *fakeKeyword) Close() error        { return nil }

type fakeGraph struct {
	calls    *[]string
	ids      map[string][]string
	mentions map[string][]graph.Mention
	addErr   error
	delErr   error
}

func (f *fakeGraph) AddDocument(_ context.Context, doc store.Document, chunks []chunk.Chunk) error {
	*f.calls = append(*f.calls, "graph.AddDocument")
	if f.addErr != nil {
		return f.addErr
	}
	for _, c := range chunks {
		f.ids[doc.ID] = append(f.ids[doc.ID], c.ID)
	}
	return nil
}

func (f *fakeGraph) AddEntities(_ context.Context, chunkID string, mentions []graph.Mention) error {
	*f.calls = append(*f.calls, "graph.AddEntities")
	f.mentions[chunkID] = append(f.mentions[chunkID], mentions...)
	return nil
}

func (f *fakeGraph) DeleteDocument(_ context.Context, docID string) error {
	*f.calls = append(*f.calls, "graph.Delete")
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.ids, docID)
	return nil
}

func (f *fakeGraph) DocumentChunkIDs(_ context.Context, docID string) ([]string, error) {
	return f.ids[docID], nil
}

func (f *fakeGraph) DocumentIDs(context.Context) ([]string, error) {
	var out []string
	for id := range f.ids {
		out = append(out, id)
	}
	return out, nil
}

type fakeCatalog struct {
	calls *[]string
	docs  map[string]store.Document
}

func (f *fakeCatalog) Upsert(_ context.Context, doc store.Document) error {
	*f.calls = append(*f.calls, "catalog.Upsert")
	f.docs[doc.ID] = doc
	return nil
}

func (f *fakeCatalog) Get(_ context.Context, id string) (*store.Document, error) {
	if doc, ok := f.docs[id]; ok {
		return &doc, nil
	}
	return nil, nil
}

func (f *fakeCatalog) List(context.Context) ([]store.Document, error) {
	var out []store.Document
	for _, d := range f.docs {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeCatalog) Delete(_ context.Context, id string) error {
	*f.calls = append(*f.calls, "catalog.Delete")
	delete(f.docs, id)
	return nil
}

func (f *fakeCatalog) Count(context.Context) (int, error) { return len(f.docs), nil }
func (f *fakeCatalog) Close() error                       { return nil }

type testStores struct {
	calls   []string
	vector  *fakeVector
	keyword *fakeKeyword
	graph   *fakeGraph
	catalog *fakeCatalog
}

func newTestStores() *testStores {
	s := &testStores{}
	s.vector = &fakeVector{calls: &s.calls, ids: make(map[string][]string)}
	s.keyword = &fakeKeyword{calls: &s.calls, docs: make(map[string]bool)}
	s.graph = &fakeGraph{calls: &s.calls, ids: make(map[string][]string), mentions: make(map[string][]graph.Mention)}
	s.catalog = &fakeCatalog{calls: &s.calls, docs: make(map[string]store.Document)}
	return s
}

func (s *testStores) ingestor() *Ingestor {
	return NewIngestor(embed.NewStaticEmbedder(8), s.vector, s.keyword, s.graph, s.catalog, nil)
}

func testDoc() (store.Document, []chunk.Chunk) {
	doc := store.Document{ID: "doc1", Filename: "contract.pdf", Type: chunk.MediaPDF}
	chunks := []chunk.Chunk{
		{
			ID: "doc1_chunk_0", DocID: "doc1", Source: "contract.pdf", Ordinal: 0,
			Text:     "The settlement was $4 million, signed on January 5, 2024.",
			Citation: chunk.PageCitation{Pages: []int{1}, PageRange: "1"},
		},
		{
			ID: "doc1_chunk_1", DocID: "doc1", Source: "contract.pdf", Ordinal: 1,
			Text:     "Payment is due in quarterly installments.",
			Citation: chunk.PageCitation{Pages: []int{2}, PageRange: "2"},
		},
	}
	return doc, chunks
}

func TestIngest_WritesEverySideInOrder(t *testing.T) {
	s := newTestStores()
	doc, chunks := testDoc()

	res, err := s.ingestor().Ingest(context.Background(), doc, chunks)
	require.NoError(t, err)

	assert.Equal(t, "doc1", res.DocID)
	assert.Equal(t, 2, res.Chunks)

	require.GreaterOrEqual(t, len(s.calls), 4)
	assert.Equal(t, []string{"catalog.Upsert", "vector.Add", "keyword.Add", "graph.AddDocument"}, s.calls[:4])

	stored := s.catalog.docs["doc1"]
	assert.Equal(t, 2, stored.TotalChunks)
	assert.ElementsMatch(t, []string{"doc1_chunk_0", "doc1_chunk_1"}, s.vector.ids["doc1"])
	assert.ElementsMatch(t, []string{"doc1_chunk_0", "doc1_chunk_1"}, s.graph.ids["doc1"])
}

func TestIngest_ExtractsEntityMentionsWithContext(t *testing.T) {
	s := newTestStores()
	doc, chunks := testDoc()

	res, err := s.ingestor().Ingest(context.Background(), doc, chunks)
	require.NoError(t, err)

	// The first chunk carries at least a money and a date mention.
	assert.Positive(t, res.Entities)
	mentions := s.graph.mentions["doc1_chunk_0"]
	require.NotEmpty(t, mentions)
	for _, m := range mentions {
		assert.Contains(t, chunks[0].Text, m.Entity.Text)
		assert.NotEmpty(t, m.Context)
	}
}

func TestIngest_EmptyChunksRejected(t *testing.T) {
	s := newTestStores()
	doc, _ := testDoc()

	_, err := s.ingestor().Ingest(context.Background(), doc, nil)
	require.Error(t, err)
	assert.Equal(t, sqerrors.ErrCodeInvalidDocument, sqerrors.GetCode(err))
	assert.Empty(t, s.calls)
}

func TestIngest_GraphFailureAfterVectorCommitIsInconsistency(t *testing.T) {
	s := newTestStores()
	s.graph.addErr = assert.AnError
	doc, chunks := testDoc()

	_, err := s.ingestor().Ingest(context.Background(), doc, chunks)
	require.Error(t, err)
	assert.Equal(t, sqerrors.ErrCodeIndexInconsistent, sqerrors.GetCode(err))
	// The vector side committed; the maintenance pass owns the cleanup.
	assert.NotEmpty(t, s.vector.ids["doc1"])
}

func TestDelete_RemovesEverySide(t *testing.T) {
	s := newTestStores()
	doc, chunks := testDoc()
	ing := s.ingestor()
	_, err := ing.Ingest(context.Background(), doc, chunks)
	require.NoError(t, err)

	s.calls = nil
	require.NoError(t, ing.Delete(context.Background(), "doc1"))

	assert.Equal(t, []string{"catalog.Delete", "vector.Delete", "keyword.Delete", "graph.Delete"}, s.calls)
	assert.Empty(t, s.vector.ids["doc1"])
	assert.Empty(t, s.graph.ids["doc1"])
}

func TestDelete_PartialFailureReportsInconsistency(t *testing.T) {
	s := newTestStores()
	doc, chunks := testDoc()
	ing := s.ingestor()
	_, err := ing.Ingest(context.Background(), doc, chunks)
	require.NoError(t, err)

	s.graph.delErr = assert.AnError
	err = ing.Delete(context.Background(), "doc1")
	require.Error(t, err)
	assert.Equal(t, sqerrors.ErrCodeIndexInconsistent, sqerrors.GetCode(err))

	// Catalog and vector are already gone; only the graph straggles.
	assert.Empty(t, s.catalog.docs)
	assert.Empty(t, s.vector.ids["doc1"])
	assert.NotEmpty(t, s.graph.ids["doc1"])
}
