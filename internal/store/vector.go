package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/anishks07/SupaQuery/internal/chunk"
	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

const (
	// VectorIndexFile holds the exported HNSW graph.
	VectorIndexFile = "vector_index.bin"
	// VectorMetadataFile holds the gob-encoded metadata sidecar.
	VectorMetadataFile = "vector_metadata.pkl"

	defaultHNSWM        = 16
	defaultHNSWEfSearch = 64
)

// metadataHeader is persisted ahead of the entries and checked on load so a
// store built with one embedding model is never searched with another.
type metadataHeader struct {
	ModelName  string
	Dimensions int
	NextKey    uint64
}

// HNSWIndex is the on-disk ANN index over chunk embeddings. A single writer
// mutates the graph; any number of readers may search concurrently.
type HNSWIndex struct {
	mu         sync.RWMutex
	graph      *hnsw.Graph[uint64]
	meta       map[uint64]VectorMeta
	keyByChunk map[string]uint64
	nextKey    uint64

	dir    string
	cfg    VectorIndexConfig
	logger *slog.Logger
}

// NewHNSWIndex opens (or creates) the vector index under dir. If a persisted
// index exists it is loaded; a metadata header recording a different embedding
// model or dimension fails fast rather than returning silently wrong results.
func NewHNSWIndex(dir string, cfg VectorIndexConfig, logger *slog.Logger) (*HNSWIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, sqerrors.New(sqerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("vector index dimensions must be positive, got %d", cfg.Dimensions), nil)
	}
	if cfg.M <= 0 {
		cfg.M = defaultHNSWM
	}
	if cfg.EfSearch <= 0 {
		cfg.EfSearch = defaultHNSWEfSearch
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, sqerrors.Wrap(sqerrors.ErrCodeInternal, err)
	}

	idx := &HNSWIndex{
		graph:      newGraph(cfg),
		meta:       make(map[uint64]VectorMeta),
		keyByChunk: make(map[string]uint64),
		nextKey:    1,
		dir:        dir,
		cfg:        cfg,
		logger:     logger,
	}

	if _, err := os.Stat(idx.metadataPath()); err == nil {
		if err := idx.load(); err != nil {
			return nil, err
		}
		logger.Debug("vector index loaded",
			"path", idx.indexPath(),
			"vectors", len(idx.meta),
			"dimensions", cfg.Dimensions)
	}
	return idx, nil
}

func newGraph(cfg VectorIndexConfig) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.EuclideanDistance
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	return g
}

func (idx *HNSWIndex) indexPath() string    { return filepath.Join(idx.dir, VectorIndexFile) }
func (idx *HNSWIndex) metadataPath() string { return filepath.Join(idx.dir, VectorMetadataFile) }

// Add indexes chunks with their embeddings. Vectors are normalized to unit
// length before insertion; an existing chunk ID is overwritten in place.
func (idx *HNSWIndex) Add(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return sqerrors.New(sqerrors.ErrCodeInvalidInput,
			fmt.Sprintf("chunk/vector count mismatch: %d chunks, %d vectors", len(chunks), len(vectors)), nil)
	}
	if len(chunks) == 0 {
		return nil
	}
	for i, vec := range vectors {
		if len(vec) != idx.cfg.Dimensions {
			return sqerrors.New(sqerrors.ErrCodeDimensionMismatch,
				ErrDimensionMismatch{Expected: idx.cfg.Dimensions, Got: len(vec)}.Error(), nil).
				WithDetail("chunk_id", chunks[i].ID)
		}
	}

	idx.mu.Lock()
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			idx.mu.Unlock()
			return err
		}
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])
		normalizeVectorInPlace(vec)

		key, seen := idx.keyByChunk[c.ID]
		if !seen {
			key = idx.nextKey
			idx.nextKey++
			idx.keyByChunk[c.ID] = key
		}
		idx.graph.Add(hnsw.MakeNode(key, vec))
		idx.meta[key] = VectorMeta{
			ChunkID:  c.ID,
			DocID:    c.DocID,
			Source:   c.Source,
			Text:     c.Text,
			Citation: chunk.EncodeCitation(c.Citation),
			Vector:   vec,
		}
	}
	idx.mu.Unlock()

	return idx.Save()
}

// Search returns the k nearest chunks to query, scored as 1/(1+distance).
// A non-empty docFilter restricts results to those documents; to compensate
// for filtered-out neighbors the underlying search fetches 2k candidates.
func (idx *HNSWIndex) Search(ctx context.Context, query []float32, k int, docFilter []string) ([]VectorResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	if len(query) != idx.cfg.Dimensions {
		return nil, sqerrors.New(sqerrors.ErrCodeDimensionMismatch,
			ErrDimensionMismatch{Expected: idx.cfg.Dimensions, Got: len(query)}.Error(), nil)
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeVectorInPlace(q)

	var allowed map[string]bool
	fetch := k
	if len(docFilter) > 0 {
		allowed = make(map[string]bool, len(docFilter))
		for _, id := range docFilter {
			allowed[id] = true
		}
		fetch = k * 2
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.graph.Len() == 0 {
		return nil, nil
	}

	nodes := idx.graph.Search(q, fetch)
	results := make([]VectorResult, 0, k)
	for _, node := range nodes {
		m, ok := idx.meta[node.Key]
		if !ok {
			continue
		}
		if allowed != nil && !allowed[m.DocID] {
			continue
		}
		d := hnsw.EuclideanDistance(q, node.Value)
		results = append(results, VectorResult{
			ChunkID:  m.ChunkID,
			DocID:    m.DocID,
			Source:   m.Source,
			Text:     m.Text,
			Citation: m.Citation,
			Distance: d,
			Score:    1 / (1 + d),
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// DeleteDocument removes every chunk of docID. The graph does not support
// point deletion, so surviving entries are replayed into a fresh graph from
// the metadata sidecar.
func (idx *HNSWIndex) DeleteDocument(ctx context.Context, docID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx.mu.Lock()
	removed := 0
	for key, m := range idx.meta {
		if m.DocID != docID {
			continue
		}
		delete(idx.meta, key)
		delete(idx.keyByChunk, m.ChunkID)
		removed++
	}
	if removed == 0 {
		idx.mu.Unlock()
		return nil
	}

	rebuilt := newGraph(idx.cfg)
	keys := make([]uint64, 0, len(idx.meta))
	for key := range idx.meta {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		rebuilt.Add(hnsw.MakeNode(key, idx.meta[key].Vector))
	}
	idx.graph = rebuilt
	idx.mu.Unlock()

	idx.logger.Info("vector index rebuilt after document delete",
		"doc_id", docID,
		"removed", removed,
		"remaining", len(keys))

	return idx.Save()
}

// ChunkIDs returns the indexed chunk IDs for docID, sorted.
func (idx *HNSWIndex) ChunkIDs(docID string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var ids []string
	for _, m := range idx.meta {
		if m.DocID == docID {
			ids = append(ids, m.ChunkID)
		}
	}
	sort.Strings(ids)
	return ids
}

// DocumentIDs returns the distinct document IDs with indexed vectors,
// sorted.
func (idx *HNSWIndex) DocumentIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, m := range idx.meta {
		if !seen[m.DocID] {
			seen[m.DocID] = true
			ids = append(ids, m.DocID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Contains reports whether chunkID is indexed.
func (idx *HNSWIndex) Contains(chunkID string) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	_, ok := idx.keyByChunk[chunkID]
	return ok
}

// Stats returns index counts.
func (idx *HNSWIndex) Stats() VectorStats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	docs := make(map[string]struct{})
	for _, m := range idx.meta {
		docs[m.DocID] = struct{}{}
	}
	return VectorStats{
		TotalVectors: len(idx.meta),
		Dimensions:   idx.cfg.Dimensions,
		Documents:    len(docs),
	}
}

// Save persists the graph and metadata atomically (write to .tmp, rename).
func (idx *HNSWIndex) Save() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := idx.saveGraphLocked(); err != nil {
		return err
	}
	return idx.saveMetadataLocked()
}

func (idx *HNSWIndex) saveGraphLocked() error {
	tmp := idx.indexPath() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return sqerrors.Wrap(sqerrors.ErrCodeInternal, err)
	}
	if err := idx.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return sqerrors.New(sqerrors.ErrCodeInternal, "export vector index", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return sqerrors.Wrap(sqerrors.ErrCodeInternal, err)
	}
	if err := os.Rename(tmp, idx.indexPath()); err != nil {
		os.Remove(tmp)
		return sqerrors.Wrap(sqerrors.ErrCodeInternal, err)
	}
	return nil
}

func (idx *HNSWIndex) saveMetadataLocked() error {
	tmp := idx.metadataPath() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return sqerrors.Wrap(sqerrors.ErrCodeInternal, err)
	}
	enc := gob.NewEncoder(f)
	header := metadataHeader{
		ModelName:  idx.cfg.ModelName,
		Dimensions: idx.cfg.Dimensions,
		NextKey:    idx.nextKey,
	}
	if err := enc.Encode(header); err != nil {
		f.Close()
		os.Remove(tmp)
		return sqerrors.New(sqerrors.ErrCodeInternal, "encode vector metadata header", err)
	}
	if err := enc.Encode(idx.meta); err != nil {
		f.Close()
		os.Remove(tmp)
		return sqerrors.New(sqerrors.ErrCodeInternal, "encode vector metadata", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return sqerrors.Wrap(sqerrors.ErrCodeInternal, err)
	}
	if err := os.Rename(tmp, idx.metadataPath()); err != nil {
		os.Remove(tmp)
		return sqerrors.Wrap(sqerrors.ErrCodeInternal, err)
	}
	return nil
}

func (idx *HNSWIndex) load() error {
	mf, err := os.Open(idx.metadataPath())
	if err != nil {
		return sqerrors.Wrap(sqerrors.ErrCodeCorruptIndex, err)
	}
	defer mf.Close()

	dec := gob.NewDecoder(mf)
	var header metadataHeader
	if err := dec.Decode(&header); err != nil {
		return sqerrors.New(sqerrors.ErrCodeCorruptIndex, "decode vector metadata header", err).
			WithSuggestion("delete the storage directory and re-ingest")
	}
	if header.ModelName != idx.cfg.ModelName || header.Dimensions != idx.cfg.Dimensions {
		return sqerrors.New(sqerrors.ErrCodeModelMismatch,
			fmt.Sprintf("index built with model %q (%d dims), configured model is %q (%d dims)",
				header.ModelName, header.Dimensions, idx.cfg.ModelName, idx.cfg.Dimensions), nil).
			WithSuggestion("re-ingest with the configured model, or restore embedding.model in config")
	}

	meta := make(map[uint64]VectorMeta)
	if err := dec.Decode(&meta); err != nil {
		return sqerrors.New(sqerrors.ErrCodeCorruptIndex, "decode vector metadata", err).
			WithSuggestion("delete the storage directory and re-ingest")
	}

	gf, err := os.Open(idx.indexPath())
	if err != nil {
		return sqerrors.Wrap(sqerrors.ErrCodeCorruptIndex, err)
	}
	defer gf.Close()

	graph := newGraph(idx.cfg)
	if err := graph.Import(bufio.NewReader(gf)); err != nil {
		return sqerrors.New(sqerrors.ErrCodeCorruptIndex, "import vector index", err).
			WithSuggestion("delete the storage directory and re-ingest")
	}

	idx.graph = graph
	idx.meta = meta
	idx.nextKey = header.NextKey
	idx.keyByChunk = make(map[string]uint64, len(meta))
	for key, m := range meta {
		idx.keyByChunk[m.ChunkID] = key
		if key >= idx.nextKey {
			idx.nextKey = key + 1
		}
	}
	return nil
}

// Close flushes the index to disk.
func (idx *HNSWIndex) Close() error {
	return idx.Save()
}

func normalizeVectorInPlace(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
