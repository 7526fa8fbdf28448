package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/anishks07/SupaQuery/internal/chunk"
	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

// KeywordIndexDir is the bleve index directory under the storage root.
const KeywordIndexDir = "keyword_index.bleve"

const keywordBatchSize = 500

// keywordDoc is the shape indexed into bleve for each chunk.
type keywordDoc struct {
	Content  string `json:"content"`
	DocID    string `json:"doc_id"`
	Source   string `json:"source"`
	Citation string `json:"citation"`
}

// BleveIndex is the persistent BM25 keyword index over chunk text.
type BleveIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
}

// NewBleveIndex opens (or creates) the keyword index under dir. A corrupt
// index directory is cleared and recreated; keyword search is derived state
// that re-ingestion restores.
func NewBleveIndex(dir string, logger *slog.Logger) (*BleveIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	path := filepath.Join(dir, KeywordIndexDir)

	index, err := openOrCreateBleve(path)
	if err != nil {
		logger.Warn("keyword index unreadable, recreating", "path", path, "error", err)
		if rmErr := os.RemoveAll(path); rmErr != nil {
			return nil, sqerrors.New(sqerrors.ErrCodeCorruptIndex, "clear corrupt keyword index", rmErr)
		}
		index, err = openOrCreateBleve(path)
		if err != nil {
			return nil, sqerrors.New(sqerrors.ErrCodeCorruptIndex, "recreate keyword index", err)
		}
	}
	return &BleveIndex{index: index, path: path, logger: logger}, nil
}

// NewMemOnlyBleveIndex builds an in-memory keyword index, used in tests.
func NewMemOnlyBleveIndex(logger *slog.Logger) (*BleveIndex, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m, err := buildIndexMapping()
	if err != nil {
		return nil, sqerrors.Wrap(sqerrors.ErrCodeInternal, err)
	}
	index, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, sqerrors.Wrap(sqerrors.ErrCodeInternal, err)
	}
	return &BleveIndex{index: index, logger: logger}, nil
}

func openOrCreateBleve(path string) (bleve.Index, error) {
	index, err := bleve.Open(path)
	if err == nil {
		return index, nil
	}
	if err != bleve.ErrorIndexPathDoesNotExist {
		return nil, err
	}
	m, err := buildIndexMapping()
	if err != nil {
		return nil, err
	}
	return bleve.New(path, m)
}

func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     WordTokenizerName,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = TextAnalyzerName

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name

	storedField := bleve.NewTextFieldMapping()
	storedField.Analyzer = keyword.Name
	storedField.IncludeInAll = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", contentField)
	docMapping.AddFieldMappingsAt("doc_id", idField)
	docMapping.AddFieldMappingsAt("source", storedField)
	docMapping.AddFieldMappingsAt("citation", storedField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = TextAnalyzerName
	return indexMapping, nil
}

// Add indexes chunks in batches keyed by chunk ID; re-adding a chunk ID
// replaces the previous entry.
func (b *BleveIndex) Add(ctx context.Context, chunks []chunk.Chunk) error {
	batch := b.index.NewBatch()
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc := keywordDoc{
			Content:  c.Text,
			DocID:    c.DocID,
			Source:   c.Source,
			Citation: chunk.EncodeCitation(c.Citation),
		}
		if err := batch.Index(c.ID, doc); err != nil {
			return sqerrors.New(sqerrors.ErrCodeInternal, "batch keyword document", err)
		}
		if batch.Size() >= keywordBatchSize {
			if err := b.index.Batch(batch); err != nil {
				return sqerrors.New(sqerrors.ErrCodeInternal, "flush keyword batch", err)
			}
			batch = b.index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := b.index.Batch(batch); err != nil {
			return sqerrors.New(sqerrors.ErrCodeInternal, "flush keyword batch", err)
		}
	}
	return nil
}

// Search runs a BM25-scored match query over chunk text. Matched terms are
// collected from hit locations.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]KeywordResult, error) {
	if query == "" {
		return nil, sqerrors.New(sqerrors.ErrCodeQueryEmpty, "keyword query is empty", nil)
	}
	if limit <= 0 {
		limit = 10
	}

	match := bleve.NewMatchQuery(query)
	match.SetField("content")

	request := bleve.NewSearchRequest(match)
	request.Size = limit
	request.Fields = []string{"content", "doc_id", "source", "citation"}
	request.IncludeLocations = true

	result, err := b.index.SearchInContext(ctx, request)
	if err != nil {
		return nil, sqerrors.New(sqerrors.ErrCodeSearchFailed, "keyword search", err)
	}

	results := make([]KeywordResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		r := KeywordResult{
			ChunkID: hit.ID,
			Score:   hit.Score,
		}
		if v, ok := hit.Fields["content"].(string); ok {
			r.Text = v
		}
		if v, ok := hit.Fields["doc_id"].(string); ok {
			r.DocID = v
		}
		if v, ok := hit.Fields["source"].(string); ok {
			r.Source = v
		}
		if v, ok := hit.Fields["citation"].(string); ok {
			r.Citation = v
		}
		if locs, ok := hit.Locations["content"]; ok {
			for term := range locs {
				r.MatchedTerms = append(r.MatchedTerms, term)
			}
			sort.Strings(r.MatchedTerms)
		}
		results = append(results, r)
	}
	return results, nil
}

// DeleteDocument removes every chunk indexed for docID.
func (b *BleveIndex) DeleteDocument(ctx context.Context, docID string) error {
	term := bleve.NewTermQuery(docID)
	term.SetField("doc_id")

	for {
		request := bleve.NewSearchRequest(term)
		request.Size = keywordBatchSize

		result, err := b.index.SearchInContext(ctx, request)
		if err != nil {
			return sqerrors.New(sqerrors.ErrCodeSearchFailed, "find document chunks", err)
		}
		if len(result.Hits) == 0 {
			return nil
		}

		batch := b.index.NewBatch()
		for _, hit := range result.Hits {
			batch.Delete(hit.ID)
		}
		if err := b.index.Batch(batch); err != nil {
			return sqerrors.New(sqerrors.ErrCodeInternal, "delete keyword batch", err)
		}
	}
}

// Count returns the number of indexed chunks.
func (b *BleveIndex) Count() (int, error) {
	n, err := b.index.DocCount()
	if err != nil {
		return 0, sqerrors.Wrap(sqerrors.ErrCodeInternal, err)
	}
	return int(n), nil
}

// Close releases the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
