package ingest

import (
	"context"
	"time"
)

// InconsistencyKind categorizes a cross-store divergence.
type InconsistencyKind string

const (
	// KindMissingGraphChunk is a chunk indexed in the vector store but
	// absent from the graph.
	KindMissingGraphChunk InconsistencyKind = "missing_graph_chunk"
	// KindMissingVectorChunk is a chunk present in the graph but absent
	// from the vector store.
	KindMissingVectorChunk InconsistencyKind = "missing_vector_chunk"
	// KindOrphanVectorDoc is vector state for a document the catalog no
	// longer knows.
	KindOrphanVectorDoc InconsistencyKind = "orphan_vector_document"
	// KindOrphanGraphDoc is graph state for a document the catalog no
	// longer knows.
	KindOrphanGraphDoc InconsistencyKind = "orphan_graph_document"
)

// Inconsistency is one detected divergence.
type Inconsistency struct {
	Kind    InconsistencyKind
	DocID   string
	ChunkID string
}

// ConsistencyReport is the outcome of a maintenance pass.
type ConsistencyReport struct {
	DocumentsChecked int
	Inconsistencies  []Inconsistency
	// Repaired counts the orphan documents swept from the derived stores.
	Repaired int
	Duration time.Duration
}

// Clean reports whether the stores agree.
func (r *ConsistencyReport) Clean() bool { return len(r.Inconsistencies) == 0 }

// CheckConsistency compares chunk IDs between the vector index and the
// graph for every cataloged document, and finds derived state for documents
// the catalog no longer holds. With repair set, orphan documents are deleted
// from the derived stores; the catalog always wins. Chunk-level divergence
// within a cataloged document is reported but not repaired, since repairing
// it needs the original payload re-ingested.
func (in *Ingestor) CheckConsistency(ctx context.Context, repair bool) (*ConsistencyReport, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	start := time.Now()
	report := &ConsistencyReport{}

	docs, err := in.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	cataloged := make(map[string]bool, len(docs))
	for _, doc := range docs {
		cataloged[doc.ID] = true
	}

	for _, doc := range docs {
		report.DocumentsChecked++
		graphIDs, err := in.graph.DocumentChunkIDs(ctx, doc.ID)
		if err != nil {
			return nil, err
		}
		report.Inconsistencies = append(report.Inconsistencies,
			diffChunkIDs(doc.ID, in.vector.ChunkIDs(doc.ID), graphIDs)...)
	}

	orphans := in.findOrphans(ctx, cataloged, report)
	if repair {
		for docID := range orphans {
			if err := in.sweepOrphan(ctx, docID); err != nil {
				in.logger.Warn("orphan sweep failed", "doc_id", docID, "error", err)
				continue
			}
			report.Repaired++
		}
	}

	report.Duration = time.Since(start)
	if !report.Clean() {
		in.logger.Warn("index inconsistency detected",
			"documents", report.DocumentsChecked,
			"inconsistencies", len(report.Inconsistencies),
			"repaired", report.Repaired)
	}
	return report, nil
}

func diffChunkIDs(docID string, vectorIDs, graphIDs []string) []Inconsistency {
	inVector := make(map[string]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		inVector[id] = true
	}
	inGraph := make(map[string]bool, len(graphIDs))
	for _, id := range graphIDs {
		inGraph[id] = true
	}

	var found []Inconsistency
	for _, id := range vectorIDs {
		if !inGraph[id] {
			found = append(found, Inconsistency{Kind: KindMissingGraphChunk, DocID: docID, ChunkID: id})
		}
	}
	for _, id := range graphIDs {
		if !inVector[id] {
			found = append(found, Inconsistency{Kind: KindMissingVectorChunk, DocID: docID, ChunkID: id})
		}
	}
	return found
}

// findOrphans records derived-store documents missing from the catalog and
// returns their IDs.
func (in *Ingestor) findOrphans(ctx context.Context, cataloged map[string]bool, report *ConsistencyReport) map[string]bool {
	orphans := make(map[string]bool)
	for _, docID := range in.vector.DocumentIDs() {
		if !cataloged[docID] {
			orphans[docID] = true
			report.Inconsistencies = append(report.Inconsistencies,
				Inconsistency{Kind: KindOrphanVectorDoc, DocID: docID})
		}
	}
	graphDocs, err := in.graph.DocumentIDs(ctx)
	if err != nil {
		in.logger.Warn("graph document listing failed, skipping graph orphan scan", "error", err)
		return orphans
	}
	for _, docID := range graphDocs {
		if !cataloged[docID] {
			orphans[docID] = true
			report.Inconsistencies = append(report.Inconsistencies,
				Inconsistency{Kind: KindOrphanGraphDoc, DocID: docID})
		}
	}
	return orphans
}

func (in *Ingestor) sweepOrphan(ctx context.Context, docID string) error {
	if err := in.vector.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	if err := in.keyword.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	return in.graph.DeleteDocument(ctx, docID)
}
