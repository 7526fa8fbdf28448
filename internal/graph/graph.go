// Package graph maintains the knowledge graph side of the dual index:
// Document -CONTAINS-> Chunk -MENTIONS-> Entity nodes reached over a
// Cypher endpoint (Bolt, default port 7687).
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anishks07/SupaQuery/internal/chunk"
	"github.com/anishks07/SupaQuery/internal/entity"
	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
	"github.com/anishks07/SupaQuery/internal/store"
)

const (
	// DefaultTimeout bounds each graph query.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxDepth bounds traversal hops from a seed entity.
	DefaultMaxDepth = 2
	// DefaultMaxNodes bounds chunks returned by a traversal.
	DefaultMaxNodes = 15

	similarRetries = 2
)

// cypherRunner executes one parameterized Cypher statement and returns its
// records. The production runner speaks Bolt; tests script responses.
type cypherRunner interface {
	Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
	Close(ctx context.Context) error
}

// Result is one chunk surfaced by a graph query.
type Result struct {
	ChunkID  string
	DocID    string
	Source   string
	Text     string
	Citation string
	// MatchCount is the number of query entities the chunk mentions.
	MatchCount int
}

// Stats summarizes graph contents.
type Stats struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
	Entities  int `json:"entities"`
	Mentions  int `json:"mentions"`
}

// Options tunes a Store; zero values take defaults.
type Options struct {
	Timeout  time.Duration
	MaxDepth int
	MaxNodes int
	Logger   *slog.Logger
}

// Store is the graph adapter. All writes are MERGE-based, so re-ingesting a
// document is idempotent.
type Store struct {
	runner   cypherRunner
	timeout  time.Duration
	maxDepth int
	maxNodes int
	logger   *slog.Logger
}

func newStore(runner cypherRunner, opts Options) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxNodes <= 0 {
		opts.MaxNodes = DefaultMaxNodes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Store{
		runner:   runner,
		timeout:  opts.Timeout,
		maxDepth: opts.MaxDepth,
		maxNodes: opts.MaxNodes,
		logger:   opts.Logger,
	}
}

func (s *Store) run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	records, err := s.runner.Run(ctx, query, params)
	if err != nil {
		return nil, s.mapError(err)
	}
	return records, nil
}

func (s *Store) mapError(err error) error {
	var se *sqerrors.SupaError
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sqerrors.TimeoutError("graph", "graph query timed out", err)
	}
	return sqerrors.UnavailableError("graph", "graph query failed", err)
}

// EnsureSchema creates the uniqueness constraints and indexes MERGE relies
// on. Safe to call on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE CONSTRAINT document_id IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE`,
		`CREATE CONSTRAINT chunk_id IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE`,
		`CREATE INDEX entity_name_type IF NOT EXISTS FOR (e:Entity) ON (e.name, e.type)`,
	}
	for _, stmt := range statements {
		if _, err := s.run(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}

// AddDocument merges the document node, its chunk nodes, and the CONTAINS
// edges. Existing nodes are updated in place.
func (s *Store) AddDocument(ctx context.Context, doc store.Document, chunks []chunk.Chunk) error {
	if doc.ID == "" {
		return sqerrors.New(sqerrors.ErrCodeInvalidDocument, "document id is empty", nil)
	}

	_, err := s.run(ctx, `
		MERGE (d:Document {id: $id})
		SET d.filename = $filename, d.type = $type, d.user_id = $user_id`,
		map[string]any{
			"id":       doc.ID,
			"filename": doc.Filename,
			"type":     string(doc.Type),
			"user_id":  doc.UserID,
		})
	if err != nil {
		return err
	}

	rows := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		rows = append(rows, map[string]any{
			"id":       c.ID,
			"text":     c.Text,
			"ordinal":  c.Ordinal,
			"source":   c.Source,
			"citation": chunk.EncodeCitation(c.Citation),
		})
	}
	_, err = s.run(ctx, `
		MATCH (d:Document {id: $doc_id})
		UNWIND $chunks AS row
		MERGE (c:Chunk {id: row.id})
		SET c.text = row.text, c.ordinal = row.ordinal,
		    c.source = row.source, c.citation = row.citation, c.doc_id = $doc_id
		MERGE (d)-[:CONTAINS]->(c)`,
		map[string]any{"doc_id": doc.ID, "chunks": rows})
	return err
}

// MentionContextLimit bounds the context snippet stored on a MENTIONS edge.
const MentionContextLimit = 500

// Mention is one entity observation within a chunk, with the surrounding
// text it was seen in.
type Mention struct {
	Entity entity.Entity
	// Context is the originating snippet, truncated to MentionContextLimit.
	Context string
}

// AddEntities merges entity nodes for one chunk and the MENTIONS edges.
// Entity identity is (name, type). mention_count is recomputed from the
// inbound MENTIONS edges after the merge, so re-running ingestion for a
// chunk never inflates it. The edge keeps the context snippet of the
// first observation.
func (s *Store) AddEntities(ctx context.Context, chunkID string, mentions []Mention) error {
	if len(mentions) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(mentions))
	for _, m := range mentions {
		snippet := m.Context
		if len(snippet) > MentionContextLimit {
			snippet = snippet[:MentionContextLimit]
		}
		rows = append(rows, map[string]any{
			"name": m.Entity.Text, "type": m.Entity.Type, "context": snippet,
		})
	}
	_, err := s.run(ctx, `
		MATCH (c:Chunk {id: $chunk_id})
		UNWIND $entities AS row
		MERGE (e:Entity {name: row.name, type: row.type})
		MERGE (c)-[m:MENTIONS]->(e)
		ON CREATE SET m.context = row.context
		WITH DISTINCT e
		SET e.mention_count = count { (e)<-[:MENTIONS]-(:Chunk) }`,
		map[string]any{"chunk_id": chunkID, "entities": rows})
	return err
}

// QuerySimilarChunks finds chunks mentioning entities that match any of the
// given terms, ordered by how many terms they match. A timeout is retried up
// to two times with a halved limit; if every attempt times out the result is
// empty rather than an error, since graph hits only enrich retrieval.
func (s *Store) QuerySimilarChunks(ctx context.Context, terms []string, limit int) ([]Result, error) {
	terms = normalizeTerms(terms)
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}

	for attempt := 0; ; attempt++ {
		records, err := s.run(ctx, `
			MATCH (c:Chunk)-[:MENTIONS]->(e:Entity)
			WHERE any(term IN $terms WHERE toLower(e.name) CONTAINS term)
			WITH c, count(DISTINCT e) AS matches
			ORDER BY matches DESC, c.id
			LIMIT $limit
			RETURN c.id AS chunk_id, c.doc_id AS doc_id, c.source AS source,
			       c.text AS text, c.citation AS citation, matches`,
			map[string]any{"terms": terms, "limit": limit})
		if err == nil {
			return resultsFromRecords(records), nil
		}
		if !sqerrors.IsTimeout(err) {
			return nil, err
		}
		if attempt >= similarRetries {
			s.logger.Warn("graph similarity query kept timing out, returning no graph hits",
				"terms", len(terms), "final_limit", limit)
			return nil, nil
		}
		limit = max(limit/2, 1)
		s.logger.Debug("graph similarity query timed out, retrying",
			"attempt", attempt+1, "limit", limit)
	}
}

// TraversalRetrieve walks MENTIONS edges out from entities matching the
// terms, up to maxDepth hops, collecting at most maxNodes chunks.
func (s *Store) TraversalRetrieve(ctx context.Context, terms []string) ([]Result, error) {
	terms = normalizeTerms(terms)
	if len(terms) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		MATCH (seed:Entity)
		WHERE any(term IN $terms WHERE toLower(seed.name) CONTAINS term)
		MATCH (seed)<-[:MENTIONS*1..%d]-(c:Chunk)
		WITH c, count(DISTINCT seed) AS matches
		ORDER BY matches DESC, c.id
		LIMIT $limit
		RETURN c.id AS chunk_id, c.doc_id AS doc_id, c.source AS source,
		       c.text AS text, c.citation AS citation, matches`, s.maxDepth)

	records, err := s.run(ctx, query, map[string]any{"terms": terms, "limit": s.maxNodes})
	if err != nil {
		return nil, err
	}
	return resultsFromRecords(records), nil
}

// DocEntity is one entity aggregated over a document's chunks.
type DocEntity struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Mentions int    `json:"mentions"`
}

// DocumentEntities returns every entity mentioned by docID's chunks with
// the number of mentioning chunks, most mentioned first.
func (s *Store) DocumentEntities(ctx context.Context, docID string) ([]DocEntity, error) {
	records, err := s.run(ctx, `
		MATCH (:Document {id: $id})-[:CONTAINS]->(c:Chunk)-[:MENTIONS]->(e:Entity)
		RETURN e.name AS name, e.type AS type, count(DISTINCT c) AS mentions
		ORDER BY mentions DESC, name`,
		map[string]any{"id": docID})
	if err != nil {
		return nil, err
	}
	entities := make([]DocEntity, 0, len(records))
	for _, rec := range records {
		e := DocEntity{Mentions: intField(rec, "mentions")}
		e.Name, _ = rec["name"].(string)
		e.Type, _ = rec["type"].(string)
		if e.Name == "" {
			continue
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// DeleteDocument removes the document, its chunks, and any entities left
// with no remaining mentions. Entities shared with other documents keep
// their counters consistent: each loses exactly the MENTIONS edges the
// deleted chunks contributed. Deleting an unknown document is a no-op.
func (s *Store) DeleteDocument(ctx context.Context, docID string) error {
	// Shared entities first: subtract the edges about to disappear.
	_, err := s.run(ctx, `
		MATCH (:Document {id: $id})-[:CONTAINS]->(:Chunk)-[m:MENTIONS]->(e:Entity)
		WITH e, count(m) AS lost
		SET e.mention_count = coalesce(e.mention_count, lost) - lost`,
		map[string]any{"id": docID})
	if err != nil {
		return err
	}

	_, err = s.run(ctx, `
		MATCH (d:Document {id: $id})
		OPTIONAL MATCH (d)-[:CONTAINS]->(c:Chunk)
		DETACH DELETE d, c`,
		map[string]any{"id": docID})
	if err != nil {
		return err
	}

	// Orphan sweep: entities whose every mentioning chunk is gone.
	_, err = s.run(ctx, `
		MATCH (e:Entity)
		WHERE NOT (e)<-[:MENTIONS]-(:Chunk)
		DETACH DELETE e`, nil)
	return err
}

// DocumentIDs returns every document ID the graph holds, used by
// consistency checks to find stragglers the catalog no longer knows.
func (s *Store) DocumentIDs(ctx context.Context) ([]string, error) {
	records, err := s.run(ctx, `MATCH (d:Document) RETURN d.id AS doc_id ORDER BY d.id`, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if id, ok := rec["doc_id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// DocumentChunkIDs returns the chunk IDs the graph holds for docID, used by
// consistency checks against the vector index.
func (s *Store) DocumentChunkIDs(ctx context.Context, docID string) ([]string, error) {
	records, err := s.run(ctx, `
		MATCH (:Document {id: $id})-[:CONTAINS]->(c:Chunk)
		RETURN c.id AS chunk_id ORDER BY c.id`,
		map[string]any{"id": docID})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if id, ok := rec["chunk_id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Stats returns node and edge counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	records, err := s.run(ctx, `
		RETURN count { MATCH (d:Document) } AS documents,
		       count { MATCH (c:Chunk) } AS chunks,
		       count { MATCH (e:Entity) } AS entities,
		       count { MATCH ()-[m:MENTIONS]->() } AS mentions`, nil)
	if err != nil {
		return Stats{}, err
	}
	if len(records) == 0 {
		return Stats{}, nil
	}
	rec := records[0]
	return Stats{
		Documents: intField(rec, "documents"),
		Chunks:    intField(rec, "chunks"),
		Entities:  intField(rec, "entities"),
		Mentions:  intField(rec, "mentions"),
	}, nil
}

// Ping verifies the endpoint answers a trivial query.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.run(ctx, `RETURN 1 AS ok`, nil)
	return err
}

// Close releases the underlying connection.
func (s *Store) Close(ctx context.Context) error {
	return s.runner.Close(ctx)
}

func normalizeTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func resultsFromRecords(records []map[string]any) []Result {
	results := make([]Result, 0, len(records))
	for _, rec := range records {
		r := Result{MatchCount: intField(rec, "matches")}
		r.ChunkID, _ = rec["chunk_id"].(string)
		r.DocID, _ = rec["doc_id"].(string)
		r.Source, _ = rec["source"].(string)
		r.Text, _ = rec["text"].(string)
		r.Citation, _ = rec["citation"].(string)
		if r.ChunkID == "" {
			continue
		}
		results = append(results, r)
	}
	return results
}

func intField(rec map[string]any, key string) int {
	switch v := rec[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}
