package store

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/anishks07/SupaQuery/internal/chunk"
	sqerrors "github.com/anishks07/SupaQuery/internal/errors"
)

// CatalogFile is the SQLite database under the storage root.
const CatalogFile = "catalog.db"

const catalogSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id           TEXT PRIMARY KEY,
	filename     TEXT NOT NULL,
	type         TEXT NOT NULL,
	user_id      TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	total_chunks INTEGER NOT NULL DEFAULT 0,
	page_count   INTEGER NOT NULL DEFAULT 0,
	duration     REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_documents_filename ON documents(filename);
`

// SQLiteCatalog is the relational adapter owning document identity.
type SQLiteCatalog struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteCatalog opens (or creates) the catalog database under dir.
func NewSQLiteCatalog(dir string, logger *slog.Logger) (*SQLiteCatalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := filepath.Join(dir, CatalogFile) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, sqerrors.New(sqerrors.ErrCodeCatalogFailed, "open catalog", err)
	}
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(catalogSchema); err != nil {
		db.Close()
		return nil, sqerrors.New(sqerrors.ErrCodeCatalogFailed, "apply catalog schema", err)
	}
	return &SQLiteCatalog{db: db, logger: logger}, nil
}

// Upsert inserts or replaces a document record.
func (c *SQLiteCatalog) Upsert(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return sqerrors.New(sqerrors.ErrCodeInvalidDocument, "document id is empty", nil)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO documents (id, filename, type, user_id, created_at, total_chunks, page_count, duration)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			type = excluded.type,
			user_id = excluded.user_id,
			total_chunks = excluded.total_chunks,
			page_count = excluded.page_count,
			duration = excluded.duration`,
		doc.ID, doc.Filename, string(doc.Type), doc.UserID,
		doc.CreatedAt.UTC().Format(time.RFC3339Nano),
		doc.TotalChunks, doc.PageCount, doc.Duration)
	if err != nil {
		return sqerrors.New(sqerrors.ErrCodeCatalogFailed, "upsert document", err)
	}
	return nil
}

// Get returns the document with id, or nil when absent.
func (c *SQLiteCatalog) Get(ctx context.Context, id string) (*Document, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT id, filename, type, user_id, created_at, total_chunks, page_count, duration
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, sqerrors.New(sqerrors.ErrCodeCatalogFailed, "get document", err)
	}
	return doc, nil
}

// List returns all documents ordered by creation time.
func (c *SQLiteCatalog) List(ctx context.Context) ([]Document, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, filename, type, user_id, created_at, total_chunks, page_count, duration
		FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, sqerrors.New(sqerrors.ErrCodeCatalogFailed, "list documents", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows.Scan)
		if err != nil {
			return nil, sqerrors.New(sqerrors.ErrCodeCatalogFailed, "scan document", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, sqerrors.New(sqerrors.ErrCodeCatalogFailed, "list documents", err)
	}
	return docs, nil
}

// Delete removes the document with id. Deleting an unknown id is a no-op.
func (c *SQLiteCatalog) Delete(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return sqerrors.New(sqerrors.ErrCodeCatalogFailed, "delete document", err)
	}
	return nil
}

// Count returns the number of cataloged documents.
func (c *SQLiteCatalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, sqerrors.New(sqerrors.ErrCodeCatalogFailed, "count documents", err)
	}
	return n, nil
}

// Close releases the database.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}

func scanDocument(scan func(dest ...any) error) (*Document, error) {
	var (
		doc       Document
		mediaType string
		createdAt string
	)
	err := scan(&doc.ID, &doc.Filename, &mediaType, &doc.UserID, &createdAt,
		&doc.TotalChunks, &doc.PageCount, &doc.Duration)
	if err != nil {
		return nil, err
	}
	doc.Type = chunk.MediaType(mediaType)
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		doc.CreatedAt = t
	}
	return &doc, nil
}
