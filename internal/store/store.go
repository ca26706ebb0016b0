// Package store provides the SQLite-backed metadata store for uploaded
// documents and their chunks. The store is the system of record for document
// identity: the autoincrement document id is minted here and then used to
// derive vector point ids, so a document's metadata is always committed
// before its vectors are written.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Document is the metadata record for one uploaded file.
type Document struct {
	// ID is the autoincrement primary key, also the file_id carried in
	// vector payloads.
	ID int64
	// Filename is the original upload filename.
	Filename string
	// ContentType is the MIME type declared by the client, if any.
	ContentType string
	// SizeBytes is the raw upload size.
	SizeBytes int64
	// ChunkCount is the number of stored chunks; zero when a document has
	// metadata but no chunks.
	ChunkCount int64
	// CreatedAt is when the document was persisted.
	CreatedAt time.Time
}

// DocumentStore persists document and chunk metadata. Implementations must
// be safe for concurrent use.
type DocumentStore interface {
	// CreateDocumentWithChunks inserts the document record and all of its
	// chunk texts in one transaction and returns the new document id.
	CreateDocumentWithChunks(ctx context.Context, filename, contentType string, sizeBytes int64, chunks []string) (int64, error)
	// ListDocuments returns all documents with their chunk counts, newest
	// first.
	ListDocuments(ctx context.Context) ([]Document, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a DocumentStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the document database,
// data/app.db relative to the working directory, creating the directory if
// needed. Override via SQLITE_PATH.
func DefaultDBPath() (string, error) {
	dir := "data"
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "app.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS uploaded_files (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    filename     TEXT    NOT NULL,
    content_type TEXT    NOT NULL DEFAULT '',
    size_bytes   INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE TABLE IF NOT EXISTS file_chunks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id     INTEGER NOT NULL REFERENCES uploaded_files(id),
    chunk_index INTEGER NOT NULL,
    content     TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_file_chunks_file
    ON file_chunks (file_id, chunk_index);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// CreateDocumentWithChunks inserts the document record and its chunks in a
// single transaction so a crash cannot leave chunks without a parent row.
func (s *SQLiteStore) CreateDocumentWithChunks(ctx context.Context, filename, contentType string, sizeBytes int64, chunks []string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		`INSERT INTO uploaded_files (filename, content_type, size_bytes, created_at) VALUES (?, ?, ?, ?)`,
		filename, contentType, sizeBytes, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("store: insert document: %w", err)
	}
	docID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: document id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO file_chunks (file_id, chunk_index, content) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		if _, err := stmt.ExecContext(ctx, docID, i, chunk); err != nil {
			return 0, fmt.Errorf("store: insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return docID, nil
}

// ListDocuments returns all documents with their chunk counts, newest first.
// Documents whose chunks were never written still appear with a zero count.
func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]Document, error) {
	const q = `
SELECT f.id, f.filename, f.content_type, f.size_bytes, f.created_at,
       COUNT(c.id) AS chunk_count
FROM   uploaded_files f
LEFT   JOIN file_chunks c ON c.file_id = f.id
GROUP  BY f.id
ORDER  BY f.created_at DESC, f.id DESC`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var ts int64
		if err := rows.Scan(&d.ID, &d.Filename, &d.ContentType, &d.SizeBytes, &ts, &d.ChunkCount); err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		d.CreatedAt = time.Unix(ts, 0)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list rows: %w", err)
	}
	return docs, nil
}

// Ping verifies the database is reachable. Satisfies the server's readiness
// Pinger interface.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Name identifies the store in readiness reports.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
