// Package ingest implements the document ingestion pipeline. It validates an
// upload, extracts its text, chunks it, embeds the chunks, persists the
// metadata, and upserts the vectors into the index. The metadata write
// commits before the vector upsert because the vector point ids are derived
// from the document id the store mints.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/54b3r/supportbot-go/internal/chunker"
	"github.com/54b3r/supportbot-go/internal/extract"
	"github.com/54b3r/supportbot-go/internal/rag"
)

// Validation errors returned before any state is written. The HTTP layer
// maps these to 400 responses.
var (
	// ErrUnsupportedType is returned for files that are neither .txt nor .pdf.
	ErrUnsupportedType = errors.New("ingest: unsupported file type, only .txt and .pdf are allowed")
	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("ingest: file is empty")
	// ErrNoExtractableText is returned when extraction yields no usable text.
	ErrNoExtractableText = errors.New("ingest: no extractable text in file")
	// ErrNoChunks is returned when chunking produces nothing, which happens
	// for whitespace-only documents.
	ErrNoChunks = errors.New("ingest: document produced no chunks")
	// ErrTooManyChunks is returned when a document exceeds the per-document
	// chunk ceiling that keeps derived point ids collision-free.
	ErrTooManyChunks = errors.New("ingest: document exceeds the chunk limit")
)

// UpsertError reports a vector upsert failure that happened after the
// document metadata was already committed. The caller should surface the
// document id so the inconsistency can be repaired by re-ingesting.
type UpsertError struct {
	// DocumentID is the committed metadata record left without vectors.
	DocumentID int64
	// ChunkCount is how many chunks were stored for the document.
	ChunkCount int
	// Err is the underlying index failure.
	Err error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("ingest: vector upsert failed for document %d (%d chunks stored): %v",
		e.DocumentID, e.ChunkCount, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }

// documentWriter is the slice of the metadata store the pipeline needs.
type documentWriter interface {
	CreateDocumentWithChunks(ctx context.Context, filename, contentType string, sizeBytes int64, chunks []string) (int64, error)
}

// Result summarizes a successful ingestion.
type Result struct {
	// DocumentID is the id minted by the metadata store.
	DocumentID int64
	// ChunksStored is the number of chunks persisted and indexed.
	ChunksStored int
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// MaxCharsPerChunk is the maximum characters per chunk. Defaults to
	// chunker.DefaultMaxChars if zero.
	MaxCharsPerChunk int

	// MaxChunksPerFile caps the chunks a single document may produce.
	// Defaults to rag.DefaultMaxChunksPerFile if zero.
	MaxChunksPerFile int64
}

// Pipeline orchestrates the validate → extract → chunk → embed → persist →
// upsert flow for one uploaded document at a time.
type Pipeline struct {
	// embedder converts text chunks into dense vector embeddings.
	embedder rag.Embedder

	// index receives the embedded chunks.
	index rag.VectorIndex

	// docs persists document and chunk metadata.
	docs documentWriter

	// cfg holds the resolved pipeline configuration.
	cfg Config

	log *slog.Logger
}

// New constructs a Pipeline from the provided dependencies and config.
func New(embedder rag.Embedder, index rag.VectorIndex, docs documentWriter, cfg Config, log *slog.Logger) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingest: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("ingest: index must not be nil")
	}
	if docs == nil {
		return nil, fmt.Errorf("ingest: document store must not be nil")
	}
	if cfg.MaxCharsPerChunk <= 0 {
		cfg.MaxCharsPerChunk = chunker.DefaultMaxChars
	}
	if cfg.MaxChunksPerFile <= 0 {
		cfg.MaxChunksPerFile = rag.DefaultMaxChunksPerFile
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{embedder: embedder, index: index, docs: docs, cfg: cfg, log: log}, nil
}

// Ingest runs the full pipeline for one uploaded file. All validation
// happens before any write; the only partial-failure mode is an index
// upsert error after the metadata commit, reported as *UpsertError.
func (p *Pipeline) Ingest(ctx context.Context, filename, contentType string, data []byte) (*Result, error) {
	isPDF, err := classify(filename)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	text, err := extract.Text(data, isPDF)
	if err != nil {
		return nil, fmt.Errorf("ingest: extract %s: %w", filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoExtractableText
	}

	chunks := chunker.Chunk(text, p.cfg.MaxCharsPerChunk)
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	if int64(len(chunks)) > p.cfg.MaxChunksPerFile {
		return nil, fmt.Errorf("%w: %d chunks, limit %d", ErrTooManyChunks, len(chunks), p.cfg.MaxChunksPerFile)
	}

	embeddings, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("ingest: embed %s: %w", filename, err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("ingest: embedding count mismatch: %d chunks, %d vectors", len(chunks), len(embeddings))
	}

	docID, err := p.docs.CreateDocumentWithChunks(ctx, filename, contentType, int64(len(data)), chunks)
	if err != nil {
		return nil, fmt.Errorf("ingest: persist %s: %w", filename, err)
	}

	points := make([]rag.Point, len(chunks))
	for i, chunk := range chunks {
		points[i] = rag.Point{
			ID:     rag.PointID(docID, i, p.cfg.MaxChunksPerFile),
			Vector: embeddings[i],
			Payload: rag.ChunkPayload{
				DocumentID: docID,
				ChunkIndex: i,
				Filename:   filename,
				Text:       chunk,
			},
		}
	}
	if err := p.index.Upsert(ctx, points); err != nil {
		// Metadata is already committed; report the orphaned document so it
		// can be re-ingested.
		return nil, &UpsertError{DocumentID: docID, ChunkCount: len(chunks), Err: err}
	}

	p.log.Info("document ingested",
		"document_id", docID,
		"filename", filename,
		"chunks", len(chunks),
	)
	return &Result{DocumentID: docID, ChunksStored: len(chunks)}, nil
}

// classify maps the filename extension to an extraction mode.
func classify(filename string) (isPDF bool, err error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt":
		return false, nil
	case ".pdf":
		return true, nil
	default:
		return false, ErrUnsupportedType
	}
}
