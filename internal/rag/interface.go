// Package rag defines the retrieval-augmented answering primitives: the
// vector index abstraction, the embedding interface, the deterministic
// point-id scheme, and the retriever that turns a question into grounded
// context. Concrete backends (Qdrant) satisfy these interfaces so handlers
// and the ingestion orchestrator never depend on a specific vendor.
package rag

import (
	"context"
)

// DefaultMaxChunksPerFile bounds the number of chunks a single document may
// contribute to the index. It is the multiplier of the point-id scheme, so
// raising it on a populated collection would re-address every existing point
// — change it only on a fresh collection.
const DefaultMaxChunksPerFile = 100_000

// PointID derives the vector-index point id for a chunk from its document id
// and position. Ids from distinct documents can never collide as long as
// chunkIndex stays below maxChunks, which ingestion enforces.
func PointID(documentID int64, chunkIndex int, maxChunks int64) uint64 {
	return uint64(documentID)*uint64(maxChunks) + uint64(chunkIndex)
}

// ChunkPayload is the metadata stored alongside each vector so search hits
// are self-contained: the raw chunk text is duplicated here on purpose,
// sparing a relational lookup per hit.
type ChunkPayload struct {
	// DocumentID is the relational id of the owning document.
	DocumentID int64

	// ChunkIndex is the zero-based position of the chunk within its document.
	ChunkIndex int

	// Filename is the original upload filename, kept for display.
	Filename string

	// Text is the raw chunk content.
	Text string
}

// Point is one searchable unit: a pre-computed embedding plus its payload,
// addressed by the deterministic id from PointID.
type Point struct {
	// ID is the point identifier derived via PointID.
	ID uint64

	// Vector is the chunk's embedding.
	Vector []float32

	// Payload carries the chunk metadata and text.
	Payload ChunkPayload
}

// ScoredChunk is a search hit: the stored payload plus the index's native
// cosine similarity score (higher = more similar, range [-1, 1]).
type ScoredChunk struct {
	// Payload is the stored chunk metadata and text.
	Payload ChunkPayload

	// Score is the cosine similarity assigned by the index.
	Score float32
}

// Filter restricts a search to a subset of the collection.
type Filter struct {
	// DocumentID, when non-nil, limits hits to points whose payload
	// document id matches.
	DocumentID *int64
}

// VectorIndex is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorIndex interface {
	// Upsert inserts or overwrites a batch of points by id. The whole batch
	// is sent in a single call so a freshly ingested document becomes
	// searchable at once.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to topK hits ordered by descending similarity.
	// A nil filter searches the whole collection.
	Search(ctx context.Context, queryEmbedding []float32, topK int, filter *Filter) ([]ScoredChunk, error)

	// Close releases any resources held by the index.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines, must return
// a slice parallel to the input, and must not make a network call for an
// empty input.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
