package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Retrieval defaults, overridable via TOP_K and MIN_SCORE.
const (
	// DefaultTopK is the number of chunks fetched per question.
	DefaultTopK = 5

	// DefaultMinScore is the cosine similarity the best hit must reach
	// before retrieved context is considered grounded. Below it the service
	// declines to answer rather than letting the model guess.
	DefaultMinScore = 0.35
)

// ErrEmptyQuestion is returned when the question is empty or whitespace-only.
var ErrEmptyQuestion = errors.New("rag: question must not be empty")

// GateReason explains why retrieval produced no grounded context. Callers
// render a distinct friendly reply per reason — none of these are errors.
type GateReason int

const (
	// GateGrounded means the context passed the relevance gate.
	GateGrounded GateReason = iota

	// GateNoHits means the search returned zero points.
	GateNoHits

	// GateLowScore means the best hit scored below the minimum threshold.
	GateLowScore

	// GateNoText means every hit's payload carried empty text.
	GateNoText
)

// Context is the outcome of retrieval for one question. When Grounded is
// false, Snippets is empty and Reason says which gate rejected the context;
// the generative model must not be called.
type Context struct {
	// Snippets holds the formatted chunk texts in descending similarity
	// order, ready to join into the model prompt.
	Snippets []string

	// Grounded reports whether the snippets passed the relevance gate.
	Grounded bool

	// Reason is GateGrounded when Grounded is true, otherwise the gate that
	// rejected the context.
	Reason GateReason
}

// Retriever turns a question into grounded context: it embeds the question,
// searches the vector index (optionally scoped to one document), and applies
// the relevance gate. It performs no writes and is safe for concurrent use.
type Retriever struct {
	// embedder converts the question text to a dense vector.
	embedder Embedder

	// index performs the vector similarity search.
	index VectorIndex

	// topK is the number of hits requested per search.
	topK int

	// minScore is the relevance gate threshold for the best hit.
	minScore float32
}

// NewRetriever constructs a Retriever from the given Embedder and VectorIndex.
// Non-positive topK and minScore fall back to the package defaults.
func NewRetriever(embedder Embedder, index VectorIndex, topK int, minScore float32) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		topK:     topK,
		minScore: minScore,
	}, nil
}

// AnswerContext retrieves the context to ground an answer to question.
// A non-nil documentID scopes the search to that document's chunks.
//
// Hit ordering is exactly the index's return order (descending cosine
// similarity); there is no secondary sort. Hits with empty payload text are
// dropped silently.
func (r *Retriever) AnswerContext(ctx context.Context, question string, documentID *int64) (*Context, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	embeddings, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding question failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for question")
	}

	var filter *Filter
	if documentID != nil {
		filter = &Filter{DocumentID: documentID}
	}

	hits, err := r.index.Search(ctx, embeddings[0], r.topK, filter)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	if len(hits) == 0 {
		return &Context{Reason: GateNoHits}, nil
	}
	if hits[0].Score < r.minScore {
		return &Context{Reason: GateLowScore}, nil
	}

	snippets := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.Payload.Text == "" {
			continue
		}
		snippets = append(snippets, fmt.Sprintf("[Chunk %d] %s", hit.Payload.ChunkIndex, hit.Payload.Text))
	}
	if len(snippets) == 0 {
		return &Context{Reason: GateNoText}, nil
	}

	return &Context{Snippets: snippets, Grounded: true, Reason: GateGrounded}, nil
}
