package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeEmbedder returns one fixed vector per input text and records calls.
type fakeEmbedder struct {
	// calls counts Embed invocations.
	calls int
	// err is returned on every call when non-nil.
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

// fakeIndex returns canned hits and records the filter it was searched with.
type fakeIndex struct {
	// hits is returned from every Search call.
	hits []ScoredChunk
	// err is returned when non-nil.
	err error
	// lastFilter is the filter passed to the most recent Search call.
	lastFilter *Filter
}

func (f *fakeIndex) Upsert(context.Context, []Point) error { return nil }

func (f *fakeIndex) Search(_ context.Context, _ []float32, _ int, filter *Filter) ([]ScoredChunk, error) {
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func (f *fakeIndex) Close() error { return nil }

func newTestRetriever(t *testing.T, idx VectorIndex) *Retriever {
	t.Helper()
	r, err := NewRetriever(&fakeEmbedder{}, idx, 5, 0.35)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}
	return r
}

// ---------------------------------------------------------------------------
// Relevance gate
// ---------------------------------------------------------------------------

func TestAnswerContext_EmptyQuestionRejected(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	r, err := NewRetriever(emb, &fakeIndex{}, 0, 0)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := r.AnswerContext(context.Background(), q, nil); !errors.Is(err, ErrEmptyQuestion) {
			t.Errorf("question %q: want ErrEmptyQuestion, got %v", q, err)
		}
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for empty questions", emb.calls)
	}
}

func TestAnswerContext_ZeroHits(t *testing.T) {
	t.Parallel()

	r := newTestRetriever(t, &fakeIndex{})
	got, err := r.AnswerContext(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Grounded || got.Reason != GateNoHits || len(got.Snippets) != 0 {
		t.Errorf("want ungrounded/no-hits, got %+v", got)
	}
}

func TestAnswerContext_LowScoreGated(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{hits: []ScoredChunk{
		{Score: 0.20, Payload: ChunkPayload{ChunkIndex: 0, Text: "weakly related"}},
	}}
	r := newTestRetriever(t, idx)

	got, err := r.AnswerContext(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Grounded || got.Reason != GateLowScore || len(got.Snippets) != 0 {
		t.Errorf("want ungrounded/low-score, got %+v", got)
	}
}

func TestAnswerContext_HighScoreGrounded(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{hits: []ScoredChunk{
		{Score: 0.9, Payload: ChunkPayload{ChunkIndex: 3, Text: "refund policy is 30 days"}},
		{Score: 0.6, Payload: ChunkPayload{ChunkIndex: 7, Text: "contact support by email"}},
	}}
	r := newTestRetriever(t, idx)

	got, err := r.AnswerContext(context.Background(), "refunds?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Grounded || got.Reason != GateGrounded {
		t.Fatalf("want grounded, got %+v", got)
	}
	if len(got.Snippets) != 2 {
		t.Fatalf("want 2 snippets, got %d", len(got.Snippets))
	}
	// Snippets keep the index's descending-similarity order and carry the
	// chunk index label.
	if got.Snippets[0] != "[Chunk 3] refund policy is 30 days" {
		t.Errorf("snippet 0: got %q", got.Snippets[0])
	}
	if !strings.HasPrefix(got.Snippets[1], "[Chunk 7]") {
		t.Errorf("snippet 1: got %q", got.Snippets[1])
	}
}

func TestAnswerContext_EmptyTextHitsDropped(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{hits: []ScoredChunk{
		{Score: 0.9, Payload: ChunkPayload{ChunkIndex: 0, Text: ""}},
		{Score: 0.8, Payload: ChunkPayload{ChunkIndex: 1, Text: "usable"}},
	}}
	r := newTestRetriever(t, idx)

	got, err := r.AnswerContext(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Grounded || len(got.Snippets) != 1 || got.Snippets[0] != "[Chunk 1] usable" {
		t.Errorf("want single usable snippet, got %+v", got)
	}
}

func TestAnswerContext_AllEmptyTextUngrounded(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{hits: []ScoredChunk{
		{Score: 0.9, Payload: ChunkPayload{ChunkIndex: 0, Text: ""}},
	}}
	r := newTestRetriever(t, idx)

	got, err := r.AnswerContext(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Grounded || got.Reason != GateNoText {
		t.Errorf("want ungrounded/no-text, got %+v", got)
	}
}

func TestAnswerContext_DocumentScopePassedToIndex(t *testing.T) {
	t.Parallel()

	idx := &fakeIndex{}
	r := newTestRetriever(t, idx)

	docID := int64(42)
	if _, err := r.AnswerContext(context.Background(), "anything", &docID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.lastFilter == nil || idx.lastFilter.DocumentID == nil || *idx.lastFilter.DocumentID != 42 {
		t.Errorf("want filter scoped to document 42, got %+v", idx.lastFilter)
	}

	if _, err := r.AnswerContext(context.Background(), "anything", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.lastFilter != nil {
		t.Errorf("want nil filter for unscoped search, got %+v", idx.lastFilter)
	}
}

func TestAnswerContext_EmbedderErrorSurfaced(t *testing.T) {
	t.Parallel()

	embErr := errors.New("model unavailable")
	r, err := NewRetriever(&fakeEmbedder{err: embErr}, &fakeIndex{}, 0, 0)
	if err != nil {
		t.Fatalf("new retriever: %v", err)
	}

	if _, err := r.AnswerContext(context.Background(), "anything", nil); !errors.Is(err, embErr) {
		t.Errorf("want wrapped embedder error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Point id scheme
// ---------------------------------------------------------------------------

func TestPointID_Formula(t *testing.T) {
	t.Parallel()

	if got := PointID(7, 3, DefaultMaxChunksPerFile); got != 700003 {
		t.Errorf("PointID(7,3): want 700003, got %d", got)
	}
	if got := PointID(1, 0, DefaultMaxChunksPerFile); got != 100000 {
		t.Errorf("PointID(1,0): want 100000, got %d", got)
	}
}

func TestPointID_NoCollisionsAcrossDocuments(t *testing.T) {
	t.Parallel()

	seen := make(map[uint64]bool)
	for doc := int64(1); doc <= 4; doc++ {
		for idx := range 50 {
			id := PointID(doc, idx, DefaultMaxChunksPerFile)
			if seen[id] {
				t.Fatalf("collision at doc=%d idx=%d id=%d", doc, idx, id)
			}
			seen[id] = true
		}
	}
}
