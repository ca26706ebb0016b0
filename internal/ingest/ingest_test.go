package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/54b3r/supportbot-go/internal/rag"
)

// ---------------------------------------------------------------------------
// fakes
// ---------------------------------------------------------------------------

type fakeEmbedder struct {
	err   error
	short bool // return one fewer vector than requested

	calls int
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short && n > 0 {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

type fakeIndex struct {
	err    error
	points []rag.Point
}

func (f *fakeIndex) Upsert(ctx context.Context, points []rag.Point) error {
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, embedding []float32, topK int, filter *rag.Filter) ([]rag.ScoredChunk, error) {
	return nil, nil
}

func (f *fakeIndex) Close() error { return nil }

type fakeDocs struct {
	err    error
	nextID int64

	filename    string
	contentType string
	sizeBytes   int64
	chunks      []string
}

func (f *fakeDocs) CreateDocumentWithChunks(ctx context.Context, filename, contentType string, sizeBytes int64, chunks []string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.filename, f.contentType, f.sizeBytes, f.chunks = filename, contentType, sizeBytes, chunks
	if f.nextID == 0 {
		f.nextID = 1
	}
	return f.nextID, nil
}

func newTestPipeline(t *testing.T, emb *fakeEmbedder, idx *fakeIndex, docs *fakeDocs, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(emb, idx, docs, cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

// ---------------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------------

func TestIngest_TxtRoundTrip(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	idx := &fakeIndex{}
	docs := &fakeDocs{nextID: 7}
	p := newTestPipeline(t, emb, idx, docs, Config{})

	text := "Our refund policy allows returns within 30 days.\nContact support for exceptions."
	res, err := p.Ingest(context.Background(), "faq.txt", "text/plain", []byte(text))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.DocumentID != 7 {
		t.Errorf("DocumentID = %d, want 7", res.DocumentID)
	}
	// The two-line document breaks at its newline into two chunks.
	if res.ChunksStored != 2 {
		t.Errorf("ChunksStored = %d, want 2", res.ChunksStored)
	}
	if docs.filename != "faq.txt" || docs.sizeBytes != int64(len(text)) {
		t.Errorf("unexpected metadata write: %q %d", docs.filename, docs.sizeBytes)
	}
	if len(idx.points) != 2 {
		t.Fatalf("expected 2 upserted points, got %d", len(idx.points))
	}
	for i, pt := range idx.points {
		if want := rag.PointID(7, i, rag.DefaultMaxChunksPerFile); pt.ID != want {
			t.Errorf("point %d id = %d, want %d", i, pt.ID, want)
		}
		if pt.Payload.DocumentID != 7 || pt.Payload.ChunkIndex != i || pt.Payload.Filename != "faq.txt" {
			t.Errorf("unexpected payload: %+v", pt.Payload)
		}
	}
	if !strings.Contains(idx.points[0].Payload.Text, "refund policy") {
		t.Errorf("first chunk should carry the first line, got %q", idx.points[0].Payload.Text)
	}
	if !strings.Contains(idx.points[1].Payload.Text, "Contact support") {
		t.Errorf("second chunk should carry the second line, got %q", idx.points[1].Payload.Text)
	}
}

func TestIngest_ChunkingSplitsLongDocuments(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{}
	idx := &fakeIndex{}
	docs := &fakeDocs{nextID: 3}
	p := newTestPipeline(t, emb, idx, docs, Config{MaxCharsPerChunk: 50})

	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString("This sentence pads the document with text.\n")
	}
	res, err := p.Ingest(context.Background(), "long.txt", "", []byte(sb.String()))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.ChunksStored < 2 {
		t.Fatalf("expected multiple chunks, got %d", res.ChunksStored)
	}
	if len(idx.points) != res.ChunksStored {
		t.Fatalf("points = %d, chunks = %d", len(idx.points), res.ChunksStored)
	}
	for i, pt := range idx.points {
		if pt.Payload.ChunkIndex != i {
			t.Errorf("point %d has chunk index %d", i, pt.Payload.ChunkIndex)
		}
		if want := rag.PointID(3, i, rag.DefaultMaxChunksPerFile); pt.ID != want {
			t.Errorf("point %d id = %d, want %d", i, pt.ID, want)
		}
	}
}

func TestIngest_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		data     []byte
		wantErr  error
	}{
		{"unsupported extension", "notes.docx", []byte("hello"), ErrUnsupportedType},
		{"no extension", "README", []byte("hello"), ErrUnsupportedType},
		{"empty file", "empty.txt", nil, ErrEmptyFile},
		{"whitespace only", "blank.txt", []byte("   \n\t  "), ErrNoExtractableText},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			emb := &fakeEmbedder{}
			p := newTestPipeline(t, emb, &fakeIndex{}, &fakeDocs{}, Config{})
			_, err := p.Ingest(context.Background(), tt.filename, "", tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if emb.calls != 0 {
				t.Error("validation failures must not reach the embedder")
			}
		})
	}
}

func TestIngest_ChunkCeiling(t *testing.T) {
	t.Parallel()

	p := newTestPipeline(t, &fakeEmbedder{}, &fakeIndex{}, &fakeDocs{}, Config{
		MaxCharsPerChunk: 10,
		MaxChunksPerFile: 2,
	})

	// 50 chars with hard breaks every 10 → 5 chunks, over the limit of 2.
	_, err := p.Ingest(context.Background(), "big.txt", "", []byte(strings.Repeat("x", 50)))
	if !errors.Is(err, ErrTooManyChunks) {
		t.Fatalf("err = %v, want ErrTooManyChunks", err)
	}
}

func TestIngest_EmbeddingCountMismatch(t *testing.T) {
	t.Parallel()

	docs := &fakeDocs{}
	p := newTestPipeline(t, &fakeEmbedder{short: true}, &fakeIndex{}, docs, Config{})

	_, err := p.Ingest(context.Background(), "a.txt", "", []byte("some text"))
	if err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Fatalf("expected count mismatch error, got %v", err)
	}
	if docs.filename != "" {
		t.Error("nothing should be persisted on a count mismatch")
	}
}

func TestIngest_EmbedderErrorStopsPipeline(t *testing.T) {
	t.Parallel()

	boom := errors.New("embedding backend down")
	docs := &fakeDocs{}
	idx := &fakeIndex{}
	p := newTestPipeline(t, &fakeEmbedder{err: boom}, idx, docs, Config{})

	_, err := p.Ingest(context.Background(), "a.txt", "", []byte("some text"))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped embedder error", err)
	}
	if docs.filename != "" || len(idx.points) != 0 {
		t.Error("no writes should happen when embedding fails")
	}
}

func TestIngest_UpsertFailureReportsOrphanedDocument(t *testing.T) {
	t.Parallel()

	boom := errors.New("qdrant unavailable")
	docs := &fakeDocs{nextID: 42}
	p := newTestPipeline(t, &fakeEmbedder{}, &fakeIndex{err: boom}, docs, Config{})

	_, err := p.Ingest(context.Background(), "a.txt", "", []byte("some text"))
	var ue *UpsertError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpsertError", err)
	}
	if ue.DocumentID != 42 {
		t.Errorf("DocumentID = %d, want 42", ue.DocumentID)
	}
	if ue.ChunkCount != 2 {
		t.Errorf("ChunkCount = %d, want 2", ue.ChunkCount)
	}
	if !errors.Is(err, boom) {
		t.Error("UpsertError should unwrap to the index error")
	}
}
