package server

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/supportbot-go/internal/ingest"
	"github.com/54b3r/supportbot-go/internal/rag"
	"github.com/54b3r/supportbot-go/internal/store"
)

// ---------------------------------------------------------------------------
// Shared fakes for handler tests
// ---------------------------------------------------------------------------

// fakeIngestor implements the ingestor interface for tests.
type fakeIngestor struct {
	// result is returned on success.
	result *ingest.Result
	// err is returned as the error value.
	err error

	// lastFilename records the filename of the most recent call.
	lastFilename string
	// lastData records the raw bytes of the most recent call.
	lastData []byte
}

func (f *fakeIngestor) Ingest(_ context.Context, filename, _ string, data []byte) (*ingest.Result, error) {
	f.lastFilename = filename
	f.lastData = data
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeRetriever implements the contextRetriever interface for tests.
type fakeRetriever struct {
	// ctx is returned on success.
	ctx *rag.Context
	// err is returned as the error value.
	err error

	// lastQuestion records the question of the most recent call.
	lastQuestion string
	// lastFileID records the document scope of the most recent call.
	lastFileID *int64
}

func (f *fakeRetriever) AnswerContext(_ context.Context, question string, documentID *int64) (*rag.Context, error) {
	f.lastQuestion = question
	f.lastFileID = documentID
	if f.err != nil {
		return nil, f.err
	}
	return f.ctx, nil
}

// fakeComposer implements the answerComposer interface for tests.
type fakeComposer struct {
	// reply is returned on success.
	reply string
	// err is returned as the error value.
	err error

	// calls counts Compose invocations.
	calls int
	// lastSnippets records the snippets of the most recent call.
	lastSnippets []string
}

func (f *fakeComposer) Compose(_ context.Context, _ string, snippets []string) (string, error) {
	f.calls++
	f.lastSnippets = snippets
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

// fakeLister implements the documentLister interface for tests.
type fakeLister struct {
	// docs is returned on success.
	docs []store.Document
	// err is returned as the error value.
	err error
}

func (f *fakeLister) ListDocuments(_ context.Context) ([]store.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

// newTestServer builds a minimal *Server for direct handler tests, backed by
// a fresh Prometheus registry so tests never pollute the default one.
func newTestServer(ing ingestor, ret contextRetriever, comp answerComposer, lister documentLister) *Server {
	return &Server{
		ingestor:  ing,
		retriever: ret,
		composer:  comp,
		documents: lister,
		cfg:       &Config{Port: 8080, MaxUploadBytes: defaultMaxUploadBytes},
		log:       slog.Default(),
		metrics:   newServerMetrics(prometheus.NewRegistry()),
	}
}
