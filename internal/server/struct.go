package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/supportbot-go/internal/ingest"
	"github.com/54b3r/supportbot-go/internal/rag"
	"github.com/54b3r/supportbot-go/internal/store"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /ready.
	// If empty, /ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// AllowedOrigins is the list of origins allowed by CORS. If empty, only
	// same-origin browser requests work.
	AllowedOrigins []string
	// MaxUploadBytes caps the accepted multipart upload size.
	// Defaults to 10 MiB if zero.
	MaxUploadBytes int64
	// Registry receives the server's Prometheus metrics. If nil a private
	// registry is created and exposed on GET /metrics.
	Registry *prometheus.Registry
}

// ingestor is the interface handleUpload calls to process a document.
// *ingest.Pipeline satisfies it; tests inject a fake.
type ingestor interface {
	Ingest(ctx context.Context, filename, contentType string, data []byte) (*ingest.Result, error)
}

// contextRetriever is the interface handleChat calls to gather grounded
// context for a question. *rag.Retriever satisfies it; tests inject a fake.
type contextRetriever interface {
	AnswerContext(ctx context.Context, question string, documentID *int64) (*rag.Context, error)
}

// answerComposer is the interface handleChat calls to turn grounded context
// into an answer. *composer.Composer satisfies it; tests inject a fake.
type answerComposer interface {
	Compose(ctx context.Context, question string, snippets []string) (string, error)
}

// documentLister is the interface handleHistory calls to enumerate uploads.
// *store.SQLiteStore satisfies it; tests inject a fake.
type documentLister interface {
	ListDocuments(ctx context.Context) ([]store.Document, error)
}

// Server is the HTTP server that exposes the document QA API.
type Server struct {
	// ingestor processes uploaded documents.
	ingestor ingestor
	// retriever gathers grounded context for questions.
	retriever contextRetriever
	// composer turns grounded context into answers.
	composer answerComposer
	// documents lists previously uploaded files.
	documents documentLister
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /chat.
type chatRequest struct {
	// Message is the user's question.
	Message string `json:"message"`
	// FileID optionally scopes retrieval to one uploaded document.
	FileID *int64 `json:"file_id,omitempty"`
}

// chatResponse is the JSON response for POST /chat.
type chatResponse struct {
	// Reply is the answer or a friendly explanation when the question could
	// not be grounded in the document.
	Reply string `json:"reply"`
}

// uploadResponse is the JSON response for POST /files/upload.
type uploadResponse struct {
	// Message is a human-readable confirmation.
	Message string `json:"message"`
	// FileID is the id assigned to the stored document.
	FileID int64 `json:"file_id"`
	// ChunksStored is the number of chunks persisted and indexed.
	ChunksStored int `json:"chunks_stored"`
}

// historyFile is one entry in the GET /files/history response.
type historyFile struct {
	ID          int64  `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	CreatedAt   string `json:"created_at"`
	ChunkCount  int64  `json:"chunk_count"`
}

// historyResponse is the JSON response for GET /files/history.
type historyResponse struct {
	Files []historyFile `json:"files"`
}

// errorResponse is the JSON body for 4xx/5xx responses.
type errorResponse struct {
	// Detail is a human-readable description of what went wrong.
	Detail string `json:"detail"`
}
