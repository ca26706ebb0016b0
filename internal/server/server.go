// Package server implements the HTTP server that exposes the document QA
// API: document upload, chat over an uploaded document, upload history, and
// operational endpoints (health, readiness, metrics).
// The server is started by the `supportbot serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/supportbot-go/internal/logging"
)

// defaultMaxUploadBytes caps multipart uploads when no explicit limit is
// configured. 10 MiB comfortably covers typical support documents.
const defaultMaxUploadBytes = 10 << 20

// New constructs a Server from the provided pipeline components and config.
func New(ing ingestor, retriever contextRetriever, comp answerComposer, documents documentLister, cfg *Config) (*Server, error) {
	if ing == nil {
		return nil, fmt.Errorf("server: ingestor must not be nil")
	}
	if retriever == nil {
		return nil, fmt.Errorf("server: retriever must not be nil")
	}
	if comp == nil {
		return nil, fmt.Errorf("server: composer must not be nil")
	}
	if documents == nil {
		return nil, fmt.Errorf("server: document lister must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover embedding plus model generation.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	s := &Server{
		ingestor:  ing,
		retriever: retriever,
		composer:  comp,
		documents: documents,
		cfg:       cfg,
		log:       cfg.Logger,
		pingers:   cfg.Pingers,
		metrics:   newServerMetrics(reg),
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: API key not set — authentication is disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	mux := http.NewServeMux()
	mux.Handle("POST /chat", s.protected(rl, "chat", http.HandlerFunc(s.handleChat)))
	mux.Handle("POST /files/upload", s.protected(rl, "upload", http.HandlerFunc(s.handleUpload)))
	mux.Handle("GET /files/history", s.protected(rl, "history", http.HandlerFunc(s.handleHistory)))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, corsMiddleware(cfg.AllowedOrigins, mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// protected wraps a business handler with the middleware applied to all
// API routes: rate limiting, Bearer auth, and per-handler metrics.
func (s *Server) protected(rl *rateLimiter, name string, h http.Handler) http.Handler {
	return rl.middleware(authMiddleware(s.cfg.APIKey, s.metrics.instrument(name, h)))
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends a JSON error body mirroring the {"detail": ...} shape
// clients already parse.
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
