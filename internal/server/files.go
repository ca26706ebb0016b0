package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/supportbot-go/internal/ingest"
	"github.com/54b3r/supportbot-go/internal/logging"
)

// handleUpload handles POST /files/upload. The request is a multipart form
// with a single "file" part. On success the document is chunked, embedded,
// and indexed, and the client receives 201 with the new file id.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "uploaded file is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "expected a multipart form with a 'file' part")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing 'file' part")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "Filename is required.")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	res, err := s.ingestor.Ingest(r.Context(), header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		s.respondIngestError(w, log, header.Filename, err)
		s.metrics.ingestDocumentsTotal.WithLabelValues("error").Inc()
		return
	}

	s.metrics.ingestDocumentsTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestChunksTotal.Add(float64(res.ChunksStored))
	s.metrics.ingestDurationSeconds.Observe(time.Since(start).Seconds())

	log.Info("upload: document stored",
		slog.Int64("file_id", res.DocumentID),
		slog.Int("chunks", res.ChunksStored),
	)
	writeJSON(w, http.StatusCreated, uploadResponse{
		Message:      "File uploaded successfully",
		FileID:       res.DocumentID,
		ChunksStored: res.ChunksStored,
	})
}

// respondIngestError maps pipeline errors to HTTP responses. Validation
// failures are the client's fault; everything else is a 500. An upsert
// failure after the metadata commit is logged with the orphaned document id
// so it can be re-ingested.
func (s *Server) respondIngestError(w http.ResponseWriter, log *slog.Logger, filename string, err error) {
	switch {
	case errors.Is(err, ingest.ErrUnsupportedType):
		writeError(w, http.StatusBadRequest, "Only .txt and .pdf files are supported right now.")
	case errors.Is(err, ingest.ErrEmptyFile):
		writeError(w, http.StatusBadRequest, "Uploaded file is empty.")
	case errors.Is(err, ingest.ErrNoExtractableText), errors.Is(err, ingest.ErrNoChunks):
		writeError(w, http.StatusBadRequest, "No readable text found in the uploaded file.")
	case errors.Is(err, ingest.ErrTooManyChunks):
		writeError(w, http.StatusBadRequest, "The uploaded file is too large to index.")
	default:
		var ue *ingest.UpsertError
		if errors.As(err, &ue) {
			log.Error("upload: vector indexing failed after metadata commit",
				slog.String("filename", filename),
				slog.Int64("orphaned_file_id", ue.DocumentID),
				slog.Int("chunks", ue.ChunkCount),
				slog.Any("error", ue.Err),
			)
		} else {
			log.Error("upload: ingestion failed",
				slog.String("filename", filename),
				slog.Any("error", err),
			)
		}
		writeError(w, http.StatusInternalServerError, "Failed to upload file.")
	}
}

// handleHistory handles GET /files/history. It returns all uploaded files
// with chunk counts, newest first, for client-side file pickers.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	docs, err := s.documents.ListDocuments(r.Context())
	if err != nil {
		log.Error("history: list failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to load uploaded file history.")
		return
	}

	resp := historyResponse{Files: make([]historyFile, 0, len(docs))}
	for _, d := range docs {
		resp.Files = append(resp.Files, historyFile{
			ID:          d.ID,
			Filename:    d.Filename,
			ContentType: d.ContentType,
			SizeBytes:   d.SizeBytes,
			CreatedAt:   d.CreatedAt.UTC().Format(time.RFC3339),
			ChunkCount:  d.ChunkCount,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
