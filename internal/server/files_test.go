package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/54b3r/supportbot-go/internal/ingest"
	"github.com/54b3r/supportbot-go/internal/store"
)

// multipartUpload builds a multipart request body with a single "file" part.
func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func postUpload(s *Server, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/files/upload", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.handleUpload(w, req)
	return w
}

// ---------------------------------------------------------------------------
// POST /files/upload
// ---------------------------------------------------------------------------

func TestHandleUpload_Success(t *testing.T) {
	t.Parallel()

	ing := &fakeIngestor{result: &ingest.Result{DocumentID: 12, ChunksStored: 4}}
	s := newTestServer(ing, &fakeRetriever{}, &fakeComposer{}, &fakeLister{})

	body, ct := multipartUpload(t, "handbook.txt", []byte("employee handbook contents"))
	w := postUpload(s, body, ct)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d — body: %s", w.Code, w.Body.String())
	}

	var resp uploadResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != "File uploaded successfully" {
		t.Errorf("unexpected message: %q", resp.Message)
	}
	if resp.FileID != 12 || resp.ChunksStored != 4 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if ing.lastFilename != "handbook.txt" {
		t.Errorf("filename not forwarded: %q", ing.lastFilename)
	}
	if string(ing.lastData) != "employee handbook contents" {
		t.Errorf("file bytes not forwarded: %q", ing.lastData)
	}
}

func TestHandleUpload_MissingFilePart(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeIngestor{}, &fakeRetriever{}, &fakeComposer{}, &fakeLister{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "value")
	_ = mw.Close()

	w := postUpload(s, &buf, mw.FormDataContentType())
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHandleUpload_ValidationErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ingestErr  error
		wantStatus int
		wantDetail string
	}{
		{"unsupported type", ingest.ErrUnsupportedType, http.StatusBadRequest,
			"Only .txt and .pdf files are supported right now."},
		{"empty file", ingest.ErrEmptyFile, http.StatusBadRequest,
			"Uploaded file is empty."},
		{"no extractable text", ingest.ErrNoExtractableText, http.StatusBadRequest,
			"No readable text found in the uploaded file."},
		{"too many chunks", ingest.ErrTooManyChunks, http.StatusBadRequest,
			"The uploaded file is too large to index."},
		{"internal failure", errors.New("embedding backend down"), http.StatusInternalServerError,
			"Failed to upload file."},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer(&fakeIngestor{err: tt.ingestErr}, &fakeRetriever{}, &fakeComposer{}, &fakeLister{})
			body, ct := multipartUpload(t, "doc.txt", []byte("content"))
			w := postUpload(s, body, ct)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			var resp errorResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", resp.Detail, tt.wantDetail)
			}
		})
	}
}

func TestHandleUpload_UpsertFailureIsServerError(t *testing.T) {
	t.Parallel()

	ing := &fakeIngestor{err: &ingest.UpsertError{DocumentID: 5, ChunkCount: 3, Err: errors.New("qdrant down")}}
	s := newTestServer(ing, &fakeRetriever{}, &fakeComposer{}, &fakeLister{})

	body, ct := multipartUpload(t, "doc.txt", []byte("content"))
	w := postUpload(s, body, ct)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// GET /files/history
// ---------------------------------------------------------------------------

func TestHandleHistory_ReturnsFiles(t *testing.T) {
	t.Parallel()

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lister := &fakeLister{docs: []store.Document{
		{ID: 2, Filename: "new.pdf", ContentType: "application/pdf", SizeBytes: 2048, ChunkCount: 7, CreatedAt: created},
		{ID: 1, Filename: "old.txt", ContentType: "text/plain", SizeBytes: 100, ChunkCount: 1, CreatedAt: created.Add(-time.Hour)},
	}}
	s := newTestServer(&fakeIngestor{}, &fakeRetriever{}, &fakeComposer{}, lister)

	req := httptest.NewRequest(http.MethodGet, "/files/history", nil)
	w := httptest.NewRecorder()
	s.handleHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp historyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(resp.Files))
	}
	first := resp.Files[0]
	if first.ID != 2 || first.Filename != "new.pdf" || first.ChunkCount != 7 {
		t.Errorf("unexpected first entry: %+v", first)
	}
	if first.CreatedAt != "2025-06-01T12:00:00Z" {
		t.Errorf("created_at = %q, want RFC3339", first.CreatedAt)
	}
}

func TestHandleHistory_EmptyList(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeIngestor{}, &fakeRetriever{}, &fakeComposer{}, &fakeLister{})

	req := httptest.NewRequest(http.MethodGet, "/files/history", nil)
	w := httptest.NewRecorder()
	s.handleHistory(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp historyResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Files == nil {
		t.Error("files should be an empty array, not null")
	}
}

func TestHandleHistory_StoreFailure(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeIngestor{}, &fakeRetriever{}, &fakeComposer{}, &fakeLister{err: errors.New("db locked")})

	req := httptest.NewRequest(http.MethodGet, "/files/history", nil)
	w := httptest.NewRecorder()
	s.handleHistory(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}
