package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/supportbot-go/internal/logging"
	"github.com/54b3r/supportbot-go/internal/rag"
)

// Friendly replies returned when a question cannot be grounded in the
// document. These are answers, not errors: the request itself succeeded.
const (
	replyNoHits = "I couldn't find any relevant information in the uploaded document " +
		"for your question."
	replyLowScore = "I searched your uploaded document but couldn't find a strong match " +
		"for your question. Please try rephrasing or ask about another part " +
		"of the document."
	replyNoText = "I tried to read relevant parts of the document, but couldn't extract " +
		"any usable text for your question."
)

// handleChat handles POST /chat. It retrieves grounded context for the
// question, short-circuits with a friendly reply when the relevance gate
// rejects it, and otherwise asks the model to compose an answer.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answerCtx, err := s.retriever.AnswerContext(r.Context(), req.Message, req.FileID)
	if err != nil {
		if errors.Is(err, rag.ErrEmptyQuestion) {
			writeError(w, http.StatusBadRequest, "Question must not be empty.")
			return
		}
		log.Error("chat: retrieval failed", slog.Any("error", err))
		s.metrics.chatRequestsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "failed to search the document")
		return
	}

	if !answerCtx.Grounded {
		reply := ""
		switch answerCtx.Reason {
		case rag.GateNoHits:
			reply = replyNoHits
		case rag.GateLowScore:
			reply = replyLowScore
		case rag.GateNoText:
			reply = replyNoText
		default:
			reply = replyNoHits
		}
		s.metrics.chatRequestsTotal.WithLabelValues("ungrounded").Inc()
		s.metrics.chatDurationSeconds.WithLabelValues("ungrounded").Observe(time.Since(start).Seconds())
		writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
		return
	}

	answer, err := s.composer.Compose(r.Context(), req.Message, answerCtx.Snippets)
	if err != nil {
		log.Error("chat: answer generation failed", slog.Any("error", err))
		s.metrics.chatRequestsTotal.WithLabelValues("error").Inc()
		writeError(w, http.StatusInternalServerError, "failed to generate an answer")
		return
	}

	s.metrics.chatRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.chatDurationSeconds.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, chatResponse{Reply: answer})
}
