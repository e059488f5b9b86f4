package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/prepchat/prepchat/internal/models"
	"github.com/prepchat/prepchat/internal/service"
)

// ChatService defines the chat pipeline operation required by the
// ChatHandler.
type ChatService interface {
	// Chat runs one chat turn for the session token. It returns
	// models.ErrInvalidSession when the token does not resolve; any other
	// stage failure degrades into the result's trace.
	Chat(ctx context.Context, token, message string) (*service.ChatResult, error)
}

// ChatHandler handles HTTP requests for chat turns and health checks.
type ChatHandler struct {
	// ChatService runs the chat turn pipeline.
	ChatService ChatService
	// Logger records turn failures.
	Logger *zap.Logger
}

// chatRequest represents the JSON payload for a chat turn.
type chatRequest struct {
	SessionToken string `json:"session_token"`
	Message      string `json:"message"`
}

// chatResponse is the JSON body of a successful chat turn.
type chatResponse struct {
	Answer          string              `json:"answer"`
	RetrievalTimeMs int64               `json:"retrieval_time_ms"`
	LLMTimeMs       int64               `json:"llm_time_ms"`
	MemoryCitations []models.Citation   `json:"memory_citations"`
	DebugTrace      []models.TraceEntry `json:"debug_trace"`
}

// Chat handles POST /chat.
// Once the session resolves, the response is always 200: downstream stage
// failures are absorbed into the answer sentinel or the debug trace.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	result, err := h.ChatService.Chat(r.Context(), req.SessionToken, req.Message)
	if errors.Is(err, models.ErrInvalidSession) {
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}
	if err != nil {
		h.Logger.Error("chat turn failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	citations := result.Citations
	if citations == nil {
		citations = []models.Citation{}
	}
	trace := result.Trace
	if trace == nil {
		trace = []models.TraceEntry{}
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:          result.Answer,
		RetrievalTimeMs: result.RetrievalTimeMs,
		LLMTimeMs:       result.LLMTimeMs,
		MemoryCitations: citations,
		DebugTrace:      trace,
	})
}

// Health handles GET /health.
func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
