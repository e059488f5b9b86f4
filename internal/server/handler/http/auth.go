// Package http provides HTTP handlers for user authentication and the
// chat endpoint.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/prepchat/prepchat/internal/memory"
	"github.com/prepchat/prepchat/internal/models"
)

// AuthService defines the authentication operations required by the HTTP
// handlers.
type AuthService interface {
	// Register creates a new user and returns its ID.
	Register(ctx context.Context, username, password string) (string, error)
	// Login verifies the credentials and returns the user's ID.
	Login(ctx context.Context, username, password string) (string, error)
}

// SessionIssuer issues bearer tokens, invalidating the user's prior ones.
type SessionIssuer interface {
	Issue(userID string) string
}

// MemoryWriter covers the graph-store operations signup needs: creating
// the user node and seeding onboarding memories.
type MemoryWriter interface {
	EnsureUser(ctx context.Context, userID, username string) error
	Append(ctx context.Context, userID string, m models.Memory) error
}

// AuthHandler handles HTTP requests for signup and login.
type AuthHandler struct {
	// AuthService performs the underlying authentication operations.
	AuthService AuthService
	// Sessions issues session tokens at login.
	Sessions SessionIssuer
	// Memories receives the user node and seed memories at signup.
	Memories MemoryWriter
	// Logger records signup/login outcomes.
	Logger *zap.Logger
}

// credentialsRequest represents the JSON payload for signup and login.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Signup handles POST /auth/signup.
// It expects a JSON body with non-empty "username" and "password" fields,
// creates the credentials, ensures the user's graph node, and seeds the
// two onboarding memories. Responds with the new user ID.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	userID, err := h.AuthService.Register(r.Context(), req.Username, req.Password)
	if errors.Is(err, models.ErrDuplicateUser) {
		writeError(w, http.StatusBadRequest, "username already exists or invalid")
		return
	}
	if err != nil {
		h.Logger.Error("signup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.Memories.EnsureUser(r.Context(), userID, req.Username); err != nil {
		h.Logger.Error("ensure user node failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// Seed interview prep onboarding memories (baseline).
	seed := []string{
		"Interview prep mode: enabled",
		"Username: " + req.Username,
	}
	for _, text := range seed {
		m := memory.New(text, models.KindFact, models.SourceSystem, 1.0)
		if err := h.Memories.Append(r.Context(), userID, m); err != nil {
			h.Logger.Error("seed memory failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"user_id": userID})
}

// Login handles POST /auth/login.
// On valid credentials it issues a fresh session token, invalidating any
// prior token of the same user.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	userID, err := h.AuthService.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, models.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		h.Logger.Error("login failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token := h.Sessions.Issue(userID)
	writeJSON(w, http.StatusOK, map[string]string{
		"session_token": token,
		"user_id":       userID,
	})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a structured JSON error body with no internal detail.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
