// Package session maps opaque bearer tokens to user identities.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// Registry issues and resolves session tokens. At most one live token
// exists per user: issuing a new one invalidates all prior tokens for
// that user (last-login-wins).
type Registry interface {
	// Issue invalidates the user's prior tokens and returns a fresh one.
	Issue(userID string) string
	// Resolve returns the user the token belongs to, if any.
	Resolve(token string) (string, bool)
	// Invalidate drops every token belonging to the user.
	Invalidate(userID string)
}

// MemoryRegistry is a process-local Registry. Tokens have no expiry and
// are lost on restart. The mutex makes issue/resolve/invalidate atomic,
// so concurrent logins for the same user serialize and the later one wins.
type MemoryRegistry struct {
	mu     sync.Mutex
	tokens map[string]string // token -> userID
}

// NewMemoryRegistry returns an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{tokens: make(map[string]string)}
}

// Issue invalidates all of the user's prior tokens, then stores and
// returns a fresh opaque token.
func (r *MemoryRegistry) Issue(userID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for token, uid := range r.tokens {
		if uid == userID {
			delete(r.tokens, token)
		}
	}

	token := uuid.NewString()
	r.tokens[token] = userID
	return token
}

// Resolve returns the user ID the token maps to and whether it is live.
func (r *MemoryRegistry) Resolve(token string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.tokens[token]
	return userID, ok
}

// Invalidate drops every token belonging to the user.
func (r *MemoryRegistry) Invalidate(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for token, uid := range r.tokens {
		if uid == userID {
			delete(r.tokens, token)
		}
	}
}
