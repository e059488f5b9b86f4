// Package models defines the core data structures for users, memories,
// and chat turns.
package models

import "time"

// User represents an application user with credentials.
type User struct {
	// ID is the unique identifier for the user.
	ID string
	// Username is the login name chosen by the user.
	Username string
	// PasswordHash is the hashed password of the user.
	PasswordHash []byte
}

// Kind classifies a memory. The vocabulary is closed: values outside the
// six constants below are rejected by the sanitizer.
type Kind string

const (
	// KindFact represents stable personal background.
	KindFact Kind = "fact"
	// KindGoal represents a target the user works toward.
	KindGoal Kind = "goal"
	// KindPreference represents a learning-style or tooling preference.
	KindPreference Kind = "preference"
	// KindWeakness represents a self-reported weak area.
	KindWeakness Kind = "weakness"
	// KindStrength represents a self-reported strong area.
	KindStrength Kind = "strength"
	// KindConstraint represents a hard constraint such as available time.
	KindConstraint Kind = "constraint"
)

// ValidKind reports whether k is a member of the closed kind vocabulary.
func ValidKind(k Kind) bool {
	switch k {
	case KindFact, KindGoal, KindPreference, KindWeakness, KindStrength, KindConstraint:
		return true
	}
	return false
}

// Memory provenance tags.
const (
	// SourceSystem marks memories seeded at signup.
	SourceSystem = "system"
	// SourceChat marks memories extracted from chat messages.
	SourceChat = "chat"
)

// Memory is a durable, immutable fact record about a user. Memories are
// append-only: no update or delete operation exists.
type Memory struct {
	// ID is the unique identifier for the memory.
	ID string `json:"memory_id"`
	// Text is the canonical memory sentence, trimmed and non-empty.
	Text string `json:"text"`
	// Kind classifies the memory within the closed vocabulary.
	Kind Kind `json:"kind"`
	// Confidence is clamped into [0.0, 1.0].
	Confidence float64 `json:"confidence"`
	// Source records where the memory came from ("system" or "chat").
	Source string `json:"source"`
	// CreatedAt is assigned by the store at insert time and orders
	// memories newest-first per user.
	CreatedAt time.Time `json:"created_at"`
}

// Candidate is an unvalidated (text, kind, confidence) triple proposed by
// the LLM as a new memory to persist. It must pass the sanitizer and the
// persistence gate before it becomes a Memory.
type Candidate struct {
	Text       string  `json:"text"`
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
}

// Citation surfaces a retrieved memory to the caller as evidence for an
// answer. Score is a positional heuristic, not a model-derived measure.
type Citation struct {
	MemoryID string  `json:"memory_id"`
	Snippet  string  `json:"snippet"`
	Score    float64 `json:"score"`
}

// TraceEntry records the outcome of one pipeline stage: its status,
// elapsed time, and optional error or storage details.
type TraceEntry struct {
	Stage  string      `json:"stage"`
	Status string      `json:"status"`
	Ms     int64       `json:"ms"`
	Error  string      `json:"error,omitempty"`
	Count  *int        `json:"count,omitempty"`
	Items  []Candidate `json:"items,omitempty"`
	Item   *Candidate  `json:"item,omitempty"`
}

// Trace entry statuses.
const (
	// StatusOK marks a stage that completed.
	StatusOK = "ok"
	// StatusError marks a stage that failed.
	StatusError = "error"
)
