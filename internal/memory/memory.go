// Package memory provides construction, sanitization, and the persistence
// gate for memory records.
package memory

import (
	"strings"

	"github.com/google/uuid"

	"github.com/prepchat/prepchat/internal/models"
)

// ConfidenceThreshold gates persistence of chat-derived memories.
const ConfidenceThreshold = 0.75

// maxCandidates caps one turn's extraction batch. The prompt asks the
// model for at most 5; the cap holds even when the model ignores that.
const maxCandidates = 5

// New builds a memory record with a fresh ID and trimmed text. The store
// assigns created_at at insert time.
func New(text string, kind models.Kind, source string, confidence float64) models.Memory {
	return models.Memory{
		ID:         uuid.NewString(),
		Text:       strings.TrimSpace(text),
		Kind:       kind,
		Confidence: confidence,
		Source:     source,
	}
}

// Sanitize validates and normalizes raw extraction candidates. It is
// total: malformed candidates are dropped, never an error. For each
// candidate the text is trimmed (empty → dropped), the kind must belong
// to the closed vocabulary (otherwise dropped), and the confidence is
// clamped into [0.0, 1.0]. Survivors keep their input order, capped at
// maxCandidates.
func Sanitize(candidates []models.Candidate) []models.Candidate {
	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		kind := strings.TrimSpace(c.Kind)
		if !models.ValidKind(models.Kind(kind)) {
			continue
		}
		out = append(out, models.Candidate{
			Text:       text,
			Kind:       kind,
			Confidence: clamp(c.Confidence),
		})
		if len(out) == maxCandidates {
			break
		}
	}
	return out
}

// Storable reports whether a sanitized candidate passes the persistence
// gate: non-empty text, valid kind, and confidence at or above the
// threshold.
func Storable(c models.Candidate) bool {
	if strings.TrimSpace(c.Text) == "" {
		return false
	}
	if !models.ValidKind(models.Kind(c.Kind)) {
		return false
	}
	return c.Confidence >= ConfidenceThreshold
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
