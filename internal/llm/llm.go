// Package llm provides thin gateway clients over third-party
// text-generation APIs. Two request shapes exist: free-text completion
// (Gemini) and structured completion returning an answer plus extraction
// candidates in one call (Groq). A separate extraction-only call covers
// providers without a combined response.
package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/prepchat/prepchat/internal/models"
)

// Error describes a failed LLM provider call: transport failure,
// non-success status, or a fully unparsable response.
type Error struct {
	// Provider names the API the call went to ("gemini" or "groq").
	Provider string
	// Status is the HTTP status code, or 0 for transport-level failures.
	Status int
	// Message carries provider detail, truncated to a sane length.
	Message string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

// fenceOpen and fenceClose strip markdown code fences the model sometimes
// wraps JSON output in (```json ... ```).
var (
	fenceOpen  = regexp.MustCompile("^```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// stripFences removes a leading and trailing markdown code fence, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// salvageJSON locates the first top-level JSON object embedded anywhere
// in the text: the span from the first '{' to the last '}'. It tolerates
// the model wrapping output in commentary or code fences.
func salvageJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// wireCandidate is the untrusted candidate shape on the wire. Confidence
// tolerates numbers and numeric strings; anything else decodes to zero.
type wireCandidate struct {
	Text       string     `json:"text"`
	Kind       string     `json:"kind"`
	Confidence confidence `json:"confidence"`
}

type confidence float64

// UnmarshalJSON never fails: unparsable values default to zero so a bad
// confidence cannot sink the candidate it belongs to.
func (c *confidence) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*c = confidence(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*c = confidence(f)
			return nil
		}
	}
	*c = 0
	return nil
}

// decodeCandidates converts raw JSON elements into candidates, dropping
// elements that fail to decode. One malformed candidate never aborts the
// batch.
func decodeCandidates(raws []json.RawMessage) []models.Candidate {
	out := make([]models.Candidate, 0, len(raws))
	for _, raw := range raws {
		var w wireCandidate
		if err := json.Unmarshal(raw, &w); err != nil {
			continue
		}
		out = append(out, models.Candidate{
			Text:       w.Text,
			Kind:       w.Kind,
			Confidence: float64(w.Confidence),
		})
	}
	return out
}
