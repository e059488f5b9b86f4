package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prepchat/prepchat/internal/models"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	geminiModel          = "gemini-2.5-flash"
	geminiTimeout        = 30 * time.Second
)

// GeminiClient calls the Gemini generateContent API. It implements the
// free-text answer call and the extraction-only call.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient creates a Gemini client with a bounded request timeout.
func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: defaultGeminiBaseURL,
		httpClient: &http.Client{
			Timeout: geminiTimeout,
		},
	}
}

// geminiRequest is the generateContent request body.
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// geminiResponse is the subset of the generateContent response we read.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// extractRubric instructs the model to pull durable facts out of a single
// chat message. The caller passes the raw user message, not the full
// prompt.
const extractRubric = `You extract long-term memory from a user's chat message for an interview-prep assistant.

Only extract if it is STABLE and useful later:
- personal background (role, level, domain)
- goals (target role/company, timeline)
- preferences (learning style, constraints)
- weaknesses/strengths
- hard constraints (time per day, deadlines)

Do NOT extract:
- greetings, filler, single-use requests
- temporary stuff ("today", "right now") unless it's a deadline
- the assistant's own text

Return STRICT JSON only in this exact schema:
{
  "memories": [
    {
      "text": "short canonical memory sentence",
      "kind": "fact|goal|preference|weakness|strength|constraint",
      "confidence": 0.0
    }
  ]
}

If nothing important, return:
{ "memories": [] }

User message:
%s`

// Generate performs one free-text completion and returns the answer. The
// candidate list is always nil: free-text mode obtains candidates through
// a separate ExtractMemories call. Fails with *Error on non-success
// status, a malformed body, or a missing answer field.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, []models.Candidate, error) {
	text, err := c.generateContent(ctx, prompt)
	if err != nil {
		return "", nil, err
	}
	return text, nil, nil
}

// ExtractMemories asks the model for durable facts in the given message.
// It fails with *Error on HTTP failure or when no JSON object can be
// located in the output; the caller treats failure as "no memories
// extracted" and continues.
func (c *GeminiClient) ExtractMemories(ctx context.Context, message string) ([]models.Candidate, error) {
	text, err := c.generateContent(ctx, fmt.Sprintf(extractRubric, message))
	if err != nil {
		return nil, err
	}

	obj, ok := salvageJSON(text)
	if !ok {
		return nil, &Error{Provider: "gemini", Message: "no JSON object found in extractor output"}
	}

	var envelope struct {
		Memories []json.RawMessage `json:"memories"`
	}
	if err := json.Unmarshal([]byte(obj), &envelope); err != nil {
		return nil, &Error{Provider: "gemini", Message: "malformed extractor output: " + err.Error()}
	}
	return decodeCandidates(envelope.Memories), nil
}

// generateContent performs one POST to the generateContent endpoint and
// returns the first candidate's text.
func (c *GeminiClient) generateContent(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", &Error{Provider: "gemini", Message: "missing API key"}
	}

	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &Error{Provider: "gemini", Message: err.Error()}
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, geminiModel, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Provider: "gemini", Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Provider: "gemini", Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Provider: "gemini", Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &Error{Provider: "gemini", Status: resp.StatusCode, Message: string(raw)}
	}

	var decoded geminiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &Error{Provider: "gemini", Message: "unexpected response format: " + err.Error()}
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", &Error{Provider: "gemini", Message: "unexpected response format: no candidate text"}
	}
	return decoded.Candidates[0].Content.Parts[0].Text, nil
}
