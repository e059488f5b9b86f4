package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prepchat/prepchat/internal/models"
)

const (
	defaultGroqBaseURL = "https://api.groq.com"
	groqPath           = "/openai/v1/chat/completions"
	groqTimeout        = 60 * time.Second
	groqTemperature    = 0.5
	groqMaxTokens      = 900
)

// GroqClient calls the Groq chat-completions API in structured mode: one
// call returns both the answer and the extraction candidates.
type GroqClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGroqClient creates a Groq client for the given model with a bounded
// request timeout.
func NewGroqClient(apiKey, model string) *GroqClient {
	return &GroqClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultGroqBaseURL,
		httpClient: &http.Client{
			Timeout: groqTimeout,
		},
	}
}

// StructuredResult is the outcome of one structured completion call.
type StructuredResult struct {
	// Answer is the model's answer, or the raw content when the envelope
	// could not be decoded.
	Answer string
	// Candidates are raw extraction candidates: untrusted, not yet
	// validated.
	Candidates []models.Candidate
	// Malformed reports that the model's output was not a decodable JSON
	// envelope and Answer carries the raw text.
	Malformed bool
	// Debug carries request/response detail for the trace.
	Debug Debug
}

// Debug bundles provider metadata for observability.
type Debug struct {
	Model      string `json:"model"`
	Prompt     string `json:"prompt"`
	RawContent string `json:"raw_content"`
	Usage      Usage  `json:"usage"`
}

// Usage is the token accounting the provider reports.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// groqRequest is the chat-completions request body.
type groqRequest struct {
	Model          string        `json:"model"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens"`
	Messages       []groqMessage `json:"messages"`
	ResponseFormat *groqFormat   `json:"response_format,omitempty"`
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqFormat struct {
	Type string `json:"type"`
}

// groqResponse is the subset of the chat-completions response we read.
type groqResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// envelope is the JSON shape the prompt instructs the model to emit.
type envelope struct {
	Answer   string            `json:"answer"`
	Memories []json.RawMessage `json:"memories"`
}

// AnswerAndMemories performs exactly one structured completion. It fails
// with *Error only when the HTTP transport fails or returns a non-success
// status; once a body arrives, parsing degrades in two tiers (strict
// decode, then first embedded JSON object) and finally falls back to the
// raw text as the answer with no candidates.
func (c *GroqClient) AnswerAndMemories(ctx context.Context, prompt string) (*StructuredResult, error) {
	if c.apiKey == "" {
		return nil, &Error{Provider: "groq", Message: "missing API key"}
	}

	payload := groqRequest{
		Model:       c.model,
		Temperature: groqTemperature,
		MaxTokens:   groqMaxTokens,
		Messages: []groqMessage{
			{Role: "system", Content: "You are a helpful interview-prep assistant."},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &groqFormat{Type: "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Provider: "groq", Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+groqPath, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Provider: "groq", Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Provider: "groq", Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Provider: "groq", Status: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Provider: "groq", Status: resp.StatusCode, Message: string(raw)}
	}

	var decoded groqResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &Error{Provider: "groq", Message: "unexpected response format: " + err.Error()}
	}
	if len(decoded.Choices) == 0 {
		return nil, &Error{Provider: "groq", Message: "unexpected response format: no choices"}
	}

	content := stripFences(decoded.Choices[0].Message.Content)
	result := &StructuredResult{
		Debug: Debug{
			Model:      c.model,
			Prompt:     prompt,
			RawContent: content,
			Usage:      decoded.Usage,
		},
	}

	env, ok := parseEnvelope(content)
	if !ok {
		result.Answer = content
		result.Malformed = true
		return result, nil
	}

	result.Answer = strings.TrimSpace(env.Answer)
	if result.Answer == "" {
		result.Answer = content
	}
	result.Candidates = decodeCandidates(env.Memories)
	return result, nil
}

// parseEnvelope attempts strict decoding of the model output, then falls
// back to the first embedded JSON object. Reports false when neither tier
// yields a JSON object.
func parseEnvelope(content string) (*envelope, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(content), &env); err == nil {
		return &env, true
	}

	obj, ok := salvageJSON(content)
	if !ok {
		return nil, false
	}
	env = envelope{}
	if err := json.Unmarshal([]byte(obj), &env); err != nil {
		return nil, false
	}
	return &env, true
}

// Generate adapts the structured call to the pipeline's generator shape:
// the answer plus raw candidates from the same single call.
func (c *GroqClient) Generate(ctx context.Context, prompt string) (string, []models.Candidate, error) {
	result, err := c.AnswerAndMemories(ctx, prompt)
	if err != nil {
		return "", nil, err
	}
	return result.Answer, result.Candidates, nil
}
