package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGroqTestClient(srv *httptest.Server) *GroqClient {
	c := NewGroqClient("test-key", "test-model")
	c.baseURL = srv.URL
	return c
}

// groqBody builds a chat-completions response whose single choice carries
// content.
func groqBody(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
		"usage": map[string]any{
			"prompt_tokens":     10,
			"completion_tokens": 20,
			"total_tokens":      30,
		},
	}
}

func TestGroq_StrictJSON(t *testing.T) {
	content := `{"answer":"hi","memories":[{"text":"wants FAANG SWE role","kind":"goal","confidence":0.9}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req groqRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 0.5, req.Temperature)
		assert.Equal(t, 900, req.MaxTokens)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		json.NewEncoder(w).Encode(groqBody(content))
	}))
	defer srv.Close()

	client := newGroqTestClient(srv)
	result, err := client.AnswerAndMemories(context.Background(), "the prompt")
	require.NoError(t, err)

	assert.Equal(t, "hi", result.Answer)
	assert.False(t, result.Malformed)
	require.Len(t, result.Candidates, 1)
	assert.Equal(t, "wants FAANG SWE role", result.Candidates[0].Text)
	assert.Equal(t, "goal", result.Candidates[0].Kind)
	assert.Equal(t, 0.9, result.Candidates[0].Confidence)

	assert.Equal(t, "test-model", result.Debug.Model)
	assert.Equal(t, "the prompt", result.Debug.Prompt)
	assert.Equal(t, content, result.Debug.RawContent)
	assert.Equal(t, 30, result.Debug.Usage.TotalTokens)
}

func TestGroq_FencedJSON(t *testing.T) {
	content := "```json\n{\"answer\":\"fenced\",\"memories\":[]}\n```"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(groqBody(content))
	}))
	defer srv.Close()

	client := newGroqTestClient(srv)
	result, err := client.AnswerAndMemories(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "fenced", result.Answer)
	assert.False(t, result.Malformed)
	assert.Empty(t, result.Candidates)
}

func TestGroq_SalvagesEmbeddedObject(t *testing.T) {
	content := `Sure! Here is the JSON you asked for: {"answer":"salvaged","memories":[]} hope that helps`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(groqBody(content))
	}))
	defer srv.Close()

	client := newGroqTestClient(srv)
	result, err := client.AnswerAndMemories(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "salvaged", result.Answer)
	assert.False(t, result.Malformed)
}

func TestGroq_FallsBackToRawText(t *testing.T) {
	content := "I am just prose, no JSON at all."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(groqBody(content))
	}))
	defer srv.Close()

	client := newGroqTestClient(srv)
	result, err := client.AnswerAndMemories(context.Background(), "p")
	require.NoError(t, err, "gateway never fails once a body arrives")
	assert.Equal(t, content, result.Answer)
	assert.True(t, result.Malformed)
	assert.Empty(t, result.Candidates)
}

func TestGroq_EmptyAnswerFallsBackToContent(t *testing.T) {
	content := `{"answer":"","memories":[]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(groqBody(content))
	}))
	defer srv.Close()

	client := newGroqTestClient(srv)
	result, err := client.AnswerAndMemories(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, content, result.Answer)
}

func TestGroq_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := newGroqTestClient(srv)
	_, err := client.AnswerAndMemories(context.Background(), "p")

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, http.StatusServiceUnavailable, llmErr.Status)
	assert.Contains(t, llmErr.Message, "model overloaded")
}

func TestGroq_MissingAPIKey(t *testing.T) {
	client := NewGroqClient("", "m")

	_, err := client.AnswerAndMemories(context.Background(), "p")
	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Contains(t, llmErr.Message, "missing API key")
}

func TestGroq_GenerateAdaptsStructuredCall(t *testing.T) {
	content := `{"answer":"adapted","memories":[{"text":"t","kind":"fact","confidence":0.8}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(groqBody(content))
	}))
	defer srv.Close()

	client := newGroqTestClient(srv)
	answer, candidates, err := client.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "adapted", answer)
	require.Len(t, candidates, 1)
}

func TestSalvageJSON(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"wrapped in prose", `before {"a":1} after`, `{"a":1}`, true},
		{"spans to last brace", `{"a":{"b":2}} tail`, `{"a":{"b":2}}`, true},
		{"no object", "nothing here", "", false},
		{"only open brace", "{oops", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := salvageJSON(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
