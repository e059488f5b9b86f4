package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newGeminiTestClient points a client at a local test server.
func newGeminiTestClient(srv *httptest.Server) *GeminiClient {
	c := NewGeminiClient("test-key")
	c.baseURL = srv.URL
	return c
}

// geminiBody builds a minimal generateContent response carrying text.
func geminiBody(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
}

func TestGeminiGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		assert.Equal(t, "hello model", req.Contents[0].Parts[0].Text)

		json.NewEncoder(w).Encode(geminiBody("hello user"))
	}))
	defer srv.Close()

	client := newGeminiTestClient(srv)
	answer, candidates, err := client.Generate(context.Background(), "hello model")
	require.NoError(t, err)
	assert.Equal(t, "hello user", answer)
	assert.Nil(t, candidates, "free-text mode never returns candidates")
}

func TestGeminiGenerate_MissingAPIKey(t *testing.T) {
	client := NewGeminiClient("")

	_, _, err := client.Generate(context.Background(), "prompt")
	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Contains(t, llmErr.Error(), "missing API key")
}

func TestGeminiGenerate_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newGeminiTestClient(srv)
	_, _, err := client.Generate(context.Background(), "prompt")

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, http.StatusTooManyRequests, llmErr.Status)
	assert.Contains(t, llmErr.Message, "quota exceeded")
}

func TestGeminiGenerate_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := newGeminiTestClient(srv)
	_, _, err := client.Generate(context.Background(), "prompt")
	require.Error(t, err)
}

func TestGeminiGenerate_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	client := newGeminiTestClient(srv)
	_, _, err := client.Generate(context.Background(), "prompt")

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Contains(t, llmErr.Message, "unexpected response format")
}

func TestGeminiExtractMemories_Success(t *testing.T) {
	payload := `{"memories":[{"text":"wants FAANG SWE role","kind":"goal","confidence":0.9}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiBody(payload))
	}))
	defer srv.Close()

	client := newGeminiTestClient(srv)
	candidates, err := client.ExtractMemories(context.Background(), "I want a FAANG SWE role")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "wants FAANG SWE role", candidates[0].Text)
	assert.Equal(t, "goal", candidates[0].Kind)
	assert.Equal(t, 0.9, candidates[0].Confidence)
}

func TestGeminiExtractMemories_FencedOutput(t *testing.T) {
	payload := "```json\n{\"memories\":[{\"text\":\"knows Go\",\"kind\":\"fact\",\"confidence\":0.8}]}\n```"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiBody(payload))
	}))
	defer srv.Close()

	client := newGeminiTestClient(srv)
	candidates, err := client.ExtractMemories(context.Background(), "I know Go")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "knows Go", candidates[0].Text)
}

func TestGeminiExtractMemories_NoJSONObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiBody("I could not find anything to extract."))
	}))
	defer srv.Close()

	client := newGeminiTestClient(srv)
	_, err := client.ExtractMemories(context.Background(), "hi")

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.Contains(t, llmErr.Message, "no JSON object")
}

func TestGeminiExtractMemories_MalformedCandidateDropped(t *testing.T) {
	payload := `{"memories":[{"text":42,"kind":"fact"},{"text":"valid","kind":"fact","confidence":"0.8"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiBody(payload))
	}))
	defer srv.Close()

	client := newGeminiTestClient(srv)
	candidates, err := client.ExtractMemories(context.Background(), "msg")
	require.NoError(t, err)
	require.Len(t, candidates, 1, "malformed candidate dropped, batch survives")
	assert.Equal(t, "valid", candidates[0].Text)
	assert.Equal(t, 0.8, candidates[0].Confidence, "numeric string confidence parses")
}

func TestGeminiExtractMemories_HTTPErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newGeminiTestClient(srv)
	_, err := client.ExtractMemories(context.Background(), "msg")
	require.Error(t, err)
	if !errors.As(err, new(*Error)) {
		t.Errorf("error type = %T; want *llm.Error", err)
	}
}
