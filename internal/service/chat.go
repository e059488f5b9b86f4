package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prepchat/prepchat/internal/memory"
	"github.com/prepchat/prepchat/internal/models"
)

// Pipeline stage names as they appear in the debug trace.
const (
	stageRetrieve = "retrieve_memories"
	stageLLM      = "llm_call"
	stageExtract  = "extract_memories_llm"
	stageStore    = "store_memories"
	stageStored   = "stored_memories"
)

// maxCitations caps how many retrieved memories are surfaced as citations.
const maxCitations = 5

// snippetLen is the citation snippet length in runes.
const snippetLen = 80

// MemoryStore defines the graph-store operations the chat pipeline needs.
type MemoryStore interface {
	// Append writes a new memory for the user.
	Append(ctx context.Context, userID string, m models.Memory) error
	// Recent returns up to limit memories for the user, newest first.
	Recent(ctx context.Context, userID string, limit int) ([]models.Memory, error)
}

// Generator performs the single LLM call of a chat turn. Structured
// providers return the extraction candidates from the same call;
// free-text providers return a nil candidate list.
type Generator interface {
	Generate(ctx context.Context, prompt string) (answer string, candidates []models.Candidate, err error)
}

// Extractor proposes memory candidates from the raw user message. Only
// free-text providers need one; structured providers obtain candidates
// through Generate.
type Extractor interface {
	ExtractMemories(ctx context.Context, message string) ([]models.Candidate, error)
}

// SessionResolver resolves bearer tokens to user identities.
type SessionResolver interface {
	Resolve(token string) (string, bool)
}

// ChatService orchestrates one chat turn: retrieval, prompt assembly, the
// LLM call, extraction, confidence-gated persistence, and citation
// assembly. Every stage after authentication degrades gracefully; its
// outcome and elapsed time land in the trace either way.
type ChatService struct {
	sessions  SessionResolver
	store     MemoryStore
	generator Generator
	extractor Extractor
	limit     int
	logger    *zap.Logger
}

// NewChatService constructs the pipeline. extractor may be nil when the
// generator returns candidates itself (structured mode); in that case the
// prompt carries the JSON-envelope instructions.
func NewChatService(sessions SessionResolver, store MemoryStore, generator Generator, extractor Extractor, limit int, logger *zap.Logger) *ChatService {
	return &ChatService{
		sessions:  sessions,
		store:     store,
		generator: generator,
		extractor: extractor,
		limit:     limit,
		logger:    logger,
	}
}

// ChatResult is the outcome of one chat turn.
type ChatResult struct {
	// Answer is the model's answer, or a "[LLM ERROR] ..." sentinel when
	// the generate call failed.
	Answer string
	// RetrievalTimeMs is the elapsed time of the last successful
	// retrieval stage.
	RetrievalTimeMs int64
	// LLMTimeMs is the elapsed time of the last successful LLM call.
	LLMTimeMs int64
	// Citations lists the retrieved memories the answer drew on.
	Citations []models.Citation
	// Trace is the ordered log of stage outcomes.
	Trace []models.TraceEntry
}

// Chat runs one turn for the session token. It fails only when the token
// does not resolve; every later stage degrades into the trace instead of
// aborting the turn.
func (s *ChatService) Chat(ctx context.Context, token, message string) (*ChatResult, error) {
	userID, ok := s.sessions.Resolve(token)
	if !ok {
		return nil, models.ErrInvalidSession
	}

	var trace []models.TraceEntry

	// Retrieve memories first; the prompt depends on them. A store
	// failure degrades to empty context with an error trace entry.
	var memories []models.Memory
	if err := timed(&trace, stageRetrieve, func() error {
		var err error
		memories, err = s.store.Recent(ctx, userID, s.limit)
		return err
	}); err != nil {
		s.logger.Warn("memory retrieval failed", zap.String("user_id", userID), zap.Error(err))
		memories = nil
	}

	// One LLM call. On failure the turn continues with a visible
	// sentinel answer; citations and storage still run.
	prompt := s.buildPrompt(memories, message)
	var answer string
	var candidates []models.Candidate
	if err := timed(&trace, stageLLM, func() error {
		var err error
		answer, candidates, err = s.generator.Generate(ctx, prompt)
		return err
	}); err != nil {
		s.logger.Warn("llm call failed", zap.Error(err))
		answer = "[LLM ERROR] " + err.Error()
		candidates = nil
	}

	// Free-text mode extracts candidates in a separate call on the raw
	// message. Extraction failure means no candidates, never a lost turn.
	if s.extractor != nil {
		if err := timed(&trace, stageExtract, func() error {
			var err error
			candidates, err = s.extractor.ExtractMemories(ctx, message)
			return err
		}); err != nil {
			s.logger.Warn("memory extraction failed", zap.Error(err))
			candidates = nil
		}
	}

	// Sanitize, gate, and persist each candidate independently.
	stored := s.persist(ctx, userID, candidates, &trace)
	count := len(stored)
	trace = append(trace, models.TraceEntry{
		Stage:  stageStored,
		Status: models.StatusOK,
		Count:  &count,
		Items:  firstN(stored, maxCitations),
	})

	return &ChatResult{
		Answer:          answer,
		RetrievalTimeMs: lastOkMs(trace, stageRetrieve),
		LLMTimeMs:       lastOkMs(trace, stageLLM),
		Citations:       buildCitations(memories),
		Trace:           trace,
	}, nil
}

// persist applies the sanitizer and the persistence gate, then writes the
// surviving candidates. A store failure for one candidate is recorded in
// the trace and does not block the rest of the batch.
func (s *ChatService) persist(ctx context.Context, userID string, candidates []models.Candidate, trace *[]models.TraceEntry) []models.Candidate {
	var stored []models.Candidate
	_ = timed(trace, stageStore, func() error {
		for _, c := range memory.Sanitize(candidates) {
			if !memory.Storable(c) {
				continue
			}
			m := memory.New(c.Text, models.Kind(c.Kind), models.SourceChat, c.Confidence)
			if err := s.store.Append(ctx, userID, m); err != nil {
				s.logger.Warn("memory store failed", zap.String("user_id", userID), zap.Error(err))
				item := c
				*trace = append(*trace, models.TraceEntry{
					Stage:  stageStore,
					Status: models.StatusError,
					Error:  err.Error(),
					Item:   &item,
				})
				continue
			}
			stored = append(stored, c)
		}
		return nil
	})
	return stored
}

// promptPreamble constrains the model to the supplied context.
const promptPreamble = `You are an interview prep assistant. Use ONLY the provided user memory context.
If context is insufficient, still answer normally using general knowledge, and ask 1 clarifying question if needed.`

// structuredInstructions extend the prompt for providers that return the
// answer and the extraction candidates in one call.
const structuredInstructions = `Return STRICT JSON only in this exact schema:
{
  "answer": "your answer to the user",
  "memories": [
    {
      "text": "short canonical memory sentence",
      "kind": "fact|goal|preference|weakness|strength|constraint",
      "confidence": 0.0
    }
  ]
}

Extract at most 5 memories. Use confidence >= 0.75 only when the user clearly stated the fact.
If nothing important, return "memories": [].`

// buildPrompt assembles the turn's prompt: preamble, one line per
// retrieved memory in retrieval order, and the verbatim user message.
// Memory text is treated as already-sanitized plain prose.
func (s *ChatService) buildPrompt(memories []models.Memory, message string) string {
	var b strings.Builder
	b.WriteString(promptPreamble)
	if s.extractor == nil {
		b.WriteString("\n\n")
		b.WriteString(structuredInstructions)
	}
	b.WriteString("\n\nUser memory context:\n")
	for _, m := range memories {
		fmt.Fprintf(&b, "- (%s) %s [id=%s]\n", m.Kind, m.Text, m.ID)
	}
	b.WriteString("\nUser message:\n")
	b.WriteString(message)
	return b.String()
}

// buildCitations emits one citation per retrieved memory, capped at
// maxCitations, with a descending positional score: 1.00, 0.95, 0.90, ...
func buildCitations(memories []models.Memory) []models.Citation {
	n := len(memories)
	if n > maxCitations {
		n = maxCitations
	}
	citations := make([]models.Citation, 0, n)
	for i := 0; i < n; i++ {
		citations = append(citations, models.Citation{
			MemoryID: memories[i].ID,
			Snippet:  truncate(memories[i].Text, snippetLen),
			Score:    1.0 - float64(i)*0.05,
		})
	}
	return citations
}

// timed runs fn and appends an ok or error trace entry with the elapsed
// time on every exit path. It returns fn's error so callers can apply
// their degradation policy.
func timed(trace *[]models.TraceEntry, stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	ms := time.Since(start).Milliseconds()
	if err != nil {
		*trace = append(*trace, models.TraceEntry{
			Stage:  stage,
			Status: models.StatusError,
			Ms:     ms,
			Error:  err.Error(),
		})
		return err
	}
	*trace = append(*trace, models.TraceEntry{Stage: stage, Status: models.StatusOK, Ms: ms})
	return nil
}

// lastOkMs returns the elapsed time of the last successful entry for the
// stage. When a stage name recurs, the last "ok" entry wins.
func lastOkMs(trace []models.TraceEntry, stage string) int64 {
	var ms int64
	for _, e := range trace {
		if e.Stage == stage && e.Status == models.StatusOK {
			ms = e.Ms
		}
	}
	return ms
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func firstN(items []models.Candidate, n int) []models.Candidate {
	if len(items) <= n {
		return items
	}
	return items[:n]
}
