package kb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/meeting"
)

// keywordEmbedder maps texts onto a tiny fixed vocabulary so similarity is
// fully deterministic in tests.
type keywordEmbedder struct{}

func (keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 2)
		lower := strings.ToLower(t)
		if strings.Contains(lower, "budget") {
			v[0] = 1
		}
		if strings.Contains(lower, "roadmap") {
			v[1] = 1
		}
		out[i] = v
	}
	return out, nil
}

type memStore struct {
	chunks []Chunk
}

func (m *memStore) Replace(_ context.Context, userID string, sessionID uuid.UUID, chunks []Chunk) error {
	kept := m.chunks[:0]
	for _, c := range m.chunks {
		if c.UserID == userID && c.SessionID == sessionID {
			continue
		}
		kept = append(kept, c)
	}
	m.chunks = append(kept, chunks...)
	return nil
}

func (m *memStore) Query(_ context.Context, userID string, embedding []float32, k int) ([]ScoredChunk, error) {
	var scored []ScoredChunk
	for _, c := range m.chunks {
		if c.UserID != userID {
			continue
		}
		scored = append(scored, ScoredChunk{Chunk: c, Similarity: cosineSimilarity(embedding, c.Embedding)})
	}
	return topK(scored, k), nil
}

type fakeReasoner struct {
	answer   string
	err      error
	contexts []string
}

func (r *fakeReasoner) Answer(_ context.Context, question string, contexts []string, model string) (string, error) {
	r.contexts = contexts
	return r.answer, r.err
}

func newTestService(store VectorStore, reasoner Reasoner) *Service {
	return NewService(keywordEmbedder{}, store, reasoner, Config{
		ChunkSize:           MaxChunkSize,
		ChunkOverlap:        DefaultOverlap,
		TopK:                10,
		SimilarityThreshold: 0.25,
	}, logging.NewNopLogger())
}

func report(userID string, sessionID uuid.UUID, summary string) *meeting.Report {
	return &meeting.Report{
		SessionID: sessionID,
		UserID:    userID,
		SummaryEN: summary,
		Minutes:   []string{},
		Actions:   []meeting.ActionItem{},
	}
}

func TestAskReturnsGroundedAnswer(t *testing.T) {
	store := &memStore{}
	reasoner := &fakeReasoner{answer: "The budget was approved."}
	svc := newTestService(store, reasoner)

	sessionID := uuid.New()
	require.NoError(t, svc.IndexReport(context.Background(), report("alice", sessionID, "We discussed the budget increase.")))

	ans, err := svc.Ask(context.Background(), "alice", "what happened with the budget?")
	require.NoError(t, err)

	assert.Equal(t, "The budget was approved.", ans.Text)
	assert.Equal(t, []uuid.UUID{sessionID}, ans.Sources)
	require.Len(t, reasoner.contexts, 1)
	assert.Contains(t, reasoner.contexts[0], "budget increase")
}

func TestAskIsScopedToUser(t *testing.T) {
	store := &memStore{}
	reasoner := &fakeReasoner{answer: "irrelevant"}
	svc := newTestService(store, reasoner)

	require.NoError(t, svc.IndexReport(context.Background(), report("alice", uuid.New(), "Budget planning for Q3.")))

	// Bob has no meetings; Alice's chunks must not leak into his answer.
	_, err := svc.Ask(context.Background(), "bob", "what is the budget?")
	assert.ErrorIs(t, err, renaerrors.ErrNoRelevantMeeting)
}

func TestAskBelowThresholdRefuses(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, &fakeReasoner{answer: "should not be called"})

	require.NoError(t, svc.IndexReport(context.Background(), report("alice", uuid.New(), "Roadmap review for the mobile app.")))

	// "budget" and "roadmap" are orthogonal in the test embedding space.
	_, err := svc.Ask(context.Background(), "alice", "what is the budget?")
	assert.ErrorIs(t, err, renaerrors.ErrNoRelevantMeeting)
}

func TestAskEmptyQuestion(t *testing.T) {
	svc := newTestService(&memStore{}, &fakeReasoner{})
	_, err := svc.Ask(context.Background(), "alice", "   ")
	assert.ErrorIs(t, err, renaerrors.ErrValidation)
}

func TestReindexReplacesPreviousChunks(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, &fakeReasoner{answer: "ok"})

	sessionID := uuid.New()
	require.NoError(t, svc.IndexReport(context.Background(), report("alice", sessionID, "Budget discussion.")))
	first := len(store.chunks)

	require.NoError(t, svc.IndexReport(context.Background(), report("alice", sessionID, "Budget discussion, second pass.")))
	assert.Equal(t, first, len(store.chunks), "re-indexing must replace, not accumulate")
}

func TestAskDeduplicatesSources(t *testing.T) {
	store := &memStore{}
	reasoner := &fakeReasoner{answer: "ok"}
	svc := newTestService(store, reasoner)

	sessionID := uuid.New()
	rep := report("alice", sessionID, strings.Repeat("budget planning details. ", 100))
	require.NoError(t, svc.IndexReport(context.Background(), rep))
	require.Greater(t, len(store.chunks), 1, "long report should produce multiple chunks")

	ans, err := svc.Ask(context.Background(), "alice", "budget?")
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{sessionID}, ans.Sources)
	assert.Greater(t, len(reasoner.contexts), 1)
}

func TestAskReasonerFailure(t *testing.T) {
	store := &memStore{}
	svc := newTestService(store, &fakeReasoner{err: errors.New("model offline")})

	require.NoError(t, svc.IndexReport(context.Background(), report("alice", uuid.New(), "Budget talk.")))

	_, err := svc.Ask(context.Background(), "alice", "budget?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model offline")
}

func TestChunkTextShortInput(t *testing.T) {
	chunks := ChunkText("hello world", MaxChunkSize, DefaultOverlap)
	assert.Equal(t, []string{"hello world"}, chunks)
}

func TestChunkTextEmpty(t *testing.T) {
	assert.Nil(t, ChunkText("   \n\t  ", MaxChunkSize, DefaultOverlap))
	assert.Nil(t, ChunkText("", MaxChunkSize, DefaultOverlap))
}

func TestChunkTextOverlap(t *testing.T) {
	text := strings.Repeat("a", 1500)
	chunks := ChunkText(text, 1024, 100)

	require.Len(t, chunks, 2)
	assert.Len(t, []rune(chunks[0]), 1024)
	// Second chunk starts at offset 924, so the windows share 100 runes.
	assert.Len(t, []rune(chunks[1]), 1500-924)
}

func TestChunkTextClampsDegenerateWindows(t *testing.T) {
	// Undersized windows are raised to the minimum chunk size; the window
	// must always advance, so no parameter combination may loop or panic.
	text := strings.Repeat("a", 2000)

	chunks := ChunkText(text, 50, 0)
	require.NotEmpty(t, chunks)
	assert.Len(t, []rune(chunks[0]), MinChunkSize)

	chunks = ChunkText(text, 50, 100)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), MaxChunkSize)
	}

	// Overlap at or above the window size shrinks to size-1.
	chunks = ChunkText(strings.Repeat("b", 600), MinChunkSize, MinChunkSize+50)
	require.NotEmpty(t, chunks)
}

func TestNewServiceKeepsExplicitZeroOverlap(t *testing.T) {
	svc := NewService(nil, nil, nil, Config{ChunkSize: MaxChunkSize, ChunkOverlap: 0}, logging.NewNopLogger())
	assert.Equal(t, 0, svc.cfg.ChunkOverlap)

	svc = NewService(nil, nil, nil, Config{ChunkSize: MaxChunkSize, ChunkOverlap: -1}, logging.NewNopLogger())
	assert.Equal(t, DefaultOverlap, svc.cfg.ChunkOverlap)
}

func TestChunkTextRuneSafe(t *testing.T) {
	// Multi-byte text must split on rune boundaries.
	text := strings.Repeat("नमस्ते ", 300)
	chunks := ChunkText(text, 1024, 100)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk must remain valid UTF-8")
		assert.LessOrEqual(t, len([]rune(c)), 1024)
	}
}
