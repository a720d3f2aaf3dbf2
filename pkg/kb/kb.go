package kb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	renaerrors "github.com/renalabs/rena/pkg/errors"
	"github.com/renalabs/rena/pkg/logging"
	"github.com/renalabs/rena/pkg/meeting"
	"github.com/renalabs/rena/pkg/synthesis"
)

// Embedder turns texts into vectors, one per input in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore holds chunk embeddings. Query results are strictly scoped to
// the given user.
type VectorStore interface {
	// Replace atomically swaps all chunks for a session, making re-indexing
	// idempotent.
	Replace(ctx context.Context, userID string, sessionID uuid.UUID, chunks []Chunk) error

	// Query returns the k most similar chunks for the user, best first.
	Query(ctx context.Context, userID string, embedding []float32, k int) ([]ScoredChunk, error)
}

// Reasoner produces a grounded answer from retrieved context passages.
type Reasoner interface {
	Answer(ctx context.Context, question string, contexts []string, model string) (string, error)
}

// Config holds retrieval settings.
type Config struct {
	ChunkSize           int
	ChunkOverlap        int
	TopK                int
	SimilarityThreshold float64
	AnswerModel         string
}

// Answer is the response to a knowledge-base question.
type Answer struct {
	Text    string
	Sources []uuid.UUID
}

// Service indexes meeting reports and answers questions over them.
type Service struct {
	embedder Embedder
	store    VectorStore
	reasoner Reasoner
	cfg      Config
	logger   logging.Logger
}

// NewService creates a knowledge-base service.
func NewService(embedder Embedder, store VectorStore, reasoner Reasoner, cfg Config, logger logging.Logger) *Service {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = MaxChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultOverlap
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 10
	}
	if logger == nil {
		logger = logging.MustGlobal()
	}
	return &Service{
		embedder: embedder,
		store:    store,
		reasoner: reasoner,
		cfg:      cfg,
		logger:   logger.With(logging.F("component", "knowledge_base")),
	}
}

// IndexReport chunks, embeds, and stores a meeting report. Indexing the same
// session again replaces its previous chunks in full.
func (s *Service) IndexReport(ctx context.Context, rep *meeting.Report) error {
	doc := buildDocument(rep)
	texts := ChunkText(doc, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(texts) == 0 {
		s.logger.Warn("Nothing to index for session",
			logging.F("session_id", rep.SessionID.String()))
		return nil
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}

	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{
			UserID:    rep.UserID,
			SessionID: rep.SessionID,
			Index:     i,
			Content:   text,
			Embedding: vectors[i],
		}
	}

	if err := s.store.Replace(ctx, rep.UserID, rep.SessionID, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	s.logger.Info("Session indexed",
		logging.F("session_id", rep.SessionID.String()),
		logging.F("chunks", len(chunks)))
	return nil
}

// Ask answers a question from the user's indexed meetings. When no chunk
// clears the similarity threshold it returns ErrNoRelevantMeeting rather than
// letting the model answer from thin air.
func (s *Service) Ask(ctx context.Context, userID, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", renaerrors.ErrValidation)
	}

	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	scored, err := s.store.Query(ctx, userID, vectors[0], s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}

	var (
		contexts []string
		sources  []uuid.UUID
		seen     = map[uuid.UUID]bool{}
	)
	for _, sc := range scored {
		if sc.Similarity < s.cfg.SimilarityThreshold {
			continue
		}
		contexts = append(contexts, sc.Content)
		if !seen[sc.SessionID] {
			seen[sc.SessionID] = true
			sources = append(sources, sc.SessionID)
		}
	}
	if len(contexts) == 0 {
		return nil, renaerrors.ErrNoRelevantMeeting
	}

	text, err := s.reasoner.Answer(ctx, question, contexts, s.cfg.AnswerModel)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &Answer{Text: text, Sources: sources}, nil
}

// buildDocument flattens a report into indexable text: summary, minutes,
// action items, then the attributed transcript.
func buildDocument(rep *meeting.Report) string {
	var b strings.Builder
	if rep.SummaryEN != "" {
		b.WriteString(rep.SummaryEN)
		b.WriteString("\n\n")
	}
	for _, line := range rep.Minutes {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	for _, a := range rep.Actions {
		b.WriteString(fmt.Sprintf("Action: %s (owner: %s", a.Task, a.Owner))
		if a.Deadline != "" {
			b.WriteString(", due " + a.Deadline)
		}
		b.WriteString(")\n")
	}
	if len(rep.Transcript) > 0 {
		b.WriteString("\n")
		b.WriteString(synthesis.FormatTranscript(rep.Transcript))
	}
	return b.String()
}

// cosineSimilarity is zero for mismatched or zero-magnitude vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// topK sorts scored chunks best first and truncates to k.
func topK(scored []ScoredChunk, k int) []ScoredChunk {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored
}
