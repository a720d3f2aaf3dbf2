package kb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/renalabs/rena/pkg/logging"
)

// PGStore is the Postgres-backed vector store. Embeddings live in the
// knowledge_chunks table as REAL[] and similarity is computed on retrieval;
// per-user corpora are small enough that a scan beats operating a dedicated
// vector index.
type PGStore struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewPGStore creates a Postgres vector store.
func NewPGStore(pool *pgxpool.Pool, logger logging.Logger) *PGStore {
	return &PGStore{
		pool:   pool,
		logger: logger.With(logging.F("component", "kb_store")),
	}
}

// Replace swaps all chunks for a session inside one transaction.
func (s *PGStore) Replace(ctx context.Context, userID string, sessionID uuid.UUID, chunks []Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin chunk replace: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM knowledge_chunks WHERE user_id = $1 AND session_id = $2
	`, userID, sessionID); err != nil {
		return fmt.Errorf("failed to clear previous chunks: %w", err)
	}

	for _, c := range chunks {
		if _, err := tx.Exec(ctx, `
			INSERT INTO knowledge_chunks (user_id, session_id, chunk_index, content, embedding)
			VALUES ($1, $2, $3, $4, $5)
		`, userID, sessionID, c.Index, c.Content, c.Embedding); err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunk replace: %w", err)
	}
	return nil
}

// Query scans the user's chunks and returns the k most similar, best first.
// The user_id filter is applied in SQL before any similarity work, so other
// users' data never enters the candidate set.
func (s *PGStore) Query(ctx context.Context, userID string, embedding []float32, k int) ([]ScoredChunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, chunk_index, content, embedding
		FROM knowledge_chunks
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var scored []ScoredChunk
	for rows.Next() {
		c := Chunk{UserID: userID}
		if err := rows.Scan(&c.SessionID, &c.Index, &c.Content, &c.Embedding); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		scored = append(scored, ScoredChunk{
			Chunk:      c,
			Similarity: cosineSimilarity(embedding, c.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return topK(scored, k), nil
}
