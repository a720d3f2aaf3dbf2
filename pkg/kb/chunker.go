// Package kb is the per-user meeting knowledge base: report content is
// chunked, embedded, and stored for retrieval-augmented question answering.
// Every read and write is scoped by user ID; one user's meetings are never
// visible to another's queries.
package kb

import (
	"strings"

	"github.com/google/uuid"
)

// Chunking bounds. Chunks are sized in runes so multi-byte text (Hindi
// summaries included) never splits mid-character.
const (
	MinChunkSize   = 512
	MaxChunkSize   = 1024
	DefaultOverlap = 100
)

// Chunk is one indexed slice of a meeting's report content.
type Chunk struct {
	UserID    string
	SessionID uuid.UUID
	Index     int
	Content   string
	Embedding []float32
}

// ScoredChunk is a retrieval result with its cosine similarity to the query.
type ScoredChunk struct {
	Chunk
	Similarity float64
}

// ChunkText splits text into overlapping windows of at most size runes.
// Consecutive chunks share overlap runes so sentences straddling a boundary
// stay retrievable. Whitespace-only input yields no chunks. Size is clamped
// into [MinChunkSize, MaxChunkSize] and overlap to less than size, so the
// window always advances.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = MaxChunkSize
	}
	if size < MinChunkSize {
		size = MinChunkSize
	}
	if size > MaxChunkSize {
		size = MaxChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	if overlap >= size {
		overlap = size - 1
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
