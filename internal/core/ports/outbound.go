package ports

import (
	"context"

	"github.com/kirillkom/tutor-context/internal/core/domain"
)

// VectorIndex performs approximate-nearest-neighbor search over chunk
// embeddings. It returns refs only; hydration is the event store's job.
type VectorIndex interface {
	Search(ctx context.Context, embedding []float32, k int) ([]domain.ChunkRef, error)
}

// LexicalIndex performs ranked full-text matching against query text.
type LexicalIndex interface {
	Search(ctx context.Context, queryText string, k int) ([]domain.ChunkRef, error)
}

// EventStore reads CandidateChunk-shaped records from the persistent
// tutoring log. The engine never writes through this port.
type EventStore interface {
	GetChunksByIDs(ctx context.Context, chunkIDs []string) ([]domain.CandidateChunk, error)
	ListRecentChunks(ctx context.Context, window domain.TimeWindow, limit int) ([]domain.CandidateChunk, error)
}

// TracePublisher ships retrieval traces to the audit stream. Publishing
// is best-effort; failures never surface to the compose caller.
type TracePublisher interface {
	Publish(ctx context.Context, trace domain.RetrievalTrace) error
}

// QueryEmbedder turns query text into the same vector space the chunk
// embeddings live in. Used by the edges to enrich requests that arrive
// without an embedding; the composer itself never calls it.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
