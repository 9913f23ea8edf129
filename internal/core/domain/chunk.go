package domain

import "time"

// Channel identifies a retrieval signal source.
type Channel string

const (
	ChannelSemantic Channel = "semantic"
	ChannelLexical  Channel = "lexical"
	ChannelRecency  Channel = "recency"
)

// Channels lists every retrieval channel in a fixed order.
func Channels() []Channel {
	return []Channel{ChannelSemantic, ChannelLexical, ChannelRecency}
}

// CandidateChunk is one retrievable unit of prior tutoring material.
// A zero CreatedAt means the timestamp is unknown; such chunks are
// treated as maximally stale by the recency scorer.
type CandidateChunk struct {
	ChunkID       string              `json:"chunk_id"`
	SourceEventID string              `json:"source_event_id"`
	Text          string              `json:"text"`
	TopicTags     []string            `json:"topic_tags,omitempty"`
	SkillTags     []string            `json:"skill_tags,omitempty"`
	CreatedAt     time.Time           `json:"created_at,omitzero"`
	Embedding     []float32           `json:"-"`
	ChannelScores map[Channel]float64 `json:"channel_scores,omitempty"`
	CombinedScore float64             `json:"combined_score"`
}

// HasChannelSignal reports whether any channel produced a positive raw
// score for the chunk. Chunks without a signal never reach filtering.
func (c CandidateChunk) HasChannelSignal() bool {
	for _, score := range c.ChannelScores {
		if score > 0 {
			return true
		}
	}
	return false
}

// ChunkRef is a lightweight index hit: a chunk identity plus the raw
// score the index assigned it. The event store hydrates refs into full
// CandidateChunk records.
type ChunkRef struct {
	ChunkID string  `json:"chunk_id"`
	Score   float64 `json:"score"`
}
