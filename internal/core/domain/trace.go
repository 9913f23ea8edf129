package domain

import "time"

// Decision records a candidate's disposition in the pipeline.
type Decision string

const (
	DecisionKept     Decision = "kept"
	DecisionFiltered Decision = "filtered"
	DecisionTrimmed  Decision = "trimmed"
)

// TraceEntry is one candidate's scores and disposition. Every candidate
// considered by the pipeline gets exactly one entry.
type TraceEntry struct {
	ChunkID       string              `json:"chunk_id"`
	ChannelScores map[Channel]float64 `json:"channel_scores,omitempty"`
	CombinedScore float64             `json:"combined_score"`
	Decision      Decision            `json:"decision"`
	Reason        string              `json:"reason,omitempty"`
}

// TokenAllocation reports how the budget was split between conversation
// history and retrieved context.
type TokenAllocation struct {
	Budget          int `json:"budget"`
	HistoryTokens   int `json:"history_tokens"`
	HistoryBudget   int `json:"history_budget"`
	RetrievalBudget int `json:"retrieval_budget"`
	TokensUsed      int `json:"tokens_used"`
}

// RetrievalTrace is the auditable record of one compose invocation.
type RetrievalTrace struct {
	TraceID          string          `json:"trace_id"`
	QueryText        string          `json:"query_text"`
	Weights          Weights         `json:"weights"`
	DegradedChannels []Channel       `json:"degraded_channels,omitempty"`
	Entries          []TraceEntry    `json:"entries"`
	Allocation       TokenAllocation `json:"allocation"`
	CreatedAt        time.Time       `json:"created_at"`
}

// AssembledContext is the pipeline output: the final chunk ordering,
// its token cost, and the trace that explains it.
type AssembledContext struct {
	OrderedChunks []CandidateChunk `json:"ordered_chunks"`
	TokensUsed    int              `json:"tokens_used"`
	Trace         RetrievalTrace   `json:"trace"`
}
