package domain

import (
	"fmt"
	"time"
)

// Weights controls how the three channel scores are combined. They sum
// to 1.0 by convention, but that is not enforced.
type Weights struct {
	Semantic float64 `json:"semantic" yaml:"semantic"`
	Recency  float64 `json:"recency" yaml:"recency"`
	Lexical  float64 `json:"lexical" yaml:"lexical"`
}

// DefaultWeights returns the process defaults used when a request does
// not carry its own weights.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.6, Recency: 0.3, Lexical: 0.1}
}

// IsZero reports whether no weight was specified at all.
func (w Weights) IsZero() bool {
	return w.Semantic == 0 && w.Recency == 0 && w.Lexical == 0
}

// TimeWindow optionally bounds the recency channel. Zero bounds are
// open ends.
type TimeWindow struct {
	From time.Time `json:"from,omitzero"`
	To   time.Time `json:"to,omitzero"`
}

// Contains reports whether t falls inside the window.
func (tw TimeWindow) Contains(t time.Time) bool {
	if !tw.From.IsZero() && t.Before(tw.From) {
		return false
	}
	if !tw.To.IsZero() && t.After(tw.To) {
		return false
	}
	return true
}

// RetrievalRequest carries the parameters of one compose invocation.
type RetrievalRequest struct {
	QueryText            string     `json:"query_text"`
	QueryEmbedding       []float32  `json:"query_embedding,omitempty"`
	TopicFilter          []string   `json:"topic_filter,omitempty"`
	TimeWindow           TimeWindow `json:"time_window,omitzero"`
	TokenBudget          int        `json:"token_budget"`
	SessionHistoryTokens int        `json:"session_history_tokens"`
	Weights              Weights    `json:"weights,omitzero"`
}

// Validate rejects requests the pipeline cannot interpret. A zero token
// budget is valid and yields an empty context.
func (r RetrievalRequest) Validate() error {
	if r.TokenBudget < 0 {
		return WrapError(ErrInvalidInput, "validate request", fmt.Errorf("token_budget must be >= 0, got %d", r.TokenBudget))
	}
	if r.SessionHistoryTokens < 0 {
		return WrapError(ErrInvalidInput, "validate request", fmt.Errorf("session_history_tokens must be >= 0, got %d", r.SessionHistoryTokens))
	}
	return nil
}

// EffectiveWeights resolves the request weights against the process
// defaults.
func (r RetrievalRequest) EffectiveWeights() Weights {
	if r.Weights.IsZero() {
		return DefaultWeights()
	}
	return r.Weights
}
