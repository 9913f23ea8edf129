package usecase

import (
	"fmt"

	"github.com/kirillkom/tutor-context/internal/core/domain"
)

const (
	reasonNoSignal       = "no_channel_signal"
	reasonBelowThreshold = "below_score_threshold"
	reasonTopicMismatch  = "topic_mismatch"
	reasonPerEventCap    = "per_event_cap"
	reasonPerTopicCap    = "per_topic_cap"
	reasonSelectionCap   = "mmr_selection_cap"
	reasonBudgetExceeded = "token_budget_exceeded"
)

type droppedCandidate struct {
	chunk  domain.CandidateChunk
	reason string
}

// applyFilters removes candidates below the score threshold, outside
// the topic filter, or over the per-event/per-topic caps. Candidates
// must arrive sorted by descending CombinedScore so the caps keep the
// strongest representative of each event and topic.
func applyFilters(candidates []domain.CandidateChunk, topicFilter []string, cfg ComposerConfig) ([]domain.CandidateChunk, []droppedCandidate) {
	kept := make([]domain.CandidateChunk, 0, len(candidates))
	dropped := make([]droppedCandidate, 0)

	topics := make(map[string]struct{}, len(topicFilter))
	for _, topic := range topicFilter {
		topics[topic] = struct{}{}
	}

	eventCounts := make(map[string]int)
	topicCounts := make(map[string]int)

	for _, chunk := range candidates {
		if chunk.CombinedScore < cfg.ScoreThreshold {
			dropped = append(dropped, droppedCandidate{
				chunk:  chunk,
				reason: fmt.Sprintf("%s (%.4f < %.4f)", reasonBelowThreshold, chunk.CombinedScore, cfg.ScoreThreshold),
			})
			continue
		}

		if len(topics) > 0 && !topicsOverlap(chunk.TopicTags, topics) {
			dropped = append(dropped, droppedCandidate{chunk: chunk, reason: reasonTopicMismatch})
			continue
		}

		if chunk.SourceEventID != "" && eventCounts[chunk.SourceEventID] >= cfg.MaxPerEvent {
			dropped = append(dropped, droppedCandidate{chunk: chunk, reason: reasonPerEventCap})
			continue
		}

		if topicCapExceeded(chunk.TopicTags, topicCounts, cfg.MaxPerTopic) {
			dropped = append(dropped, droppedCandidate{chunk: chunk, reason: reasonPerTopicCap})
			continue
		}

		kept = append(kept, chunk)
		if chunk.SourceEventID != "" {
			eventCounts[chunk.SourceEventID]++
		}
		for _, topic := range chunk.TopicTags {
			topicCounts[topic]++
		}
	}

	return kept, dropped
}

// topicsOverlap passes untagged chunks through: a missing taxonomy is
// not evidence of irrelevance.
func topicsOverlap(tags []string, wanted map[string]struct{}) bool {
	if len(tags) == 0 {
		return true
	}
	for _, tag := range tags {
		if _, ok := wanted[tag]; ok {
			return true
		}
	}
	return false
}

func topicCapExceeded(tags []string, counts map[string]int, maxPerTopic int) bool {
	for _, tag := range tags {
		if counts[tag] >= maxPerTopic {
			return true
		}
	}
	return false
}

// partitionBySignal splits off candidates whose channels produced no
// positive raw score. They are traced but never scored or filtered.
func partitionBySignal(candidates []domain.CandidateChunk) ([]domain.CandidateChunk, []droppedCandidate) {
	withSignal := make([]domain.CandidateChunk, 0, len(candidates))
	var withoutSignal []droppedCandidate
	for _, chunk := range candidates {
		if chunk.HasChannelSignal() {
			withSignal = append(withSignal, chunk)
			continue
		}
		withoutSignal = append(withoutSignal, droppedCandidate{chunk: chunk, reason: reasonNoSignal})
	}
	return withSignal, withoutSignal
}
