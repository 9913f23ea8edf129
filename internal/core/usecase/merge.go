package usecase

import (
	"sort"

	"github.com/kirillkom/tutor-context/internal/core/domain"
)

// mergeCandidates deduplicates candidates arriving from multiple
// channels by chunk identity, keeping every per-channel raw score and
// the richest available payload. Output order is deterministic
// (ascending chunk id); ranking happens downstream.
func mergeCandidates(lists ...[]domain.CandidateChunk) []domain.CandidateChunk {
	acc := make(map[string]domain.CandidateChunk)
	for _, list := range lists {
		for _, chunk := range list {
			if chunk.ChunkID == "" {
				continue
			}
			existing, ok := acc[chunk.ChunkID]
			if !ok {
				acc[chunk.ChunkID] = cloneCandidate(chunk)
				continue
			}
			acc[chunk.ChunkID] = mergeInto(existing, chunk)
		}
	}

	out := make([]domain.CandidateChunk, 0, len(acc))
	for _, chunk := range acc {
		out = append(out, chunk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChunkID < out[j].ChunkID })
	return out
}

func mergeInto(current, incoming domain.CandidateChunk) domain.CandidateChunk {
	for channel, score := range incoming.ChannelScores {
		if existing, ok := current.ChannelScores[channel]; !ok || score > existing {
			if current.ChannelScores == nil {
				current.ChannelScores = make(map[domain.Channel]float64, 3)
			}
			current.ChannelScores[channel] = score
		}
	}
	if current.Text == "" && incoming.Text != "" {
		current.Text = incoming.Text
	}
	if current.SourceEventID == "" && incoming.SourceEventID != "" {
		current.SourceEventID = incoming.SourceEventID
	}
	if len(current.TopicTags) == 0 && len(incoming.TopicTags) > 0 {
		current.TopicTags = incoming.TopicTags
	}
	if len(current.SkillTags) == 0 && len(incoming.SkillTags) > 0 {
		current.SkillTags = incoming.SkillTags
	}
	if len(current.Embedding) == 0 && len(incoming.Embedding) > 0 {
		current.Embedding = incoming.Embedding
	}
	if current.CreatedAt.IsZero() && !incoming.CreatedAt.IsZero() {
		current.CreatedAt = incoming.CreatedAt
	}
	return current
}

func cloneCandidate(chunk domain.CandidateChunk) domain.CandidateChunk {
	out := chunk
	if chunk.ChannelScores != nil {
		out.ChannelScores = make(map[domain.Channel]float64, len(chunk.ChannelScores))
		for channel, score := range chunk.ChannelScores {
			out.ChannelScores[channel] = score
		}
	}
	return out
}
