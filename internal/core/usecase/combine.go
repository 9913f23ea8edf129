package usecase

import (
	"sort"

	"github.com/kirillkom/tutor-context/internal/core/domain"
)

// combineScores normalizes each channel independently and folds the
// channels into one CombinedScore per candidate. Recency weights are
// already on [0,1] with an absolute meaning and pass through unchanged;
// semantic and lexical scores are rescaled according to the configured
// normalization mode:
//
//   - minmax: per-request min-max over the candidates that carry the
//     channel (all-equal collapses to 1.0)
//   - fixed: semantic clamped to [0,1] (cosine), lexical squashed with
//     s/(s+1) since rank scores are unbounded
//
// Candidates missing a channel contribute zero on that channel.
func combineScores(candidates []domain.CandidateChunk, weights domain.Weights, mode string) {
	semantic := normalizeChannel(candidates, domain.ChannelSemantic, mode)
	lexical := normalizeChannel(candidates, domain.ChannelLexical, mode)

	for i := range candidates {
		recency := candidates[i].ChannelScores[domain.ChannelRecency]
		candidates[i].CombinedScore = clamp01(
			weights.Semantic*semantic[i] +
				weights.Recency*clamp01(recency) +
				weights.Lexical*lexical[i],
		)
	}
}

func normalizeChannel(candidates []domain.CandidateChunk, channel domain.Channel, mode string) []float64 {
	out := make([]float64, len(candidates))

	if mode == NormalizationFixed {
		for i := range candidates {
			raw, ok := candidates[i].ChannelScores[channel]
			if !ok {
				continue
			}
			if channel == domain.ChannelLexical {
				if raw > 0 {
					out[i] = raw / (raw + 1)
				}
				continue
			}
			out[i] = clamp01(raw)
		}
		return out
	}

	minScore, maxScore := 0.0, 0.0
	seen := false
	for i := range candidates {
		raw, ok := candidates[i].ChannelScores[channel]
		if !ok {
			continue
		}
		if !seen {
			minScore, maxScore = raw, raw
			seen = true
			continue
		}
		if raw < minScore {
			minScore = raw
		}
		if raw > maxScore {
			maxScore = raw
		}
	}
	if !seen {
		return out
	}

	scale := maxScore - minScore
	for i := range candidates {
		raw, ok := candidates[i].ChannelScores[channel]
		if !ok {
			continue
		}
		if scale <= 0 {
			out[i] = 1.0
			continue
		}
		out[i] = (raw - minScore) / scale
	}
	return out
}

// sortByCombinedScore orders candidates for the filter stage and MMR:
// combined score descending, then newer first, then chunk id. The full
// tie-break chain makes every run of the pipeline reproducible.
func sortByCombinedScore(candidates []domain.CandidateChunk) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CombinedScore != candidates[j].CombinedScore {
			return candidates[i].CombinedScore > candidates[j].CombinedScore
		}
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})
}
