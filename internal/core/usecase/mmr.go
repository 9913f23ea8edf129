package usecase

import "github.com/kirillkom/tutor-context/internal/core/domain"

// selectMMR greedily re-ranks candidates by Maximal Marginal Relevance:
// score(c) = lambda*relevance(c) - (1-lambda)*maxSim(c, selected).
// Candidates must arrive sorted by the relevance tie-break chain
// (combined score desc, newest first, chunk id); scanning in that order
// and replacing the running best only on a strictly larger MMR score
// realizes the same tie-breaks for the selection itself. lambda = 1
// degenerates to pure relevance ranking.
func selectMMR(candidates []domain.CandidateChunk, lambda float64, maxChunks int) []domain.CandidateChunk {
	if len(candidates) == 0 || maxChunks <= 0 {
		return nil
	}
	if maxChunks > len(candidates) {
		maxChunks = len(candidates)
	}
	if lambda >= 1 {
		out := make([]domain.CandidateChunk, maxChunks)
		copy(out, candidates[:maxChunks])
		return out
	}

	selected := make([]domain.CandidateChunk, 0, maxChunks)
	remaining := make([]domain.CandidateChunk, len(candidates))
	copy(remaining, candidates)

	// The most relevant candidate always opens the selection.
	selected = append(selected, remaining[0])
	remaining = remaining[1:]

	for len(selected) < maxChunks && len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0
		for i, chunk := range remaining {
			maxSim := 0.0
			for _, chosen := range selected {
				if sim := chunkSimilarity(chunk, chosen); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*chunk.CombinedScore - (1-lambda)*maxSim
			if bestIdx < 0 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected
}
