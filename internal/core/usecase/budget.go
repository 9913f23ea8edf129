package usecase

import "github.com/kirillkom/tutor-context/internal/core/domain"

// allocateBudget splits the total token budget between conversation
// history and retrieved context. A brand-new session hands the whole
// budget to retrieval; as history grows its share is capped at
// HistoryCapFraction, and the retrieval share never drops below the
// configured floor (bounded by the budget itself).
func allocateBudget(tokenBudget, historyTokens int, cfg ComposerConfig) domain.TokenAllocation {
	alloc := domain.TokenAllocation{
		Budget:        tokenBudget,
		HistoryTokens: historyTokens,
	}
	if tokenBudget <= 0 {
		return alloc
	}

	if historyTokens == 0 {
		alloc.RetrievalBudget = tokenBudget
		return alloc
	}

	historyBudget := historyTokens
	if cap := int(cfg.HistoryCapFraction * float64(tokenBudget)); historyBudget > cap {
		historyBudget = cap
	}
	retrievalBudget := tokenBudget - historyBudget

	if floor := min(cfg.MinRetrievalTokens, tokenBudget); retrievalBudget < floor {
		retrievalBudget = floor
		historyBudget = tokenBudget - retrievalBudget
	}

	alloc.HistoryBudget = historyBudget
	alloc.RetrievalBudget = retrievalBudget
	return alloc
}

// trimToBudget walks the MMR-ordered list accumulating estimated token
// cost. The first chunk that would overflow the retrieval budget stops
// the walk; it and everything after it are trimmed.
func trimToBudget(ordered []domain.CandidateChunk, retrievalBudget int) (kept []domain.CandidateChunk, tokensUsed int, trimmed []domain.CandidateChunk) {
	kept = make([]domain.CandidateChunk, 0, len(ordered))
	for i, chunk := range ordered {
		cost := estimateTokens(chunk.Text)
		if tokensUsed+cost > retrievalBudget {
			trimmed = ordered[i:]
			break
		}
		kept = append(kept, chunk)
		tokensUsed += cost
	}
	return kept, tokensUsed, trimmed
}
