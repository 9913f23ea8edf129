package usecase

import (
	"math"
	"time"

	"github.com/kirillkom/tutor-context/internal/core/domain"
)

const hoursPerDay = 24.0

// recencyWeight converts a chunk age into a bounded decay weight,
// exp(-ageDays/tau). Ages inside the grace period count as zero so the
// current session is not penalized. A zero timestamp means the age is
// unknown and the weight is 0 (maximally stale).
func recencyWeight(createdAt, now time.Time, tauDays, graceDays float64) float64 {
	if createdAt.IsZero() || tauDays <= 0 {
		return 0
	}
	ageDays := now.Sub(createdAt).Hours() / hoursPerDay
	if ageDays <= graceDays {
		ageDays = 0
	}
	return clamp01(math.Exp(-ageDays / tauDays))
}

// scoreRecency assigns the recency channel score to every merged
// candidate. The recency adapter produces candidates; the decay weight
// is what makes them comparable to the other channels.
func scoreRecency(candidates []domain.CandidateChunk, now time.Time, cfg ComposerConfig) {
	for i := range candidates {
		if candidates[i].ChannelScores == nil {
			candidates[i].ChannelScores = make(map[domain.Channel]float64, 3)
		}
		candidates[i].ChannelScores[domain.ChannelRecency] = recencyWeight(
			candidates[i].CreatedAt, now, cfg.TauDays, cfg.GracePeriodDays,
		)
	}
}
