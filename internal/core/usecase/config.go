package usecase

import (
	"time"

	"github.com/kirillkom/tutor-context/internal/core/domain"
)

// Normalization selects how raw channel scores are mapped onto [0,1]
// before combination.
const (
	NormalizationMinMax = "minmax"
	NormalizationFixed  = "fixed"
)

// ComposerConfig holds every tunable of the composition pipeline. It is
// validated once at construction and never mutated during a request.
type ComposerConfig struct {
	TauDays            float64
	GracePeriodDays    float64
	Weights            domain.Weights
	ScoreThreshold     float64
	MaxPerEvent        int
	MaxPerTopic        int
	MMRLambda          float64
	HistoryCapFraction float64
	MinRetrievalTokens int
	PerSourceK         int
	MaxChunks          int
	SourceTimeout      time.Duration
	Normalization      string
}

func DefaultComposerConfig() ComposerConfig {
	return ComposerConfig{
		TauDays:            7.0,
		GracePeriodDays:    0.25,
		Weights:            domain.DefaultWeights(),
		ScoreThreshold:     0.25,
		MaxPerEvent:        3,
		MaxPerTopic:        5,
		MMRLambda:          0.7,
		HistoryCapFraction: 0.6,
		MinRetrievalTokens: 256,
		PerSourceK:         24,
		MaxChunks:          12,
		SourceTimeout:      1500 * time.Millisecond,
		Normalization:      NormalizationMinMax,
	}
}

func (c ComposerConfig) normalize() ComposerConfig {
	out := c
	def := DefaultComposerConfig()

	if out.TauDays <= 0 {
		out.TauDays = def.TauDays
	}
	if out.GracePeriodDays < 0 {
		out.GracePeriodDays = 0
	}
	if out.Weights.IsZero() {
		out.Weights = def.Weights
	}
	if out.ScoreThreshold < 0 {
		out.ScoreThreshold = 0
	}
	if out.MaxPerEvent <= 0 {
		out.MaxPerEvent = def.MaxPerEvent
	}
	if out.MaxPerTopic <= 0 {
		out.MaxPerTopic = def.MaxPerTopic
	}
	if out.MMRLambda <= 0 || out.MMRLambda > 1 {
		out.MMRLambda = def.MMRLambda
	}
	if out.HistoryCapFraction <= 0 || out.HistoryCapFraction >= 1 {
		out.HistoryCapFraction = def.HistoryCapFraction
	}
	if out.MinRetrievalTokens < 0 {
		out.MinRetrievalTokens = def.MinRetrievalTokens
	}
	if out.PerSourceK <= 0 {
		out.PerSourceK = def.PerSourceK
	}
	if out.MaxChunks <= 0 {
		out.MaxChunks = def.MaxChunks
	}
	if out.SourceTimeout <= 0 {
		out.SourceTimeout = def.SourceTimeout
	}
	if out.Normalization != NormalizationMinMax && out.Normalization != NormalizationFixed {
		out.Normalization = def.Normalization
	}

	return out
}
