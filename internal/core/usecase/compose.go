package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/tutor-context/internal/core/domain"
	"github.com/kirillkom/tutor-context/internal/core/ports"
)

const tracePublishTimeout = 2 * time.Second

// ComposeContextUseCase runs the full composition pipeline:
// fetch -> merge -> score -> filter -> diversify -> budget -> assemble.
// It holds no per-request state; the configuration is normalized once
// at construction and read-only afterwards.
type ComposeContextUseCase struct {
	vector  ports.VectorIndex
	lexical ports.LexicalIndex
	events  ports.EventStore
	traces  ports.TracePublisher
	cfg     ComposerConfig

	now func() time.Time
}

func NewComposeContextUseCase(
	vector ports.VectorIndex,
	lexical ports.LexicalIndex,
	events ports.EventStore,
	traces ports.TracePublisher,
	cfg ComposerConfig,
) *ComposeContextUseCase {
	return &ComposeContextUseCase{
		vector:  vector,
		lexical: lexical,
		events:  events,
		traces:  traces,
		cfg:     cfg.normalize(),
		now:     time.Now,
	}
}

// Config returns the effective, normalized configuration.
func (uc *ComposeContextUseCase) Config() ComposerConfig {
	return uc.cfg
}

func (uc *ComposeContextUseCase) Compose(ctx context.Context, req domain.RetrievalRequest) (*domain.AssembledContext, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	weights := req.EffectiveWeights()

	merged, degradedChannels := uc.fetchCandidates(ctx, req)
	if len(merged) == 0 && ctx.Err() != nil {
		// The caller's deadline expired before any partial result existed.
		return nil, ctx.Err()
	}

	scoreRecency(merged, now, uc.cfg)

	scored, noSignal := partitionBySignal(merged)
	combineScores(scored, weights, uc.cfg.Normalization)
	sortByCombinedScore(scored)

	filtered, filterDrops := applyFilters(scored, req.TopicFilter, uc.cfg)

	selected := selectMMR(filtered, uc.cfg.MMRLambda, uc.cfg.MaxChunks)
	selectionDrops := make([]droppedCandidate, 0)
	if len(selected) < len(filtered) {
		chosen := make(map[string]struct{}, len(selected))
		for _, chunk := range selected {
			chosen[chunk.ChunkID] = struct{}{}
		}
		for _, chunk := range filtered {
			if _, ok := chosen[chunk.ChunkID]; !ok {
				selectionDrops = append(selectionDrops, droppedCandidate{chunk: chunk, reason: reasonSelectionCap})
			}
		}
	}

	alloc := allocateBudget(req.TokenBudget, req.SessionHistoryTokens, uc.cfg)
	kept, tokensUsed, budgetTrims := trimToBudget(selected, alloc.RetrievalBudget)
	alloc.TokensUsed = tokensUsed

	trace := domain.RetrievalTrace{
		TraceID:          uuid.NewString(),
		QueryText:        req.QueryText,
		Weights:          weights,
		DegradedChannels: degradedChannels,
		Entries:          buildTraceEntries(kept, budgetTrims, selectionDrops, filterDrops, noSignal),
		Allocation:       alloc,
		CreatedAt:        now,
	}

	uc.publishTrace(ctx, trace)

	return &domain.AssembledContext{
		OrderedChunks: kept,
		TokensUsed:    tokensUsed,
		Trace:         trace,
	}, nil
}

// buildTraceEntries emits one entry per candidate considered, in a
// deterministic order: the kept chunks in presentation order, then the
// budget trims, then the selection-cap trims, then the filter drops,
// then candidates that never produced a channel signal.
func buildTraceEntries(
	kept []domain.CandidateChunk,
	budgetTrims []domain.CandidateChunk,
	selectionDrops []droppedCandidate,
	filterDrops []droppedCandidate,
	noSignal []droppedCandidate,
) []domain.TraceEntry {
	entries := make([]domain.TraceEntry, 0, len(kept)+len(budgetTrims)+len(selectionDrops)+len(filterDrops)+len(noSignal))

	for _, chunk := range kept {
		entries = append(entries, traceEntry(chunk, domain.DecisionKept, ""))
	}
	for _, chunk := range budgetTrims {
		entries = append(entries, traceEntry(chunk, domain.DecisionTrimmed, reasonBudgetExceeded))
	}
	for _, drop := range selectionDrops {
		entries = append(entries, traceEntry(drop.chunk, domain.DecisionTrimmed, drop.reason))
	}
	for _, drop := range filterDrops {
		entries = append(entries, traceEntry(drop.chunk, domain.DecisionFiltered, drop.reason))
	}
	for _, drop := range noSignal {
		entries = append(entries, traceEntry(drop.chunk, domain.DecisionFiltered, drop.reason))
	}

	return entries
}

func traceEntry(chunk domain.CandidateChunk, decision domain.Decision, reason string) domain.TraceEntry {
	return domain.TraceEntry{
		ChunkID:       chunk.ChunkID,
		ChannelScores: chunk.ChannelScores,
		CombinedScore: chunk.CombinedScore,
		Decision:      decision,
		Reason:        reason,
	}
}

// publishTrace ships the trace to the audit stream. Best effort: the
// compose result never depends on it, and the caller's cancellation
// does not abort an already-assembled trace.
func (uc *ComposeContextUseCase) publishTrace(ctx context.Context, trace domain.RetrievalTrace) {
	if uc.traces == nil {
		return
	}
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tracePublishTimeout)
	defer cancel()
	if err := uc.traces.Publish(publishCtx, trace); err != nil {
		slog.Warn("trace_publish_failed", "trace_id", trace.TraceID, "error", err)
	}
}
