package usecase

import (
	"context"
	"log/slog"

	"github.com/kirillkom/tutor-context/internal/core/domain"
)

type sourceResult struct {
	channel  domain.Channel
	chunks   []domain.CandidateChunk
	degraded bool
}

// fetchCandidates fans out to the three candidate sources concurrently
// and joins at the merge barrier. Every fetch runs under its own
// timeout; a failed or timed-out source contributes nothing and is
// reported as degraded instead of failing the request. The caller's
// deadline propagates into every fetch through ctx.
func (uc *ComposeContextUseCase) fetchCandidates(ctx context.Context, req domain.RetrievalRequest) ([]domain.CandidateChunk, []domain.Channel) {
	results := make(chan sourceResult, 3)

	run := func(channel domain.Channel, fetch func(context.Context) ([]domain.CandidateChunk, bool)) {
		fetchCtx, cancel := context.WithTimeout(ctx, uc.cfg.SourceTimeout)
		defer cancel()
		chunks, degraded := fetch(fetchCtx)
		results <- sourceResult{channel: channel, chunks: chunks, degraded: degraded}
	}

	go run(domain.ChannelSemantic, func(fetchCtx context.Context) ([]domain.CandidateChunk, bool) {
		return uc.fetchSemantic(fetchCtx, req)
	})
	go run(domain.ChannelLexical, func(fetchCtx context.Context) ([]domain.CandidateChunk, bool) {
		return uc.fetchLexical(fetchCtx, req)
	})
	go run(domain.ChannelRecency, func(fetchCtx context.Context) ([]domain.CandidateChunk, bool) {
		return uc.fetchRecency(fetchCtx, req)
	})

	byChannel := make(map[domain.Channel]sourceResult, 3)
	for i := 0; i < 3; i++ {
		result := <-results
		byChannel[result.channel] = result
	}

	lists := make([][]domain.CandidateChunk, 0, 3)
	degraded := make([]domain.Channel, 0, 3)
	for _, channel := range domain.Channels() {
		result := byChannel[channel]
		lists = append(lists, result.chunks)
		if result.degraded {
			degraded = append(degraded, channel)
		}
	}

	return mergeCandidates(lists...), degraded
}

// fetchSemantic searches the vector index and hydrates the hits.
// A request without a query embedding skips the channel silently;
// that is a caller choice, not a degradation.
func (uc *ComposeContextUseCase) fetchSemantic(ctx context.Context, req domain.RetrievalRequest) ([]domain.CandidateChunk, bool) {
	if len(req.QueryEmbedding) == 0 {
		return nil, false
	}

	refs, err := uc.vector.Search(ctx, req.QueryEmbedding, uc.cfg.PerSourceK)
	if err != nil {
		slog.Warn("semantic_channel_degraded", "error", err)
		return nil, true
	}
	chunks, err := uc.hydrateRefs(ctx, refs, domain.ChannelSemantic)
	if err != nil {
		slog.Warn("semantic_channel_degraded", "error", err)
		return nil, true
	}
	return chunks, false
}

func (uc *ComposeContextUseCase) fetchLexical(ctx context.Context, req domain.RetrievalRequest) ([]domain.CandidateChunk, bool) {
	if req.QueryText == "" {
		return nil, false
	}

	refs, err := uc.lexical.Search(ctx, req.QueryText, uc.cfg.PerSourceK)
	if err != nil {
		slog.Warn("lexical_channel_degraded", "error", err)
		return nil, true
	}
	chunks, err := uc.hydrateRefs(ctx, refs, domain.ChannelLexical)
	if err != nil {
		slog.Warn("lexical_channel_degraded", "error", err)
		return nil, true
	}
	return chunks, false
}

// fetchRecency returns the newest chunks within the request window,
// unconditionally of relevance. This is the cold-start safety net: a
// session with no embedding or text match still gets continuity.
func (uc *ComposeContextUseCase) fetchRecency(ctx context.Context, req domain.RetrievalRequest) ([]domain.CandidateChunk, bool) {
	chunks, err := uc.events.ListRecentChunks(ctx, req.TimeWindow, uc.cfg.PerSourceK)
	if err != nil {
		slog.Warn("recency_channel_degraded", "error", err)
		return nil, true
	}
	return chunks, false
}

// hydrateRefs resolves index hits into full chunk records and attaches
// the raw channel score. Refs the event store no longer knows (index
// drift) are skipped.
func (uc *ComposeContextUseCase) hydrateRefs(ctx context.Context, refs []domain.ChunkRef, channel domain.Channel) ([]domain.CandidateChunk, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(refs))
	scores := make(map[string]float64, len(refs))
	for _, ref := range refs {
		if ref.ChunkID == "" {
			continue
		}
		ids = append(ids, ref.ChunkID)
		scores[ref.ChunkID] = ref.Score
	}

	chunks, err := uc.events.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range chunks {
		if chunks[i].ChannelScores == nil {
			chunks[i].ChannelScores = make(map[domain.Channel]float64, 3)
		}
		chunks[i].ChannelScores[channel] = scores[chunks[i].ChunkID]
	}
	return chunks, nil
}
