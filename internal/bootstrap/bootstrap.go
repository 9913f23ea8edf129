package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/tutor-context/internal/config"
	"github.com/kirillkom/tutor-context/internal/core/domain"
	"github.com/kirillkom/tutor-context/internal/core/ports"
	"github.com/kirillkom/tutor-context/internal/core/usecase"
	"github.com/kirillkom/tutor-context/internal/infrastructure/embedder/ollama"
	"github.com/kirillkom/tutor-context/internal/infrastructure/eventstore/postgres"
	"github.com/kirillkom/tutor-context/internal/infrastructure/queue/nats"
	"github.com/kirillkom/tutor-context/internal/infrastructure/resilience"
	"github.com/kirillkom/tutor-context/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config      config.Config
	Composer    ports.ContextComposer
	ComposerCfg usecase.ComposerConfig

	// Embedder is nil when query embedding is disabled; the api then
	// serves embedding-less requests from the lexical and recency
	// channels only.
	Embedder ports.QueryEmbedder

	// Traces is the shared NATS handle; the api publishes on it, the
	// auditor subscribes.
	Traces *nats.TracePublisher

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	events := postgres.NewChunkRepository(db)
	if err := events.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	composerCfg := mapComposerSettings(cfg.Composer)

	executor := resilience.NewExecutor(resilience.Config{
		AttemptTimeout: composerCfg.SourceTimeout,
	})

	vector := qdrant.NewWithOptions(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
		ResilienceExecutor: executor,
	})
	lexical := qdrant.NewLexicalClientWithOptions(cfg.QdrantURL, cfg.QdrantLexicalCollection, qdrant.Options{
		ResilienceExecutor: executor,
	})

	traces, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSTraceSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init trace queue: %w", err)
	}

	var tracePublisher ports.TracePublisher
	if cfg.TracePublishEnabled {
		tracePublisher = traces
	}

	composer := usecase.NewComposeContextUseCase(vector, lexical, events, tracePublisher, composerCfg)

	var embedder ports.QueryEmbedder
	if cfg.QueryEmbedderEnabled {
		embedder = ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{
			ResilienceExecutor: executor,
		})
	}

	return &App{
		Config:      cfg,
		Composer:    composer,
		ComposerCfg: composer.Config(),
		Embedder:    embedder,
		Traces:      traces,

		closeFn: func() {
			traces.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func mapComposerSettings(s config.ComposerSettings) usecase.ComposerConfig {
	return usecase.ComposerConfig{
		TauDays:         s.TauDays,
		GracePeriodDays: s.GracePeriodDays,
		Weights: domain.Weights{
			Semantic: s.SemanticWeight,
			Recency:  s.RecencyWeight,
			Lexical:  s.LexicalWeight,
		},
		ScoreThreshold:     s.ScoreThreshold,
		MaxPerEvent:        s.MaxPerEvent,
		MaxPerTopic:        s.MaxPerTopic,
		MMRLambda:          s.MMRLambda,
		HistoryCapFraction: s.HistoryCapFraction,
		MinRetrievalTokens: s.MinRetrievalTokens,
		PerSourceK:         s.PerSourceK,
		MaxChunks:          s.MaxChunks,
		SourceTimeout:      time.Duration(s.SourceTimeoutMS) * time.Millisecond,
		Normalization:      s.Normalization,
	}
}
