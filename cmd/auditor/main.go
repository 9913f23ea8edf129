package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/tutor-context/internal/bootstrap"
	"github.com/kirillkom/tutor-context/internal/config"
	"github.com/kirillkom/tutor-context/internal/core/domain"
	"github.com/kirillkom/tutor-context/internal/observability/logging"
	"github.com/kirillkom/tutor-context/internal/observability/metrics"
)

// The auditor tails the trace subject and turns every retrieval trace
// into structured logs and metrics, keeping the audit path off the
// request latency budget.
func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger("auditor", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	m := metrics.NewAuditorMetrics("auditor")
	metricsServer := &http.Server{
		Addr:    ":" + cfg.AuditorMetricsPort,
		Handler: m.Handler(),
	}
	go func() {
		slog.Info("auditor_metrics_listening", "port", cfg.AuditorMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("auditor_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	slog.Info("auditor_subscribed", "subject", cfg.NATSTraceSubject)
	err = app.Traces.SubscribeTraces(ctx, func(_ context.Context, trace domain.RetrievalTrace) error {
		kept, filtered, trimmed := summarizeDecisions(trace)
		slog.Info("retrieval_trace",
			"trace_id", trace.TraceID,
			"query_text", trace.QueryText,
			"entries", len(trace.Entries),
			"kept", kept,
			"filtered", filtered,
			"trimmed", trimmed,
			"degraded_channels", channelNames(trace.DegradedChannels),
			"tokens_used", trace.Allocation.TokensUsed,
		)
		m.RecordTrace("auditor", len(trace.Entries), channelNames(trace.DegradedChannels), nil)
		if !trace.CreatedAt.IsZero() {
			m.ObserveTraceLag("auditor", time.Since(trace.CreatedAt))
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("auditor_subscribe_failed", "error", err)
		os.Exit(1)
	}
}

func summarizeDecisions(trace domain.RetrievalTrace) (kept, filtered, trimmed int) {
	for _, entry := range trace.Entries {
		switch entry.Decision {
		case domain.DecisionKept:
			kept++
		case domain.DecisionFiltered:
			filtered++
		case domain.DecisionTrimmed:
			trimmed++
		}
	}
	return kept, filtered, trimmed
}

func channelNames(channels []domain.Channel) []string {
	out := make([]string, 0, len(channels))
	for _, channel := range channels {
		out = append(out, string(channel))
	}
	return out
}
