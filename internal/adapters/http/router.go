package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/tutor-context/internal/config"
	"github.com/kirillkom/tutor-context/internal/core/domain"
	"github.com/kirillkom/tutor-context/internal/core/ports"
	"github.com/kirillkom/tutor-context/internal/core/usecase"
	"github.com/kirillkom/tutor-context/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg         config.Config
	composer    ports.ContextComposer
	composerCfg usecase.ComposerConfig
	embedder    ports.QueryEmbedder
	metrics     *metrics.ComposeMetrics
}

func NewRouter(
	cfg config.Config,
	composer ports.ContextComposer,
	composerCfg usecase.ComposerConfig,
	embedder ports.QueryEmbedder,
	m *metrics.ComposeMetrics,
) *Router {
	return &Router{
		cfg:         cfg,
		composer:    composer,
		composerCfg: composerCfg,
		embedder:    embedder,
		metrics:     m,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/v1/context/compose", rt.composeContext)
	api.HandleFunc("/v1/context/config", rt.composerConfig)

	var apiHandler http.Handler = api
	apiHandler = backpressureMiddleware(apiHandler, rt.cfg.APIMaxInFlight, 50*time.Millisecond)
	apiHandler = rateLimitMiddleware(apiHandler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.Handle("/v1/", apiHandler)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type composeRequest struct {
	QueryText            string          `json:"query_text"`
	QueryEmbedding       []float32       `json:"query_embedding,omitempty"`
	TopicFilter          []string        `json:"topic_filter,omitempty"`
	TimeWindow           *timeWindowDTO  `json:"time_window,omitempty"`
	TokenBudget          int             `json:"token_budget"`
	SessionHistoryTokens int             `json:"session_history_tokens"`
	Weights              *domain.Weights `json:"weights,omitempty"`
}

type timeWindowDTO struct {
	From time.Time `json:"from,omitzero"`
	To   time.Time `json:"to,omitzero"`
}

func (rt *Router) composeContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req composeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.QueryText) == "" && len(req.QueryEmbedding) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query_text or query_embedding is required"})
		return
	}

	domainReq := domain.RetrievalRequest{
		QueryText:            req.QueryText,
		QueryEmbedding:       req.QueryEmbedding,
		TopicFilter:          req.TopicFilter,
		TokenBudget:          req.TokenBudget,
		SessionHistoryTokens: req.SessionHistoryTokens,
	}
	if req.TimeWindow != nil {
		domainReq.TimeWindow = domain.TimeWindow{From: req.TimeWindow.From, To: req.TimeWindow.To}
	}
	if req.Weights != nil {
		domainReq.Weights = *req.Weights
	}

	// Embedding failures are not fatal: the composer still serves the
	// lexical and recency channels.
	if len(domainReq.QueryEmbedding) == 0 && rt.embedder != nil && domainReq.QueryText != "" {
		embedding, err := rt.embedder.EmbedQuery(r.Context(), domainReq.QueryText)
		if err != nil {
			slog.Warn("query_embedding_failed",
				"request_id", requestIDFromContext(r.Context()),
				"error", err,
			)
		} else {
			domainReq.QueryEmbedding = embedding
		}
	}

	start := time.Now()
	result, err := rt.composer.Compose(r.Context(), domainReq)
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordCompositionError(serviceName, time.Since(start))
		}
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordComposition(serviceName, result, time.Since(start))
	}

	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) composerConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tau_days":             rt.composerCfg.TauDays,
		"grace_period_days":    rt.composerCfg.GracePeriodDays,
		"weights":              rt.composerCfg.Weights,
		"score_threshold":      rt.composerCfg.ScoreThreshold,
		"max_per_event":        rt.composerCfg.MaxPerEvent,
		"max_per_topic":        rt.composerCfg.MaxPerTopic,
		"mmr_lambda":           rt.composerCfg.MMRLambda,
		"history_cap_fraction": rt.composerCfg.HistoryCapFraction,
		"min_retrieval_tokens": rt.composerCfg.MinRetrievalTokens,
		"per_source_k":         rt.composerCfg.PerSourceK,
		"max_chunks":           rt.composerCfg.MaxChunks,
		"source_timeout_ms":    rt.composerCfg.SourceTimeout.Milliseconds(),
		"normalization":        rt.composerCfg.Normalization,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
