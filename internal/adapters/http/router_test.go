package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kirillkom/tutor-context/internal/config"
	"github.com/kirillkom/tutor-context/internal/core/domain"
	"github.com/kirillkom/tutor-context/internal/core/usecase"
)

type composerFake struct {
	result  *domain.AssembledContext
	err     error
	lastReq domain.RetrievalRequest
}

func (f *composerFake) Compose(_ context.Context, req domain.RetrievalRequest) (*domain.AssembledContext, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testConfig() config.Config {
	cfg := config.Load()
	cfg.APIRateLimitRPS = 0
	cfg.APIMaxInFlight = 0
	return cfg
}

func newTestHandler(cfg config.Config, composer *composerFake) http.Handler {
	if composer.result == nil {
		composer.result = &domain.AssembledContext{
			OrderedChunks: []domain.CandidateChunk{{ChunkID: "c-1", Text: "kept"}},
			TokensUsed:    2,
			Trace:         domain.RetrievalTrace{TraceID: "t-1"},
		}
	}
	return NewRouter(cfg, composer, usecase.DefaultComposerConfig(), nil, nil).Handler()
}

type embedderFake struct {
	vector []float32
	err    error
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func TestComposeContextEnrichesMissingEmbedding(t *testing.T) {
	composer := &composerFake{result: &domain.AssembledContext{}}
	embedder := &embedderFake{vector: []float32{0.1, 0.2}}
	handler := NewRouter(testConfig(), composer, usecase.DefaultComposerConfig(), embedder, nil).Handler()

	payload, _ := json.Marshal(map[string]any{"query_text": "chain rule", "token_budget": 1024})
	req := httptest.NewRequest(http.MethodPost, "/v1/context/compose", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(composer.lastReq.QueryEmbedding) != 2 {
		t.Fatalf("expected embedding enrichment, got %v", composer.lastReq.QueryEmbedding)
	}
}

func TestComposeContextProceedsWhenEmbedderFails(t *testing.T) {
	composer := &composerFake{result: &domain.AssembledContext{}}
	embedder := &embedderFake{err: errors.New("embedder down")}
	handler := NewRouter(testConfig(), composer, usecase.DefaultComposerConfig(), embedder, nil).Handler()

	payload, _ := json.Marshal(map[string]any{"query_text": "chain rule", "token_budget": 1024})
	req := httptest.NewRequest(http.MethodPost, "/v1/context/compose", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 despite embedder failure, got %d", res.Code)
	}
	if len(composer.lastReq.QueryEmbedding) != 0 {
		t.Fatalf("expected no embedding, got %v", composer.lastReq.QueryEmbedding)
	}
}

func TestComposeContextReturnsAssembledContext(t *testing.T) {
	composer := &composerFake{}
	handler := newTestHandler(testConfig(), composer)

	payload, _ := json.Marshal(map[string]any{
		"query_text":             "chain rule",
		"token_budget":           2048,
		"session_history_tokens": 300,
		"topic_filter":           []string{"calculus"},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/context/compose", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var got domain.AssembledContext
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got.OrderedChunks) != 1 || got.OrderedChunks[0].ChunkID != "c-1" {
		t.Fatalf("unexpected chunks %+v", got.OrderedChunks)
	}
	if composer.lastReq.TokenBudget != 2048 || composer.lastReq.SessionHistoryTokens != 300 {
		t.Fatalf("request not mapped, got %+v", composer.lastReq)
	}
	if len(composer.lastReq.TopicFilter) != 1 || composer.lastReq.TopicFilter[0] != "calculus" {
		t.Fatalf("topic filter not mapped, got %v", composer.lastReq.TopicFilter)
	}
}

func TestComposeContextRequiresQuery(t *testing.T) {
	handler := newTestHandler(testConfig(), &composerFake{})

	payload, _ := json.Marshal(map[string]any{"token_budget": 2048})
	req := httptest.NewRequest(http.MethodPost, "/v1/context/compose", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestComposeContextMapsDomainInvalidInputTo400(t *testing.T) {
	composer := &composerFake{
		err: domain.WrapError(domain.ErrInvalidInput, "compose", errors.New("negative budget")),
	}
	handler := newTestHandler(testConfig(), composer)

	payload, _ := json.Marshal(map[string]any{"query_text": "q", "token_budget": -1})
	req := httptest.NewRequest(http.MethodPost, "/v1/context/compose", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestComposeContextMapsTemporaryTo503(t *testing.T) {
	composer := &composerFake{
		err: domain.WrapError(domain.ErrTemporary, "compose", errors.New("downstream unavailable")),
	}
	handler := newTestHandler(testConfig(), composer)

	payload, _ := json.Marshal(map[string]any{"query_text": "q", "token_budget": 100})
	req := httptest.NewRequest(http.MethodPost, "/v1/context/compose", bytes.NewReader(payload))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestComposerConfigEndpointExposesKnobs(t *testing.T) {
	handler := newTestHandler(testConfig(), &composerFake{})

	req := httptest.NewRequest(http.MethodGet, "/v1/context/config", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var got map[string]any
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["tau_days"] != 7.0 {
		t.Fatalf("expected tau_days 7.0, got %v", got["tau_days"])
	}
	if got["normalization"] != "minmax" {
		t.Fatalf("expected normalization minmax, got %v", got["normalization"])
	}
}

func TestHealthzBypassesTrafficControl(t *testing.T) {
	cfg := testConfig()
	cfg.APIRateLimitRPS = 1
	cfg.APIRateLimitBurst = 1
	handler := newTestHandler(cfg, &composerFake{})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("healthz request %d expected 200, got %d", i, res.Code)
		}
	}
}

func TestRequestIDHeaderIsEchoed(t *testing.T) {
	handler := newTestHandler(testConfig(), &composerFake{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-42")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get("X-Request-Id"); got != "req-42" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
}
