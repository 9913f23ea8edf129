package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/tutor-context/internal/core/domain"
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

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = "compose_context"
	req.Params.Arguments = args
	return req
}

func TestHandleComposeContextReturnsJSON(t *testing.T) {
	composer := &composerFake{
		result: &domain.AssembledContext{
			OrderedChunks: []domain.CandidateChunk{{ChunkID: "c-1", Text: "kept"}},
			TokensUsed:    2,
			Trace:         domain.RetrievalTrace{TraceID: "t-1"},
		},
	}
	srv := NewServer(composer, nil, "test")

	result, err := srv.handleComposeContext(context.Background(), callRequest(map[string]any{
		"query":        "chain rule",
		"token_budget": float64(1024),
		"topic":        "calculus",
	}))
	if err != nil {
		t.Fatalf("handleComposeContext() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %+v", result)
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	var got domain.AssembledContext
	if err := json.Unmarshal([]byte(text.Text), &got); err != nil {
		t.Fatalf("decode tool result: %v", err)
	}
	if len(got.OrderedChunks) != 1 || got.OrderedChunks[0].ChunkID != "c-1" {
		t.Fatalf("unexpected chunks %+v", got.OrderedChunks)
	}

	if composer.lastReq.TokenBudget != 1024 {
		t.Fatalf("expected token budget mapped, got %d", composer.lastReq.TokenBudget)
	}
	if len(composer.lastReq.TopicFilter) != 1 || composer.lastReq.TopicFilter[0] != "calculus" {
		t.Fatalf("expected topic filter mapped, got %v", composer.lastReq.TopicFilter)
	}
}

func TestHandleComposeContextRequiresQuery(t *testing.T) {
	srv := NewServer(&composerFake{}, nil, "test")

	result, err := srv.handleComposeContext(context.Background(), callRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handleComposeContext() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing query")
	}
}

func TestHandleComposeContextReportsComposerFailure(t *testing.T) {
	srv := NewServer(&composerFake{err: errors.New("downstream unavailable")}, nil, "test")

	result, err := srv.handleComposeContext(context.Background(), callRequest(map[string]any{
		"query": "anything",
	}))
	if err != nil {
		t.Fatalf("handleComposeContext() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error when composer fails")
	}
}
