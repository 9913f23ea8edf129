package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/tutor-context/internal/core/domain"
	"github.com/kirillkom/tutor-context/internal/core/ports"
)

// Server exposes context composition as an MCP tool so agent runtimes
// can call the engine over stdio without the HTTP surface.
type Server struct {
	composer ports.ContextComposer
	embedder ports.QueryEmbedder
	mcp      *server.MCPServer
}

func NewServer(composer ports.ContextComposer, embedder ports.QueryEmbedder, version string) *Server {
	s := &Server{
		composer: composer,
		embedder: embedder,
		mcp: server.NewMCPServer(
			"tutor-context",
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	tool := mcp.NewTool("compose_context",
		mcp.WithDescription("Compose a token-budgeted context window from tutoring history for a query."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Free-text query to retrieve context for."),
		),
		mcp.WithNumber("token_budget",
			mcp.Description("Total token budget for the context window."),
		),
		mcp.WithNumber("session_history_tokens",
			mcp.Description("Tokens already consumed by the running session history."),
		),
		mcp.WithString("topic",
			mcp.Description("Optional topic tag to filter candidates by."),
		),
	)
	s.mcp.AddTool(tool, s.handleComposeContext)

	return s
}

func (s *Server) handleComposeContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := domain.RetrievalRequest{
		QueryText:            query,
		TokenBudget:          int(request.GetFloat("token_budget", 4096)),
		SessionHistoryTokens: int(request.GetFloat("session_history_tokens", 0)),
	}
	if topic := request.GetString("topic", ""); topic != "" {
		req.TopicFilter = []string{topic}
	}

	if s.embedder != nil {
		// Best-effort: without an embedding the composer still serves
		// the lexical and recency channels.
		if embedding, embedErr := s.embedder.EmbedQuery(ctx, query); embedErr == nil {
			req.QueryEmbedding = embedding
		}
	}

	result, err := s.composer.Compose(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("compose context: %v", err)), nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal assembled context: %w", err)
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}
