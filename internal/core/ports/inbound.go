package ports

import (
	"context"

	"github.com/kirillkom/tutor-context/internal/core/domain"
)

// ContextComposer is the inbound contract for working-context assembly.
type ContextComposer interface {
	Compose(ctx context.Context, req domain.RetrievalRequest) (*domain.AssembledContext, error)
}
