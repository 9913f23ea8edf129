package qdrant

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/tutor-context/internal/core/domain"
	"github.com/kirillkom/tutor-context/internal/infrastructure/resilience"
)

const sparseVectorName = "lexical"

// LexicalClient queries a sparse-vector collection. Query terms are
// hashed client-side with the same encoder the ingestion side uses,
// so scoring stays consistent without a shared vocabulary service.
type LexicalClient struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewLexicalClient(baseURL, collection string) *LexicalClient {
	return NewLexicalClientWithOptions(baseURL, collection, Options{})
}

func NewLexicalClientWithOptions(baseURL, collection string, options Options) *LexicalClient {
	timeout := options.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LexicalClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (c *LexicalClient) Search(ctx context.Context, query string, k int) ([]domain.ChunkRef, error) {
	sparse := encodeSparseQuery(query)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}

	reqBody := map[string]any{
		"query": map[string]any{
			"indices": sparse.Indices,
			"values":  sparse.Values,
		},
		"using":        sparseVectorName,
		"limit":        k,
		"with_payload": true,
	}

	var refs []domain.ChunkRef
	call := func(ctx context.Context) error {
		points, err := queryPoints(ctx, c.httpClient, c.baseURL, c.collection, reqBody)
		if err != nil {
			return err
		}
		refs = pointsToRefs(points)
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "qdrant.sparse_query", call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("qdrant sparse query", err)
	}
	return refs, nil
}
