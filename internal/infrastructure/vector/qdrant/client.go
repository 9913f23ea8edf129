package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/tutor-context/internal/core/domain"
	"github.com/kirillkom/tutor-context/internal/infrastructure/resilience"
)

// Client queries a dense-vector collection over Qdrant's HTTP API.
// The collection is populated by the ingestion pipeline; this side is
// read-only.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	HTTPTimeout        time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, collection string) *Client {
	return NewWithOptions(baseURL, collection, Options{})
}

func NewWithOptions(baseURL, collection string, options Options) *Client {
	timeout := options.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

func (c *Client) Search(ctx context.Context, embedding []float32, k int) ([]domain.ChunkRef, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}

	reqBody := map[string]any{
		"query":        embedding,
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
		err = c.executor.Execute(ctx, "qdrant.dense_query", call, classifyQdrantError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, wrapTemporaryIfNeeded("qdrant dense query", err)
	}
	return refs, nil
}

type queryPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func queryPoints(
	ctx context.Context,
	client *http.Client,
	baseURL, collection string,
	reqBody map[string]any,
) ([]queryPoint, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal query body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/query", baseURL, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant query request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &statusError{
			status: resp.StatusCode,
			msg:    fmt.Sprintf("qdrant query status: %s: %s", resp.Status, strings.TrimSpace(string(excerpt))),
		}
	}

	var queryResp struct {
		Result struct {
			Points []queryPoint `json:"points"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return queryResp.Result.Points, nil
}

func pointsToRefs(points []queryPoint) []domain.ChunkRef {
	out := make([]domain.ChunkRef, 0, len(points))
	for _, p := range points {
		chunkID := getStringPayload(p.Payload, "chunk_id")
		if chunkID == "" {
			continue
		}
		out = append(out, domain.ChunkRef{ChunkID: chunkID, Score: p.Score})
	}
	return out
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
