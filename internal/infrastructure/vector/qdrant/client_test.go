package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSearchReturnsChunkRefsFromPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/chunks/points/query" {
			http.NotFound(w, r)
			return
		}
		var reqBody map[string]any
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if reqBody["limit"] != float64(5) {
			http.Error(w, "unexpected limit", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"result":{"points":[
			{"score":0.91,"payload":{"chunk_id":"c-1"}},
			{"score":0.72,"payload":{"chunk_id":"c-2"}},
			{"score":0.50,"payload":{"text":"orphan point without chunk_id"}}
		]}}`))
	}))
	defer server.Close()

	client := New(server.URL, "chunks")
	refs, err := client.Search(context.Background(), []float32{0.1, 0.2}, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected 2 refs with chunk_id, got %d", len(refs))
	}
	if refs[0].ChunkID != "c-1" || refs[0].Score != 0.91 {
		t.Fatalf("unexpected first ref %+v", refs[0])
	}
}

func TestSearchEmptyEmbeddingSkipsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "must not be called", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL, "chunks")
	refs, err := client.Search(context.Background(), nil, 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if refs != nil {
		t.Fatalf("expected nil refs without an embedding, got %v", refs)
	}
}

func TestSearchIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "chunks")
	_, err := client.Search(context.Background(), []float32{0.1}, 5)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "collection not found") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestLexicalSearchSendsSparseQuery(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/chunks-lexical/points/query" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"result":{"points":[{"score":3.4,"payload":{"chunk_id":"c-9"}}]}}`))
	}))
	defer server.Close()

	client := NewLexicalClient(server.URL, "chunks-lexical")
	refs, err := client.Search(context.Background(), "chain rule derivative", 8)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(refs) != 1 || refs[0].ChunkID != "c-9" {
		t.Fatalf("unexpected refs %+v", refs)
	}
	if gotBody["using"] != sparseVectorName {
		t.Fatalf("expected sparse vector name %q, got %v", sparseVectorName, gotBody["using"])
	}
	query, ok := gotBody["query"].(map[string]any)
	if !ok {
		t.Fatalf("expected sparse query object, got %T", gotBody["query"])
	}
	indices, ok := query["indices"].([]any)
	if !ok || len(indices) != 3 {
		t.Fatalf("expected 3 hashed terms, got %v", query["indices"])
	}
}

func TestLexicalSearchEmptyQuerySkipsRequest(t *testing.T) {
	client := NewLexicalClient("http://unused", "chunks-lexical")
	refs, err := client.Search(context.Background(), "   ...   ", 8)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if refs != nil {
		t.Fatalf("expected nil refs for a query with no tokens, got %v", refs)
	}
}
