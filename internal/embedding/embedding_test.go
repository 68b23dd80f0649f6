package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"ingestpipe/internal/config"
)

func TestEmbedEmptyInputReturnsEmptyVector(t *testing.T) {
	c := New(config.EmbeddingConfig{MaxConcurrency: 1})
	vec, err := c.Embed(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 0 {
		t.Fatalf("expected empty vector, got %v", vec)
	}
}

func TestEmbedCallsConfiguredEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Fatalf("unexpected model: %q", req.Model)
		}
		_ = json.NewEncoder(w).Encode(embedResp{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{{Embedding: []float32{0.1, 0.2, 0.3}}}})
	}))
	defer srv.Close()

	c := New(config.EmbeddingConfig{
		BaseURL: srv.URL, Path: "/v1/embeddings", Model: "test-model", MaxConcurrency: 1,
	})
	vec, err := c.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3-dim vector, got %v", vec)
	}
}

func TestEmbedHonorsRetryAfterMs(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.Header().Set("retry-after-ms", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(embedResp{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{{Embedding: []float32{1}}}})
	}))
	defer srv.Close()

	c := New(config.EmbeddingConfig{BaseURL: srv.URL, Path: "/embed", Model: "m", MaxConcurrency: 1, MaxRateLimitTries: 4})
	vec, err := c.Embed(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 1 {
		t.Fatalf("expected vector after retry, got %v", vec)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestTruncateToTokenBudgetShrinksLongText(t *testing.T) {
	long := strings.Repeat("word ", 5000)
	out := truncateToTokenBudget(long, 10)
	if len(out) >= len(long) {
		t.Fatalf("expected truncation to shrink text")
	}
}

func TestTruncateToTokenBudgetNoopWhenUnderBudget(t *testing.T) {
	short := "hello world"
	if out := truncateToTokenBudget(short, 1000); out != short {
		t.Fatalf("expected no truncation, got %q", out)
	}
}
