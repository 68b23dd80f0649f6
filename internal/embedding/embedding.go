// Package embedding implements the Embedding Client (C4): a single-vector
// embed() call gated by a process-wide semaphore, with bounded retry honoring
// provider rate-limit signals, and a chat-completion sibling used by the
// multimodal and spreadsheet/transcription chunkers.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"ingestpipe/internal/config"
	"ingestpipe/internal/errkind"
	"ingestpipe/internal/retry"
	"ingestpipe/internal/tokenestimator"
)

// Client embeds text against a configured provider, serialized through a
// process-wide semaphore so a whole run never exceeds the configured
// concurrency against the rate-limited provider.
type Client struct {
	cfg  config.EmbeddingConfig
	http *http.Client
	sem  *semaphore.Weighted
}

// New builds a Client. The semaphore is shared by every caller that embeds
// through this Client instance — construct exactly one per process.
func New(cfg config.EmbeddingConfig) *Client {
	n := cfg.MaxConcurrency
	if n <= 0 {
		n = 2
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{},
		sem:  semaphore.NewWeighted(int64(n)),
	}
}

type embedReq struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResp struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed produces a fixed-width vector for text. Empty input returns an empty
// vector without making a call. The caller acquires the embedding semaphore
// for the duration of the (possibly retried) call.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return []float32{}, nil
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	text = truncateToTokenBudget(text, c.cfg.MaxInputTokens)

	policy := retry.EmbeddingPolicy(maxAttempts(c.cfg), backoffCap(c.cfg))
	vec, err := retry.Do(ctx, policy, "embedding.embed", func(ctx context.Context, attempt int) ([]float32, error) {
		return c.doEmbed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

func maxAttempts(cfg config.EmbeddingConfig) int {
	if cfg.MaxRateLimitTries > cfg.MaxTransientTries {
		return cfg.MaxRateLimitTries
	}
	if cfg.MaxTransientTries > 0 {
		return cfg.MaxTransientTries
	}
	return 8
}

func backoffCap(cfg config.EmbeddingConfig) time.Duration {
	if cfg.BackoffMaxSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(cfg.BackoffMaxSeconds) * time.Second
}

func (c *Client) doEmbed(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(embedReq{Model: c.cfg.Model, Input: []string{text}})
	if err != nil {
		return nil, err
	}
	timeout := time.Duration(c.cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := c.cfg.BaseURL + c.cfg.Path
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	if c.cfg.APIHeader == "Authorization" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	} else if c.cfg.APIHeader != "" {
		req.Header.Set(c.cfg.APIHeader, c.cfg.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errkind.New(errkind.Transient, "embedding.http", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if wait, ok := retryAfter(resp.Header); ok {
			return nil, &retry.RetryAfter{Wait: wait}
		}
		return nil, errkind.New(errkind.RateLimited, "embedding.http", fmt.Errorf("rate limited: %s", resp.Status))
	}
	if resp.StatusCode/100 == 5 || resp.StatusCode == http.StatusRequestTimeout {
		body, _ := io.ReadAll(resp.Body)
		return nil, errkind.New(errkind.Transient, "embedding.http", fmt.Errorf("%s: %s", resp.Status, string(body)))
	}
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return nil, errkind.New(errkind.NonRetriable4xx, "embedding.http", fmt.Errorf("%s: %s", resp.Status, string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	var er embedResp
	if err := json.Unmarshal(body, &er); err != nil {
		return nil, fmt.Errorf("parse embedding response: %w", err)
	}
	if len(er.Data) != 1 {
		return nil, fmt.Errorf("unexpected embedding count: got %d, want 1", len(er.Data))
	}
	return er.Data[0].Embedding, nil
}

// retryAfter honors retry-after-ms first, then the standard Retry-After
// header (seconds), the way tools/aoai.py's get_embeddings does.
func retryAfter(h http.Header) (time.Duration, bool) {
	if ms := strings.TrimSpace(h.Get("retry-after-ms")); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil {
			return time.Duration(n) * time.Millisecond, true
		}
	}
	if s := strings.TrimSpace(h.Get("Retry-After")); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return time.Duration(n) * time.Second, true
		}
	}
	return 0, false
}

// truncateToTokenBudget truncates text character-wise, with a step size that
// starts at 1 and doubles every 5 iterations (capped at 100), until the
// estimated token count fits maxTokens. Mirrors tools/aoai.py's
// _truncate_input exactly.
func truncateToTokenBudget(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	step := 1
	iterations := 0
	for tokenestimator.Estimate(text) > maxTokens && len(text) > 0 {
		cut := step
		if cut > len(text) {
			cut = len(text)
		}
		text = text[:len(text)-cut]
		iterations++
		if iterations%5 == 0 && step < 100 {
			step *= 2
			if step > 100 {
				step = 100
			}
		}
	}
	return text
}

// CheckReachability sends a small probe request to verify the embedding
// endpoint is reachable and responding correctly.
func (c *Client) CheckReachability(ctx context.Context) error {
	_, err := c.Embed(ctx, "ping")
	if err != nil {
		return fmt.Errorf("embedding endpoint reachability check failed: %w", err)
	}
	return nil
}
