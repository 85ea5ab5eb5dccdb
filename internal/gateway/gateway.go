// Package gateway is the uniform call interface to the hosted
// text-generation and semantic-search services. Every call passes through
// a pool slot, a rate limiter, a circuit breaker, and a bounded
// retry-with-backoff schedule, in that order.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/inkforge/inkforge/internal/circuitbreaker"
	"github.com/inkforge/inkforge/internal/config"
	"github.com/inkforge/inkforge/internal/models"
	"github.com/inkforge/inkforge/internal/pool"
	"github.com/inkforge/inkforge/internal/pricing"
)

// GenerateRequest is the wire request to the text-generation service.
type GenerateRequest struct {
	Role            string `json:"role"`
	Prompt          string `json:"prompt"`
	ModelTier       string `json:"model_tier"`
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	Verbosity       string `json:"verbosity,omitempty"`
	MaxTokens       int    `json:"max_tokens,omitempty"`
}

// GenerateResponse is the wire response from the text-generation service.
type GenerateResponse struct {
	Text       string            `json:"text"`
	TokenUsage models.TokenUsage `json:"token_usage"`
	Model      string            `json:"model,omitempty"`
}

// Passage is one ranked semantic-search hit.
type Passage struct {
	Passage  string  `json:"passage"`
	SourceID string  `json:"source_id"`
	Score    float64 `json:"score"`
}

// SearchRequest is the wire request to the semantic-search service.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// SearchResponse is the wire response from the semantic-search service.
type SearchResponse struct {
	Passages []Passage `json:"passages"`
}

// Client is the inference gateway. One instance per process, shared by all
// activities; all mutable state is inside the pool and the breakers, both
// synchronized.
type Client struct {
	provider config.ProviderConfig
	search   config.SearchConfig
	rp       *pool.ResourcePool
	breakers map[string]*circuitbreaker.Breaker
	prices   *pricing.Table
	logger   *zap.Logger
	tracer   oteltrace.Tracer
}

// New builds the gateway with one circuit breaker per logical pool.
func New(provider config.ProviderConfig, search config.SearchConfig, circ config.CircuitConfig, rp *pool.ResourcePool, prices *pricing.Table, logger *zap.Logger) *Client {
	cbcfg := circuitbreaker.Config{
		MaxHalfOpen:      circ.MaxHalfOpen,
		Interval:         circ.Interval,
		Cooldown:         circ.Cooldown,
		FailureThreshold: circ.FailureThreshold,
		SuccessThreshold: circ.SuccessThreshold,
	}
	breakers := make(map[string]*circuitbreaker.Breaker, 3)
	for _, name := range []string{pool.Search, pool.Content, pool.Default} {
		breakers[name] = circuitbreaker.New(name, cbcfg, logger)
	}
	return &Client{
		provider: provider,
		search:   search,
		rp:       rp,
		breakers: breakers,
		prices:   prices,
		logger:   logger,
		tracer:   otel.Tracer("inkforge/gateway"),
	}
}

// Breaker exposes the breaker guarding a pool. Health collaborators read
// its state; tests force it open.
func (c *Client) Breaker(name string) *circuitbreaker.Breaker {
	if b, ok := c.breakers[name]; ok {
		return b
	}
	return c.breakers[pool.Default]
}

// Invoke executes one generation task against the provider. The descriptor
// chooses the pool ("content" unless it says otherwise). The returned
// TaskResult is fully populated on success; on error the caller owns the
// translation to a failed TaskResult.
func (c *Client) Invoke(ctx context.Context, d models.TaskDescriptor) (models.TaskResult, error) {
	poolName := d.Pool
	if poolName == "" {
		poolName = pool.Content
	}

	ctx, span := c.tracer.Start(ctx, "gateway.Invoke",
		oteltrace.WithAttributes(
			attribute.String("task.role", d.Role),
			attribute.String("task.tier", string(d.Tier)),
			attribute.String("pool", poolName),
		))
	defer span.End()

	req := GenerateRequest{
		Role:            d.Role,
		Prompt:          d.Prompt,
		ModelTier:       string(d.Tier),
		ReasoningEffort: string(d.Effort),
		Verbosity:       string(d.Verbosity),
		MaxTokens:       d.MaxTokens,
	}

	start := time.Now()
	var resp GenerateResponse
	err := c.call(ctx, poolName, c.provider.BaseURL+"/v1/generate", c.provider.Timeout, req, &resp)
	elapsed := time.Since(start)
	if err != nil {
		return models.TaskResult{
			Role:       d.Role,
			DurationMs: elapsed.Milliseconds(),
			Success:    false,
			Error:      err.Error(),
		}, err
	}

	model := resp.Model
	if model == "" {
		model = c.prices.ModelForTier(d.Tier)
	}
	return models.TaskResult{
		Role:       d.Role,
		Text:       resp.Text,
		Usage:      resp.TokenUsage,
		Model:      model,
		DurationMs: elapsed.Milliseconds(),
		Success:    true,
	}, nil
}

// Cost prices a task's token usage.
func (c *Client) Cost(tier models.ModelTier, usage models.TokenUsage) float64 {
	return c.prices.Cost(tier, usage)
}

// SemanticSearch queries the knowledge-base search service through the
// "search" pool. Callers wanting cache semantics go through the knowledge
// package instead.
func (c *Client) SemanticSearch(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	if c.search.BaseURL == "" {
		return SearchResponse{}, &ProviderError{Op: "search", Err: errors.New("semantic-search service not configured")}
	}
	if req.TopK <= 0 {
		req.TopK = c.search.TopK
	}

	ctx, span := c.tracer.Start(ctx, "gateway.SemanticSearch")
	defer span.End()

	var resp SearchResponse
	err := c.call(ctx, pool.Search, c.search.BaseURL+"/v1/search", c.search.Timeout, req, &resp)
	return resp, err
}

// call runs one JSON POST under the pool's slot, breaker, and retry
// schedule. The breaker sees each attempt, so a run of transient failures
// opens it and subsequent attempts fail fast with ErrCircuitOpen.
func (c *Client) call(ctx context.Context, poolName, url string, timeout time.Duration, in, out interface{}) error {
	release, err := c.rp.Acquire(ctx, poolName)
	if err != nil {
		return &ProviderError{Op: poolName, Transient: true, Err: fmt.Errorf("acquire pool slot: %w", err)}
	}
	defer release()

	body, err := json.Marshal(in)
	if err != nil {
		return &ProviderError{Op: poolName, Err: fmt.Errorf("marshal request: %w", err)}
	}

	breaker := c.Breaker(poolName)
	client := c.rp.Client(poolName)

	bo := backoff.NewExponentialBackOff()
	if c.provider.InitialBackoff > 0 {
		bo.InitialInterval = c.provider.InitialBackoff
	}
	if c.provider.MaxBackoff > 0 {
		bo.MaxInterval = c.provider.MaxBackoff
	}
	maxRetries := c.provider.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries)), ctx)

	attempt := func() error {
		err := breaker.ExecuteClassified(ctx, func() error {
			return c.doOnce(ctx, client, url, timeout, body, out)
		}, IsTransient)
		if err == nil {
			return nil
		}
		// Fail fast once the circuit opens; retrying cannot help until
		// the cooldown elapses.
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		c.logger.Warn("Transient provider error, backing off",
			zap.String("pool", poolName),
			zap.Error(err),
		)
		return err
	}

	return backoff.Retry(attempt, policy)
}

// doOnce performs a single HTTP attempt and classifies the failure.
func (c *Client) doOnce(ctx context.Context, client *http.Client, url string, timeout time.Duration, body []byte, out interface{}) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &ProviderError{Op: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return &ProviderError{Op: url, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		transient := resp.StatusCode == http.StatusRequestTimeout ||
			resp.StatusCode == http.StatusTooManyRequests ||
			resp.StatusCode >= 500
		return &ProviderError{
			Op:        url,
			Status:    resp.StatusCode,
			Transient: transient,
			Err:       fmt.Errorf("unexpected status: %s", bytes.TrimSpace(snippet)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ProviderError{Op: url, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
