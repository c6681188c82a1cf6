// Package openai is the transport for the hosted models: embeddings and chat
// completions against an OpenAI-compatible endpoint. Retries, the circuit
// breakers and per-call timeouts all live here, so callers see a single
// attempt that either succeeds or fails with a typed error.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/course-assistant/pkg/resilience"
)

const maxErrorBody = 64 << 10

// Client talks to one OpenAI-compatible base URL.
type Client struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	chatModel      string
	maxTokens      int
	temperature    float64
	timeout        time.Duration
	httpClient     *http.Client
	retry          resilience.RetryConfig
	embedBreaker   *resilience.CircuitBreaker
	chatBreaker    *resilience.CircuitBreaker
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for every call.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry overrides the retry policy.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = rc }
}

// WithMetrics records upstream latency and breaker state.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

func New(cfg config.OpenAIConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKeyValue(),
		embeddingModel: cfg.EmbeddingModel,
		chatModel:      cfg.ChatModel,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
		timeout:        cfg.Timeout,
		httpClient:     &http.Client{},
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     8 * time.Second,
		},
		logger: slog.Default().With("component", "openai-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	breakerCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		IsFailure:        countsAgainstBreaker,
		OnStateChange: func(name string, to resilience.State) {
			if c.metrics != nil {
				c.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	}
	c.embedBreaker = resilience.NewCircuitBreaker("openai-embeddings", breakerCfg)
	c.chatBreaker = resilience.NewCircuitBreaker("openai-chat", breakerCfg)
	return c
}

// countsAgainstBreaker ignores client-side mistakes; only transport failures
// and retryable upstream statuses trip the breaker.
func countsAgainstBreaker(err error) bool {
	var upstream *apperrors.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}

// post sends body as JSON to path and decodes a 2xx reply into out. Non-2xx
// replies become *apperrors.UpstreamError of the given kind.
func (c *Client) post(ctx context.Context, call string, breaker *resilience.CircuitBreaker, kind error, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encoding %s request: %v", kind, call, err)
	}

	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.UpstreamLatency.WithLabelValues(call).Observe(time.Since(start).Seconds())
		}
	}()

	return resilience.Retry(ctx, call, c.retry, func() error {
		err := breaker.Execute(func() error {
			return resilience.WithTimeout(ctx, c.timeout, call, func(ctx context.Context) error {
				return c.do(ctx, kind, path, payload, out)
			})
		})
		if err == nil {
			return nil
		}
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return resilience.Permanent(fmt.Errorf("%w: %v", kind, err))
		}
		if ctx.Err() != nil {
			return resilience.Permanent(err)
		}
		var upstream *apperrors.UpstreamError
		if errors.As(err, &upstream) && !upstream.Retryable() {
			return resilience.Permanent(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, kind error, path string, payload []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: building request: %v", kind, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("upstream returned error status",
			"path", path,
			"status", resp.StatusCode,
		)
		return &apperrors.UpstreamError{Kind: kind, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", kind, err)
	}
	return nil
}
