// Package completion implements the model-facing client: it sends a
// prompt to the configured provider, classifies failures, and retries
// the transient ones with exponential backoff.
//
// The retry loop is a bounded iteration with an injectable delay
// function, so tests can substitute an instrumented no-op and assert on
// attempt counts and requested delays deterministically.
package completion

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/teilomillet/gollm"
	"github.com/teilomillet/gollm/llm"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/existlabs/gptbridge/config"
	"github.com/existlabs/gptbridge/errors"
	"github.com/existlabs/gptbridge/server/metrics"
)

// Generator is the slice of the LLM interface this client needs.
// gollm.LLM satisfies it; tests provide stubs.
type Generator interface {
	Generate(ctx context.Context, prompt *gollm.Prompt, opts ...llm.GenerateOption) (string, error)
}

// Config collects the completion-related settings.
type Config struct {
	Model        string
	SystemPrompt string
	Retry        config.RetryConfig
	Breaker      config.CircuitBreakerConfig

	// TrackTokens enables prompt token accounting via tiktoken.
	TrackTokens bool
}

// Option customizes a Client.
type Option func(*Client)

// WithSleep substitutes the delay function used between retries.
// The function receives the jittered delay and must honor context
// cancellation. Intended for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// Client calls the model provider with retry, backoff, and error
// classification. Safe for concurrent use; identical in-flight prompts
// are deduplicated.
type Client struct {
	llm     Generator
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	breaker *gobreaker.CircuitBreaker
	group   singleflight.Group
	sleep   func(ctx context.Context, d time.Duration) error

	tokens *tokenCounter
}

// NewClient creates a completion client. Zero retry settings fall back
// to the documented defaults (3 attempts, 1s initial delay doubling,
// 60s per-attempt timeout).
func NewClient(gen Generator, cfg Config, logger *zap.Logger, m *metrics.Metrics, opts ...Option) *Client {
	defaults := config.DefaultConfig()
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	}
	if cfg.Retry.InitialDelay <= 0 {
		cfg.Retry.InitialDelay = defaults.Retry.InitialDelay
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = defaults.Retry.MaxDelay
	}
	if cfg.Retry.Multiplier < 1 {
		cfg.Retry.Multiplier = defaults.Retry.Multiplier
	}
	if cfg.Retry.AttemptTimeout <= 0 {
		cfg.Retry.AttemptTimeout = defaults.Retry.AttemptTimeout
	}
	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = defaults.CircuitBreaker.FailureThreshold
	}
	if cfg.Breaker.ResetTimeout <= 0 {
		cfg.Breaker.ResetTimeout = defaults.CircuitBreaker.ResetTimeout
	}
	if cfg.Breaker.MaxRequests == 0 {
		cfg.Breaker.MaxRequests = defaults.CircuitBreaker.MaxRequests
	}

	c := &Client{
		llm:     gen,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		sleep:   sleepContext,
		tokens:  newTokenCounter(cfg.Model, cfg.TrackTokens, logger),
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "completion",
		MaxRequests: cfg.Breaker.MaxRequests,
		Timeout:     cfg.Breaker.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Completion breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends the text to the model and returns the generated reply.
// On failure it returns a *errors.BridgeError carrying the last
// classification; retryable categories have already been retried up to
// the configured attempt count.
func (c *Client) Complete(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.NewInvalidRequest("", "prompt must not be empty", nil)
	}

	// Identical prompts in flight at the same moment share one provider
	// call and one retry budget.
	v, err, shared := c.group.Do(text, func() (interface{}, error) {
		return c.complete(ctx, text)
	})
	if shared {
		c.logger.Debug("Joined in-flight identical prompt")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Client) complete(ctx context.Context, text string) (string, error) {
	prompt := c.buildPrompt(text)
	c.tokens.observe(text, c.metrics)

	maxAttempts := c.cfg.Retry.MaxAttempts
	delay := c.cfg.Retry.InitialDelay
	var lastErr *errors.BridgeError

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		out, err := c.attempt(ctx, prompt)
		elapsed := time.Since(start)

		if err == nil {
			c.metrics.ObserveAttempt(elapsed, "success")
			c.logger.Info("Completion succeeded",
				zap.Int("attempt", attempt),
				zap.Duration("duration", elapsed),
				zap.Int("response_length", len(out)),
			)
			return strings.TrimSpace(out), nil
		}

		category := Classify(err)
		c.metrics.ObserveAttempt(elapsed, string(category))
		lastErr = errors.NewError(category, "completion call failed",
			http.StatusBadGateway, "", nil, err)

		c.logger.Warn("Completion attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.String("category", string(category)),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)

		if !category.Retryable() || attempt == maxAttempts {
			break
		}

		if err := c.sleep(ctx, c.jittered(delay)); err != nil {
			return "", errors.NewTransient("", "completion canceled during backoff", err)
		}
		delay = time.Duration(float64(delay) * c.cfg.Retry.Multiplier)
	}

	if lastErr.Type.Retryable() {
		return "", errors.NewError(lastErr.Type,
			fmt.Sprintf("completion failed after %d attempts", maxAttempts),
			http.StatusServiceUnavailable, "", nil, lastErr)
	}
	return "", lastErr
}

// attempt makes a single provider call, bounded by the per-attempt
// timeout and guarded by the circuit breaker.
func (c *Client) attempt(ctx context.Context, prompt *gollm.Prompt) (string, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.Retry.AttemptTimeout)
	defer cancel()

	out, err := c.breaker.Execute(func() (interface{}, error) {
		if err := actx.Err(); err != nil {
			return nil, err
		}
		return c.llm.Generate(actx, prompt)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *Client) buildPrompt(text string) *gollm.Prompt {
	var messages []gollm.PromptMessage
	if c.cfg.SystemPrompt != "" {
		messages = append(messages, gollm.PromptMessage{
			Role:    "system",
			Content: c.cfg.SystemPrompt,
		})
	}
	messages = append(messages, gollm.PromptMessage{
		Role:    "user",
		Content: text,
	})
	return &gollm.Prompt{Messages: messages}
}

// jittered adds up to 10% random jitter to a delay, capped at the
// configured maximum.
func (c *Client) jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	d += time.Duration(rand.Int63n(int64(d)/10 + 1))
	if d > c.cfg.Retry.MaxDelay {
		d = c.cfg.Retry.MaxDelay
	}
	return d
}

// sleepContext is the production delay function. It honors context
// cancellation so an aborted request never sits out a full backoff.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
