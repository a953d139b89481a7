// Package model multiplexes the supported completion providers behind
// a single client with retry, timeout, and token accounting. The
// provider set is closed and selected once from configuration:
// Anthropic (API key or OAuth token), then OpenAI, then OpenCode.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vibestudy/vibestudy-reviewer/internal/config"
	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

// ResponseFormat selects how Complete post-processes the response.
type ResponseFormat string

const (
	FormatText       ResponseFormat = "text"
	FormatJSONObject ResponseFormat = "json_object"
)

// Options tunes one completion call.
type Options struct {
	MaxTokens      int
	Temperature    float64
	SystemPrompt   string
	ResponseFormat ResponseFormat
	// Usage, if set, accumulates token counts for the calling job.
	Usage *UsageCounter
}

// ErrKind classifies a model call failure.
type ErrKind string

const (
	ErrNotConfigured   ErrKind = "not_configured"
	ErrUnauthorized    ErrKind = "unauthorized"
	ErrRateLimited     ErrKind = "rate_limited"
	ErrTimeout         ErrKind = "timeout"
	ErrTransport       ErrKind = "transport"
	ErrInvalidResponse ErrKind = "invalid_response"
)

// Error is a classified model failure.
type Error struct {
	Kind    ErrKind
	Message string
	Err     error
	// RetryAfter is the provider-suggested delay for rate limits.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("model %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the failure may succeed on retry.
func (e *Error) Retryable() bool {
	return e.Kind == ErrRateLimited || e.Kind == ErrTransport
}

// completion is a provider response with token counts. exact is true
// when the counts come from the provider rather than estimation.
type completion struct {
	text  string
	usage types.TokenUsage
	exact bool
}

// provider is one backend protocol adapter.
type provider interface {
	name() string
	complete(ctx context.Context, prompt string, opts Options) (completion, error)
}

// Client is the model client shared by orchestrators. A nil provider
// means no backend is configured; orchestrators consult Configured
// before invoking AI stages. The provider can be swapped at runtime
// when configuration is hot-reloaded.
type Client struct {
	mu       sync.RWMutex
	provider provider
	retry    RetryConfig
	budget   time.Duration
}

// NewFromConfig selects a provider by priority: Anthropic (OAuth when
// the key has the sk-ant-oat prefix), OpenAI, OpenCode. Returns an
// unconfigured client when no key is present.
func NewFromConfig(cfg *config.Config) *Client {
	c := &Client{
		retry:  DefaultRetryConfig(),
		budget: time.Duration(cfg.ModelTimeoutSecs) * time.Second,
	}
	if c.budget <= 0 {
		c.budget = 120 * time.Second
	}
	c.provider = selectProvider(cfg)
	return c
}

func selectProvider(cfg *config.Config) provider {
	switch {
	case cfg.AnthropicAPIKey != "":
		return newAnthropicProvider(cfg.AnthropicAPIKey)
	case cfg.OpenAIAPIKey != "":
		return newOpenAIProvider(cfg.OpenAIAPIKey)
	case cfg.OpenCodeAPIKey != "":
		return newOpenCodeProvider(cfg.OpenCodeBaseURL, cfg.OpenCodeAPIKey)
	}
	return nil
}

// Reconfigure re-runs provider selection against a reloaded config.
// In-flight calls keep the provider they started with.
func (c *Client) Reconfigure(cfg *config.Config) {
	p := selectProvider(cfg)
	c.mu.Lock()
	c.provider = p
	c.mu.Unlock()
}

func (c *Client) currentProvider() provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.provider
}

// Configured reports whether a provider backend is available.
func (c *Client) Configured() bool {
	return c != nil && c.currentProvider() != nil
}

// Provider returns the active provider name, or "" when unconfigured.
func (c *Client) Provider() string {
	if p := c.currentProvider(); p != nil {
		return p.name()
	}
	return ""
}

// Complete runs one completion with retry and a wall-clock budget.
// With FormatJSONObject the first balanced JSON object is extracted
// from the response and returned; extraction failure is
// ErrInvalidResponse and is not retried.
func (c *Client) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	p := c.currentProvider()
	if p == nil {
		return "", &Error{Kind: ErrNotConfigured, Message: "no model provider configured"}
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}

	ctx, cancel := context.WithTimeout(ctx, c.budget)
	defer cancel()

	var comp completion
	err := withRetry(ctx, c.retry, func() error {
		var callErr error
		comp, callErr = p.complete(ctx, prompt, opts)
		return callErr
	})
	if err != nil {
		return "", err
	}

	if opts.Usage != nil {
		if comp.exact {
			opts.Usage.Add(comp.usage.PromptTokens, comp.usage.CompletionTokens)
		} else {
			opts.Usage.Add(EstimateTokens(prompt)+EstimateTokens(opts.SystemPrompt), EstimateTokens(comp.text))
		}
	}

	text := comp.text
	if opts.ResponseFormat == FormatJSONObject {
		extracted, err := ExtractJSON(text)
		if err != nil {
			return "", &Error{Kind: ErrInvalidResponse, Message: "response is not a JSON object", Err: err}
		}
		text = extracted
	}
	return text, nil
}

// classifyStatus maps an HTTP status to a model error kind.
func classifyStatus(status int) ErrKind {
	switch {
	case status == 401 || status == 403:
		return ErrUnauthorized
	case status == 429:
		return ErrRateLimited
	case status == 408 || status >= 500:
		return ErrTransport
	default:
		return ErrInvalidResponse
	}
}

// wrapCallError converts a transport-level failure, respecting
// context state so cancellation and budget exhaustion surface as
// their own kinds.
func wrapCallError(ctx context.Context, providerName string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: ErrTimeout, Message: providerName + " call exceeded time budget", Err: err}
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	return &Error{Kind: ErrTransport, Message: providerName + " request failed", Err: err}
}

func snippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
