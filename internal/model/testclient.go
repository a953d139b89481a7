package model

import (
	"context"
	"time"
)

// TestFunc produces a canned completion for tests.
type TestFunc func(prompt string, opts Options) (string, error)

// testProvider backs the stub client used in orchestrator tests.
type testProvider struct {
	fn TestFunc
}

func (p *testProvider) name() string { return "test" }

func (p *testProvider) complete(ctx context.Context, prompt string, opts Options) (completion, error) {
	if err := ctx.Err(); err != nil {
		return completion{}, err
	}
	text, err := p.fn(prompt, opts)
	if err != nil {
		return completion{}, err
	}
	return completion{text: text}, nil
}

// NewTest creates a client whose completions come from fn. Errors
// returned by fn flow through the normal retry and classification
// path, so tests can exercise the taxonomy.
func NewTest(fn TestFunc) *Client {
	return &Client{
		provider: &testProvider{fn: fn},
		retry: RetryConfig{
			MaxAttempts:  4,
			InitialDelay: 1,
			Multiplier:   2.0,
			MaxDelay:     1,
		},
		budget: 30 * time.Second,
	}
}

// NewStatic creates a client that always returns text.
func NewStatic(text string) *Client {
	return NewTest(func(string, Options) (string, error) { return text, nil })
}

// NewUnconfigured returns a client with no provider, for exercising
// the degraded paths.
func NewUnconfigured() *Client {
	return &Client{retry: DefaultRetryConfig(), budget: 120 * time.Second}
}
