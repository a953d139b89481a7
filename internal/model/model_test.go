package model

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestUnconfiguredClient(t *testing.T) {
	c := NewUnconfigured()
	if c.Configured() {
		t.Fatal("client should not be configured")
	}

	_, err := c.Complete(context.Background(), "hi", Options{})
	var merr *Error
	if !errors.As(err, &merr) || merr.Kind != ErrNotConfigured {
		t.Fatalf("err = %v, want not_configured", err)
	}
}

func TestCompleteReturnsText(t *testing.T) {
	c := NewStatic("hello")
	got, err := c.Complete(context.Background(), "prompt", Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestCompleteJSONExtraction(t *testing.T) {
	c := NewStatic("Sure, here you go:\n```json\n{\"passed\": true}\n```\nthanks!")
	got, err := c.Complete(context.Background(), "p", Options{ResponseFormat: FormatJSONObject})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != `{"passed": true}` {
		t.Errorf("got %q", got)
	}
}

func TestCompleteJSONExtractionFailure(t *testing.T) {
	c := NewStatic("no json here at all")
	_, err := c.Complete(context.Background(), "p", Options{ResponseFormat: FormatJSONObject})
	var merr *Error
	if !errors.As(err, &merr) || merr.Kind != ErrInvalidResponse {
		t.Fatalf("err = %v, want invalid_response", err)
	}
}

func TestCompleteRetriesTransientErrors(t *testing.T) {
	attempts := 0
	c := NewTest(func(prompt string, opts Options) (string, error) {
		attempts++
		if attempts < 3 {
			return "", &Error{Kind: ErrRateLimited, Message: "slow down"}
		}
		return "ok", nil
	})

	got, err := c.Complete(context.Background(), "p", Options{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q", got)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestCompleteDoesNotRetryUnauthorized(t *testing.T) {
	attempts := 0
	c := NewTest(func(prompt string, opts Options) (string, error) {
		attempts++
		return "", &Error{Kind: ErrUnauthorized, Message: "bad key"}
	})

	_, err := c.Complete(context.Background(), "p", Options{})
	var merr *Error
	if !errors.As(err, &merr) || merr.Kind != ErrUnauthorized {
		t.Fatalf("err = %v, want unauthorized", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestCompleteRetriesAreBounded(t *testing.T) {
	attempts := 0
	c := NewTest(func(prompt string, opts Options) (string, error) {
		attempts++
		return "", &Error{Kind: ErrTransport, Message: "flaky"}
	})

	_, err := c.Complete(context.Background(), "p", Options{})
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestCompleteRecordsEstimatedUsage(t *testing.T) {
	c := NewStatic(strings.Repeat("b", 40))
	var usage UsageCounter

	prompt := strings.Repeat("a", 100)
	if _, err := c.Complete(context.Background(), prompt, Options{Usage: &usage}); err != nil {
		t.Fatal(err)
	}

	snap := usage.Snapshot()
	if snap.PromptTokens != 25 {
		t.Errorf("prompt tokens = %d, want 25", snap.PromptTokens)
	}
	if snap.CompletionTokens != 10 {
		t.Errorf("completion tokens = %d, want 10", snap.CompletionTokens)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   ErrKind
	}{
		{401, ErrUnauthorized},
		{403, ErrUnauthorized},
		{429, ErrRateLimited},
		{500, ErrTransport},
		{503, ErrTransport},
		{400, ErrInvalidResponse},
	}
	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestIsOAuthKey(t *testing.T) {
	if !IsOAuthKey("sk-ant-oat01-abc") {
		t.Error("OAuth token not detected")
	}
	if IsOAuthKey("sk-ant-api03-abc") {
		t.Error("API key misdetected as OAuth")
	}
}
