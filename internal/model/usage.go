package model

import (
	"sync/atomic"

	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

// UsageCounter accumulates token counts for one job. Counts are
// estimates unless the provider reports exact numbers; they are
// observability only, never correctness-critical.
type UsageCounter struct {
	prompt     atomic.Int64
	completion atomic.Int64
}

// Add records tokens for one call.
func (u *UsageCounter) Add(prompt, completion int64) {
	u.prompt.Add(prompt)
	u.completion.Add(completion)
}

// Snapshot returns the accumulated counts.
func (u *UsageCounter) Snapshot() types.TokenUsage {
	return types.TokenUsage{
		PromptTokens:     u.prompt.Load(),
		CompletionTokens: u.completion.Load(),
	}
}

// EstimateTokens approximates the token count of s with the
// byte-length/4 heuristic used when a provider reports no counts.
func EstimateTokens(s string) int64 {
	return int64(len(s)) / 4
}
