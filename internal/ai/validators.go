package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vibestudy/vibestudy-reviewer/internal/model"
	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

// Validator filters or relabels checker diagnostics using the model.
// A failing validator is non-fatal: the orchestrator passes the input
// list through unchanged.
type Validator interface {
	Name() string
	Validate(ctx context.Context, client *model.Client, usage *model.UsageCounter, diags []types.Diagnostic) ([]types.Diagnostic, error)
}

// DefaultValidators returns the validators in registration order.
func DefaultValidators() []Validator {
	return []Validator{
		&TypoValidator{},
		&CommentValidator{},
		&Prioritizer{},
	}
}

const validatorSystemPrompt = "You are a code review assistant. " +
	"Respond ONLY with the requested JSON format. No explanations. " +
	"All text content in the JSON (messages, descriptions, suggestions) MUST be written in Korean."

// TypoValidator removes typo diagnostics the model judges to be false
// positives (valid technical terms, abbreviations, intentional
// spellings).
type TypoValidator struct{}

func (v *TypoValidator) Name() string { return "typo_validator" }

func (v *TypoValidator) Validate(ctx context.Context, client *model.Client, usage *model.UsageCounter, diags []types.Diagnostic) ([]types.Diagnostic, error) {
	candidates := indicesByRule(diags, "typo")
	if len(candidates) == 0 {
		return diags, nil
	}

	var list strings.Builder
	for i, idx := range candidates {
		d := diags[idx]
		fmt.Fprintf(&list, "%d. %q in %s (line %d)\n", i+1, d.Message, d.File, d.Line)
	}

	prompt := fmt.Sprintf(
		"Review these potential typos and identify FALSE POSITIVES (valid technical terms, "+
			"abbreviations, or intentional spellings).\n\n"+
			"Typos:\n%s\n"+
			"Return ONLY a JSON array of indices (1-based) that are FALSE POSITIVES. "+
			"Example: [1, 3, 5]\n"+
			"If all are real typos, return: []",
		list.String(),
	)

	resp, err := client.Complete(ctx, prompt, model.Options{
		MaxTokens:    1024,
		SystemPrompt: validatorSystemPrompt,
		Usage:        usage,
	})
	if err != nil {
		return nil, err
	}

	drop := make(map[int]bool)
	for _, n := range parseIndexArray(resp) {
		if n >= 1 && n <= len(candidates) {
			drop[candidates[n-1]] = true
		}
	}
	return removeIndices(diags, drop), nil
}

// CommentValidator removes comment-marker diagnostics that are low
// priority, already done, or not actionable.
type CommentValidator struct{}

func (v *CommentValidator) Name() string { return "comment_validator" }

func (v *CommentValidator) Validate(ctx context.Context, client *model.Client, usage *model.UsageCounter, diags []types.Diagnostic) ([]types.Diagnostic, error) {
	candidates := indicesByRulePrefix(diags, "comment-")
	if len(candidates) == 0 {
		return diags, nil
	}

	var list strings.Builder
	for i, idx := range candidates {
		d := diags[idx]
		fmt.Fprintf(&list, "%d. %s in %s (line %d)\n", i+1, d.Message, d.File, d.Line)
	}

	prompt := fmt.Sprintf(
		"Review these TODO/FIXME/HACK comments and identify which ones are:\n"+
			"- LOW PRIORITY (minor improvements, nice-to-have)\n"+
			"- Already completed but not removed\n"+
			"- Not actionable\n\n"+
			"Comments:\n%s\n"+
			"Return ONLY a JSON array of indices (1-based) to REMOVE. "+
			"Example: [2, 4]\n"+
			"If all are important, return: []",
		list.String(),
	)

	resp, err := client.Complete(ctx, prompt, model.Options{
		MaxTokens:    1024,
		SystemPrompt: validatorSystemPrompt,
		Usage:        usage,
	})
	if err != nil {
		return nil, err
	}

	drop := make(map[int]bool)
	for _, n := range parseIndexArray(resp) {
		if n >= 1 && n <= len(candidates) {
			drop[candidates[n-1]] = true
		}
	}
	return removeIndices(diags, drop), nil
}

// Prioritizer re-labels diagnostic severities by the model's judgment
// of actual impact.
type Prioritizer struct{}

func (v *Prioritizer) Name() string { return "prioritizer" }

func (v *Prioritizer) Validate(ctx context.Context, client *model.Client, usage *model.UsageCounter, diags []types.Diagnostic) ([]types.Diagnostic, error) {
	if len(diags) == 0 {
		return diags, nil
	}

	var list strings.Builder
	for i, d := range diags {
		fmt.Fprintf(&list, "%d. [%s] %s - %s (%s:%d)\n",
			i+1, strings.ToUpper(string(d.Severity)), d.Rule, d.Message, d.File, d.Line)
	}

	prompt := fmt.Sprintf(
		"Prioritize these code issues by actual impact:\n\n"+
			"Issues:\n%s\n"+
			"Return a JSON array with priority adjustments:\n"+
			"[{\n  \"index\": 1,\n  \"priority\": \"high\"|\"medium\"|\"low\"\n}]\n\n"+
			"Consider:\n"+
			"- Security issues = high\n"+
			"- Bugs/crashes = high\n"+
			"- Performance = medium\n"+
			"- Style/formatting = low\n\n"+
			"Return ONLY the JSON array.",
		list.String(),
	)

	resp, err := client.Complete(ctx, prompt, model.Options{
		MaxTokens:    2048,
		SystemPrompt: validatorSystemPrompt,
		Usage:        usage,
	})
	if err != nil {
		return nil, err
	}

	out := make([]types.Diagnostic, len(diags))
	copy(out, diags)
	for idx, priority := range parsePriorities(resp) {
		if idx < 1 || idx > len(out) {
			continue
		}
		switch priority {
		case "high":
			out[idx-1].Severity = types.SeverityError
		case "medium":
			out[idx-1].Severity = types.SeverityWarning
		case "low":
			out[idx-1].Severity = types.SeverityInfo
		}
	}
	return out, nil
}

func indicesByRule(diags []types.Diagnostic, rule string) []int {
	var out []int
	for i, d := range diags {
		if d.Rule == rule {
			out = append(out, i)
		}
	}
	return out
}

func indicesByRulePrefix(diags []types.Diagnostic, prefix string) []int {
	var out []int
	for i, d := range diags {
		if strings.HasPrefix(d.Rule, prefix) {
			out = append(out, i)
		}
	}
	return out
}

func removeIndices(diags []types.Diagnostic, drop map[int]bool) []types.Diagnostic {
	out := make([]types.Diagnostic, 0, len(diags))
	for i, d := range diags {
		if !drop[i] {
			out = append(out, d)
		}
	}
	return out
}

// parseIndexArray extracts a JSON array of 1-based indices, tolerating
// surrounding prose. Unparseable responses yield no indices.
func parseIndexArray(resp string) []int {
	raw, err := model.ExtractJSONArray(resp)
	if err != nil {
		return nil
	}
	var out []int
	if json.Unmarshal([]byte(raw), &out) != nil {
		return nil
	}
	return out
}

func parsePriorities(resp string) map[int]string {
	raw, err := model.ExtractJSONArray(resp)
	if err != nil {
		return nil
	}
	var items []struct {
		Index    int    `json:"index"`
		Priority string `json:"priority"`
	}
	if json.Unmarshal([]byte(raw), &items) != nil {
		return nil
	}
	out := make(map[int]string, len(items))
	for _, it := range items {
		out[it.Index] = strings.ToLower(it.Priority)
	}
	return out
}
