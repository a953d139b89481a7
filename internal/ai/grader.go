package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/vibestudy/vibestudy-reviewer/internal/model"
	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

const graderSystemPrompt = `You are a code grader evaluating student submissions against acceptance criteria.

## Your Role
Determine if the submitted code satisfies a specific acceptance criterion.

## Evaluation Guidelines
1. Be Fair: Give credit for working implementations, even if imperfect
2. Be Thorough: Check for actual implementation, not just presence of code
3. Be Specific: Cite exact file and line numbers as evidence
4. Consider Intent: Partial implementations may still satisfy criteria

## Scoring Rules
- passed: true - Criterion is clearly satisfied
- passed: false - Criterion is NOT satisfied or insufficient evidence
- confidence: Your certainty (0.0 = guess, 1.0 = certain)

## Response Format
Respond ONLY with valid JSON (no markdown, no explanation):
{
    "passed": true|false,
    "confidence": 0.0-1.0,
    "evidence": "Detailed explanation with code references",
    "code_references": [
        {"file": "path/to/file", "line_start": 10, "line_end": 20, "snippet": "optional"}
    ]
}`

const graderStrictReminder = "\n\nIMPORTANT: your previous response was missing required fields. " +
	"Respond with a single JSON object containing ALL of: passed (boolean), " +
	"confidence (number 0.0-1.0), evidence (string), code_references (array)."

// CriteriaChecker grades one criterion against a code context with a
// single model call. Unknown response fields are ignored; a response
// missing required fields triggers one stricter retry.
type CriteriaChecker struct {
	maxFiles        int
	maxCharsPerFile int
}

// NewCriteriaChecker creates a grader with the given prompt limits.
func NewCriteriaChecker(maxFiles, maxCharsPerFile int) *CriteriaChecker {
	return &CriteriaChecker{maxFiles: maxFiles, maxCharsPerFile: maxCharsPerFile}
}

func (g *CriteriaChecker) Name() string { return "criteria_checker" }

// Check evaluates one criterion and returns its result.
func (g *CriteriaChecker) Check(ctx context.Context, client *model.Client, usage *model.UsageCounter, gc *GradeContext, criterion types.Criterion) (types.CriterionResult, error) {
	prompt := g.buildPrompt(gc, criterion)

	resp, err := g.ask(ctx, client, usage, prompt)
	if err != nil {
		return types.CriterionResult{}, err
	}

	result, missing := g.parseResponse(resp, criterion)
	if missing {
		resp, err = g.ask(ctx, client, usage, prompt+graderStrictReminder)
		if err != nil {
			return types.CriterionResult{}, err
		}
		result, missing = g.parseResponse(resp, criterion)
		if missing {
			return types.CriterionResult{}, &model.Error{
				Kind:    model.ErrInvalidResponse,
				Message: "grader response missing required fields after retry",
			}
		}
	}
	return result, nil
}

func (g *CriteriaChecker) ask(ctx context.Context, client *model.Client, usage *model.UsageCounter, prompt string) (string, error) {
	return client.Complete(ctx, prompt, model.Options{
		MaxTokens:      2048,
		SystemPrompt:   graderSystemPrompt,
		ResponseFormat: model.FormatJSONObject,
		Usage:          usage,
	})
}

func (g *CriteriaChecker) buildPrompt(gc *GradeContext, criterion types.Criterion) string {
	return fmt.Sprintf(
		"## Task\n%s\n%s\n\n"+
			"## Acceptance Criterion to Check\n%s\n\n"+
			"## Submitted Code\n%s\n\n"+
			"Evaluate if this criterion is satisfied. Return JSON only.",
		gc.Task.Title,
		gc.Task.Description,
		criterion.Description,
		gc.CodeSummary(g.maxFiles, g.maxCharsPerFile),
	)
}

// parseResponse decodes a grader reply. missing is true when a
// required field is absent, which triggers the stricter retry.
func (g *CriteriaChecker) parseResponse(resp string, criterion types.Criterion) (types.CriterionResult, bool) {
	var raw struct {
		Passed         *bool    `json:"passed"`
		Confidence     *float64 `json:"confidence"`
		Evidence       *string  `json:"evidence"`
		CodeReferences []struct {
			File      string `json:"file"`
			LineStart int    `json:"line_start"`
			LineEnd   int    `json:"line_end"`
			Snippet   string `json:"snippet"`
		} `json:"code_references"`
	}
	if err := json.Unmarshal([]byte(resp), &raw); err != nil {
		return types.CriterionResult{}, true
	}
	if raw.Passed == nil || raw.Confidence == nil || raw.Evidence == nil {
		return types.CriterionResult{}, true
	}

	result := types.CriterionResult{
		Criterion:      criterion.Description,
		Passed:         *raw.Passed,
		Confidence:     clamp01(*raw.Confidence),
		Evidence:       *raw.Evidence,
		CodeReferences: []types.CodeRef{},
		Weight:         criterion.EffectiveWeight(),
	}

	for _, ref := range raw.CodeReferences {
		normalized, ok := normalizeRefPath(ref.File)
		if !ok {
			continue
		}
		lineStart, lineEnd := ref.LineStart, ref.LineEnd
		if lineStart < 1 {
			lineStart = 1
		}
		if lineEnd < lineStart {
			lineEnd = lineStart
		}
		result.CodeReferences = append(result.CodeReferences, types.CodeRef{
			File:      normalized,
			LineStart: lineStart,
			LineEnd:   lineEnd,
			Snippet:   ref.Snippet,
		})
	}

	return result, false
}

// normalizeRefPath converts a cited path to forward slashes and
// rejects absolute paths or paths escaping the workspace. Rejected
// references are dropped silently.
func normalizeRefPath(p string) (string, bool) {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimSpace(p)
	if p == "" {
		return "", false
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, ":") {
		return "", false
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
