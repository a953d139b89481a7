package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vibestudy/vibestudy-reviewer/internal/model"
	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

// Reviewer produces repository-level suggestions from a code context.
// Reviewer failures are non-fatal per reviewer.
type Reviewer interface {
	Name() string
	Review(ctx context.Context, client *model.Client, usage *model.UsageCounter, code *CodeContext) ([]types.Suggestion, error)
}

// DefaultReviewers returns the reviewers in registration order.
func DefaultReviewers() []Reviewer {
	return []Reviewer{
		&CodeOracle{},
		&ProductIdeasReviewer{},
	}
}

const codeOracleSystem = "You are a senior software architect reviewing code. " +
	"Focus on actionable improvements. Respond ONLY with JSON. " +
	"All text content (title, description, rationale) MUST be written in Korean."

const productReviewerSystem = "You are a product engineer reviewing code for production readiness. " +
	"Focus on reliability, user experience, and operational excellence. Respond ONLY with JSON. " +
	"All text content (title, description, rationale) MUST be written in Korean."

// CodeOracle suggests architectural and code quality improvements.
type CodeOracle struct{}

func (r *CodeOracle) Name() string { return "code_oracle" }

func (r *CodeOracle) Review(ctx context.Context, client *model.Client, usage *model.UsageCounter, code *CodeContext) ([]types.Suggestion, error) {
	if len(code.Files) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(
		"Analyze this codebase and provide architectural and code quality suggestions.\n\n"+
			"%s\n\n"+
			"Provide suggestions in this JSON format:\n"+
			"[{\n"+
			"  \"category\": \"architecture\"|\"performance\"|\"security\"|\"code_quality\",\n"+
			"  \"title\": \"Brief title\",\n"+
			"  \"description\": \"Detailed description\",\n"+
			"  \"file\": \"path/to/file\" (optional),\n"+
			"  \"line\": 42 (optional),\n"+
			"  \"priority\": \"high\"|\"medium\"|\"low\",\n"+
			"  \"rationale\": \"Why this matters\"\n"+
			"}]\n\n"+
			"Focus on:\n"+
			"- Architectural patterns and anti-patterns\n"+
			"- Error handling improvements\n"+
			"- Performance optimizations\n"+
			"- Security concerns\n"+
			"- Code organization\n\n"+
			"Return ONLY the JSON array.",
		code.FilesSection(10, 2000),
	)

	resp, err := client.Complete(ctx, prompt, model.Options{
		MaxTokens:    4096,
		SystemPrompt: codeOracleSystem,
		Usage:        usage,
	})
	if err != nil {
		return nil, err
	}
	return parseSuggestions(r.Name(), resp)
}

// ProductIdeasReviewer suggests product features and production
// hardening based on the repository's structure.
type ProductIdeasReviewer struct{}

func (r *ProductIdeasReviewer) Name() string { return "product_ideas_reviewer" }

func (r *ProductIdeasReviewer) Review(ctx context.Context, client *model.Client, usage *model.UsageCounter, code *CodeContext) ([]types.Suggestion, error) {
	if len(code.Files) == 0 {
		return nil, nil
	}

	diagSummary := "No issues detected."
	if n := len(code.Diagnostics); n > 0 {
		diagSummary = fmt.Sprintf("%d issues found.", n)
	}

	prompt := fmt.Sprintf(
		"Analyze this codebase from a PRODUCT perspective.\n\n"+
			"%s\n\n"+
			"Current issues: %s\n\n"+
			"Provide suggestions in this JSON format:\n"+
			"[{\n"+
			"  \"category\": \"product_idea\"|\"hardening\",\n"+
			"  \"title\": \"Brief title\",\n"+
			"  \"description\": \"Detailed description\",\n"+
			"  \"priority\": \"high\"|\"medium\"|\"low\",\n"+
			"  \"rationale\": \"Why this matters for the product\"\n"+
			"}]\n\n"+
			"Focus on:\n"+
			"- Feature suggestions based on code structure\n"+
			"- Production hardening (logging, monitoring, error recovery)\n"+
			"- Deployment considerations\n"+
			"- User experience improvements\n"+
			"- Reliability and resilience\n\n"+
			"Return ONLY the JSON array.",
		code.Summary(), diagSummary,
	)

	resp, err := client.Complete(ctx, prompt, model.Options{
		MaxTokens:    4096,
		SystemPrompt: productReviewerSystem,
		Usage:        usage,
	})
	if err != nil {
		return nil, err
	}
	return parseSuggestions(r.Name(), resp)
}

var knownCategories = map[string]bool{
	"architecture": true,
	"performance":  true,
	"security":     true,
	"code_quality": true,
	"product_idea": true,
	"hardening":    true,
}

func parseSuggestions(reviewer, resp string) ([]types.Suggestion, error) {
	raw, err := model.ExtractJSONArray(resp)
	if err != nil {
		return nil, &model.Error{Kind: model.ErrInvalidResponse, Message: "suggestions are not a JSON array", Err: err}
	}

	var items []struct {
		Category    string `json:"category"`
		Title       string `json:"title"`
		Description string `json:"description"`
		File        string `json:"file"`
		Line        int    `json:"line"`
		Priority    string `json:"priority"`
		Rationale   string `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, &model.Error{Kind: model.ErrInvalidResponse, Message: "suggestions failed to decode", Err: err}
	}

	out := make([]types.Suggestion, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Description) == "" {
			continue
		}
		category := strings.ToLower(it.Category)
		if !knownCategories[category] {
			category = "code_quality"
		}
		out = append(out, types.Suggestion{
			Reviewer:    reviewer,
			Category:    category,
			Title:       it.Title,
			Description: it.Description,
			File:        it.File,
			Line:        it.Line,
			Priority:    parsePriority(it.Priority),
			Rationale:   it.Rationale,
		})
	}
	return out, nil
}

func parsePriority(s string) types.Priority {
	switch strings.ToLower(s) {
	case "high":
		return types.PriorityHigh
	case "low":
		return types.PriorityLow
	default:
		return types.PriorityMedium
	}
}
