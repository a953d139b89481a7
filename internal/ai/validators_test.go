package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/vibestudy/vibestudy-reviewer/internal/model"
	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

func diag(rule, file string, line int) types.Diagnostic {
	return types.Diagnostic{
		Checker:  "test",
		Severity: types.SeverityInfo,
		File:     file,
		Line:     line,
		Message:  "m",
		Rule:     rule,
	}
}

func TestTypoValidatorDropsFalsePositives(t *testing.T) {
	client := model.NewStatic("[2]")
	diags := []types.Diagnostic{
		diag("typo", "a.go", 1),
		diag("typo", "b.go", 2),
		diag("comment-todo", "c.go", 3),
	}

	v := &TypoValidator{}
	got, err := v.Validate(context.Background(), client, nil, diags)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	// Second typo dropped; the non-typo diagnostic is untouched.
	if len(got) != 2 {
		t.Fatalf("got %d diagnostics, want 2", len(got))
	}
	if got[0].File != "a.go" || got[1].File != "c.go" {
		t.Errorf("unexpected survivors: %+v", got)
	}
}

func TestTypoValidatorNoTypos(t *testing.T) {
	calls := 0
	client := model.NewTest(func(string, model.Options) (string, error) {
		calls++
		return "[]", nil
	})
	diags := []types.Diagnostic{diag("comment-todo", "a.go", 1)}

	got, err := (&TypoValidator{}).Validate(context.Background(), client, nil, diags)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("model called %d times for zero typo diagnostics", calls)
	}
	if len(got) != 1 {
		t.Errorf("diagnostics should pass through unchanged")
	}
}

func TestCommentValidatorRemovesIndices(t *testing.T) {
	client := model.NewStatic("the indices to remove are: [1, 3]")
	diags := []types.Diagnostic{
		diag("comment-todo", "a.go", 1),
		diag("comment-fixme", "b.go", 2),
		diag("comment-hack", "c.go", 3),
	}

	got, err := (&CommentValidator{}).Validate(context.Background(), client, nil, diags)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].File != "b.go" {
		t.Fatalf("got %+v, want only b.go", got)
	}
}

func TestPrioritizerRelabelsSeverity(t *testing.T) {
	client := model.NewStatic(`[{"index": 1, "priority": "high"}, {"index": 2, "priority": "low"}]`)
	diags := []types.Diagnostic{
		diag("no-var", "a.js", 1),
		diag("no-console", "b.js", 2),
	}

	got, err := (&Prioritizer{}).Validate(context.Background(), client, nil, diags)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Severity != types.SeverityError {
		t.Errorf("first severity = %s, want error", got[0].Severity)
	}
	if got[1].Severity != types.SeverityInfo {
		t.Errorf("second severity = %s, want info", got[1].Severity)
	}
	// Input slice must not be mutated.
	if diags[0].Severity != types.SeverityInfo {
		t.Error("prioritizer mutated its input")
	}
}

func TestPrioritizerGarbageResponseKeepsSeverities(t *testing.T) {
	client := model.NewStatic("I cannot help with that")
	diags := []types.Diagnostic{diag("no-var", "a.js", 1)}

	got, err := (&Prioritizer{}).Validate(context.Background(), client, nil, diags)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Severity != types.SeverityInfo {
		t.Errorf("severity changed on unparseable response")
	}
}

func TestParseIndexArray(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"[1, 3, 5]", []int{1, 3, 5}},
		{"[]", []int{}},
		{"Here is the result: [2, 4]", []int{2, 4}},
		{"invalid", nil},
	}
	for _, tt := range tests {
		got := parseIndexArray(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("parseIndexArray(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range tt.want {
			if got[i] != tt.want[i] {
				t.Errorf("parseIndexArray(%q)[%d] = %d, want %d", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestValidatorPromptsMentionOnlyCandidates(t *testing.T) {
	var captured string
	client := model.NewTest(func(prompt string, _ model.Options) (string, error) {
		captured = prompt
		return "[]", nil
	})
	diags := []types.Diagnostic{
		diag("typo", "typo-file.go", 1),
		diag("no-var", "lint-file.js", 2),
	}

	if _, err := (&TypoValidator{}).Validate(context.Background(), client, nil, diags); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(captured, "typo-file.go") {
		t.Error("prompt missing the typo candidate")
	}
	if strings.Contains(captured, "lint-file.js") {
		t.Error("prompt should not include non-typo diagnostics")
	}
}
