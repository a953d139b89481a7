package checker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func rules(diags []types.Diagnostic) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = d.Rule
	}
	return out
}

func TestDefaultCheckerOrder(t *testing.T) {
	checkers := Default()
	want := []string{"linter", "comments", "typos", "format"}
	if len(checkers) != len(want) {
		t.Fatalf("got %d checkers, want %d", len(checkers), len(want))
	}
	for i, c := range checkers {
		if c.Name() != want[i] {
			t.Errorf("checker %d = %s, want %s", i, c.Name(), want[i])
		}
	}
}

func TestCheckersUseRelativePaths(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/app.js": "var x = 1;\n",
	})

	for _, c := range Default() {
		diags, err := c.Run(root)
		if err != nil {
			t.Fatalf("%s: %v", c.Name(), err)
		}
		for _, d := range diags {
			if filepath.IsAbs(d.File) || strings.Contains(d.File, "\\") {
				t.Errorf("%s produced non-relative path %q", c.Name(), d.File)
			}
			if d.Line < 1 {
				t.Errorf("%s produced line %d, want 1-based", c.Name(), d.Line)
			}
		}
	}
}

func TestLinterRules(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   []string
	}{
		{"debugger", "debugger;", []string{"no-debugger"}},
		{"var", "var x = 1;", []string{"no-var"}},
		{"eval", `eval("x")`, []string{"no-eval"}},
		{"console", "console.log('hi')", []string{"no-console"}},
		{"alert", "alert('hi')", []string{"no-alert"}},
		{"clean", "const x = 1;", nil},
		{"commented out", "// var x = 1;", nil},
		{"evaluate not eval", "evaluate(x)", nil},
	}

	linter := NewLinter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := linter.lintSource("test.js", tt.source)
			got := rules(diags)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("rule %d = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestLinterOnlyChecksJSFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go": "// var x = 1 in a Go file\nvar x = 1\n",
		"app.js":  "var x = 1;\n",
	})

	diags, err := NewLinter().Run(root)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range diags {
		if d.File != "app.js" {
			t.Errorf("linted non-JS file %s", d.File)
		}
	}
	if len(diags) == 0 {
		t.Error("expected a no-var diagnostic for app.js")
	}
}

func TestCommentChecker(t *testing.T) {
	c := NewCommentChecker()
	diags := c.checkSource("main.go", "// TODO: fix this later\n// FIXME broken\nfunc main() {}\n")

	got := rules(diags)
	want := []string{"comment-todo", "comment-fixme"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if diags[0].Line != 1 || diags[1].Line != 2 {
		t.Errorf("lines = %d, %d; want 1, 2", diags[0].Line, diags[1].Line)
	}
	if !strings.Contains(diags[0].Message, "fix this later") {
		t.Errorf("message should carry the description: %q", diags[0].Message)
	}
}

func TestCommentCheckerSeverities(t *testing.T) {
	c := NewCommentChecker()
	diags := c.checkSource("a.go", "// BUG: crashes\n// NOTE informative\n")
	if len(diags) != 2 {
		t.Fatalf("got %d diagnostics, want 2", len(diags))
	}
	if diags[0].Severity != types.SeverityError {
		t.Errorf("BUG severity = %s, want error", diags[0].Severity)
	}
	if diags[1].Severity != types.SeverityInfo {
		t.Errorf("NOTE severity = %s, want info", diags[1].Severity)
	}
}

func TestTyposChecker(t *testing.T) {
	c := NewTyposChecker()
	diags := c.checkSource("readme.md", "teh quick brown fox\n")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0]
	if d.Rule != "typo" || !strings.Contains(d.Message, "'the'") {
		t.Errorf("unexpected diagnostic: %+v", d)
	}
	if d.Column != 1 {
		t.Errorf("column = %d, want 1", d.Column)
	}
}

func TestTyposCheckerMultiple(t *testing.T) {
	c := NewTyposChecker()
	diags := c.checkSource("app.js", "funciton foo() { retrun 1; }\n")
	if len(diags) != 2 {
		t.Fatalf("got %d diagnostics, want 2", len(diags))
	}
}

func TestTyposCheckerClean(t *testing.T) {
	c := NewTyposChecker()
	if diags := c.checkSource("a.md", "the quick brown fox\n"); len(diags) != 0 {
		t.Fatalf("got %d diagnostics, want 0", len(diags))
	}
}

func TestExtractWords(t *testing.T) {
	words := extractWords("const foo = 'bar'")
	if len(words) != 3 {
		t.Fatalf("got %d words, want 3", len(words))
	}
	if words[0].text != "const" || words[1].text != "foo" || words[2].text != "bar" {
		t.Errorf("unexpected words: %+v", words)
	}
}

func TestFormatChecker(t *testing.T) {
	c := NewFormatChecker()

	tests := []struct {
		name    string
		content string
		rule    string
	}{
		{"trailing whitespace", "x := 1 \n", "trailing-whitespace"},
		{"long line", strings.Repeat("a", 130) + "\n", "line-too-long"},
		{"blank lines", "a\n\n\n\n\nb\n", "multiple-blank-lines"},
		{"missing newline", "no newline", "missing-final-newline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := c.checkSource("a.go", tt.content)
			found := false
			for _, d := range diags {
				if d.Rule == tt.rule {
					found = true
				}
			}
			if !found {
				t.Errorf("expected rule %s in %v", tt.rule, rules(diags))
			}
		})
	}
}

func TestFormatCheckerMixedIndentation(t *testing.T) {
	c := NewFormatChecker()
	diags := c.checkSource("a.py", "\tindented with tab\n    indented with spaces\n")
	found := false
	for _, d := range diags {
		if d.Rule == "mixed-indentation" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected mixed-indentation in %v", rules(diags))
	}
}

func TestFormatCheckerCleanFile(t *testing.T) {
	c := NewFormatChecker()
	if diags := c.checkSource("a.go", "package a\n\nfunc main() {}\n"); len(diags) != 0 {
		t.Errorf("clean file produced %v", rules(diags))
	}
}
