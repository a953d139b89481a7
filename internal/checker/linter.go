package checker

import (
	"regexp"
	"strings"

	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

// lintRule is one pattern-based JS/TS rule.
type lintRule struct {
	id         string
	pattern    *regexp.Regexp
	severity   types.Severity
	message    string
	suggestion string
}

var lintRules = []lintRule{
	{
		id:         "no-debugger",
		pattern:    regexp.MustCompile(`(^|[^\w$])debugger\s*;?`),
		severity:   types.SeverityError,
		message:    "Unexpected 'debugger' statement",
		suggestion: "Remove the debugger statement before committing",
	},
	{
		id:         "no-eval",
		pattern:    regexp.MustCompile(`(^|[^\w$.])eval\s*\(`),
		severity:   types.SeverityError,
		message:    "eval() is a security risk and should be avoided",
		suggestion: "Use safer alternatives like JSON.parse() for data",
	},
	{
		id:         "no-console",
		pattern:    regexp.MustCompile(`(^|[^\w$.])console\s*\.\s*(log|warn|error|info|debug|trace)\s*\(`),
		severity:   types.SeverityWarning,
		message:    "Unexpected console call",
		suggestion: "Remove console calls or use a proper logging library",
	},
	{
		id:         "no-alert",
		pattern:    regexp.MustCompile(`(^|[^\w$.])(alert|confirm|prompt)\s*\(`),
		severity:   types.SeverityWarning,
		message:    "Unexpected blocking dialog call",
		suggestion: "Use a modal or toast library instead",
	},
	{
		id:         "no-var",
		pattern:    regexp.MustCompile(`(^|[^\w$.])var\s+[A-Za-z_$]`),
		severity:   types.SeverityWarning,
		message:    "Unexpected var, use let or const instead",
		suggestion: "Replace 'var' with 'let' or 'const'",
	},
}

// Linter flags risky JavaScript/TypeScript constructs with a line
// scan. Matches inside line comments are ignored; string-literal
// matches are accepted as the cost of staying parser-free.
type Linter struct {
	rules []lintRule
}

// NewLinter creates a linter with the default rules.
func NewLinter() *Linter {
	return &Linter{rules: lintRules}
}

func (l *Linter) Name() string { return "linter" }

// Run lints all JS/TS files under repoPath.
func (l *Linter) Run(repoPath string) ([]types.Diagnostic, error) {
	files, err := collectFiles(repoPath, extSet(".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs"))
	if err != nil {
		return nil, err
	}

	var diags []types.Diagnostic
	for _, f := range files {
		diags = append(diags, l.lintSource(f.rel, f.content)...)
	}
	return diags, nil
}

func (l *Linter) lintSource(file, source string) []types.Diagnostic {
	var diags []types.Diagnostic
	for i, line := range strings.Split(source, "\n") {
		code := stripLineComment(line)
		for _, rule := range l.rules {
			loc := rule.pattern.FindStringIndex(code)
			if loc == nil {
				continue
			}
			diags = append(diags, types.Diagnostic{
				Checker:    "linter",
				Severity:   rule.severity,
				File:       file,
				Line:       i + 1,
				Column:     loc[0] + 1,
				Message:    rule.message,
				Rule:       rule.id,
				Suggestion: rule.suggestion,
			})
		}
	}
	return diags
}

// stripLineComment drops a trailing // comment. Quote-aware enough
// for lint purposes: a // inside a string literal is kept.
func stripLineComment(line string) string {
	inSingle, inDouble, inTick := false, false, false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '\'':
			if !inDouble && !inTick {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle && !inTick {
				inDouble = !inDouble
			}
		case '`':
			if !inSingle && !inDouble {
				inTick = !inTick
			}
		case '/':
			if i+1 < len(line) && line[i+1] == '/' && !inSingle && !inDouble && !inTick {
				return line[:i]
			}
		}
	}
	return line
}
