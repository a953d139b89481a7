package checker

import (
	"fmt"
	"strings"

	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

var formatExts = extSet(
	".js", ".jsx", ".ts", ".tsx", ".rs", ".py", ".go", ".java",
	".c", ".cpp", ".h", ".hpp", ".rb", ".php", ".swift", ".kt",
	".scala", ".cs", ".json", ".yaml", ".yml", ".toml", ".md",
)

// FormatChecker finds common style issues: trailing whitespace, long
// lines, runs of blank lines, mixed indentation, and a missing final
// newline.
type FormatChecker struct {
	maxLineLength int
	maxBlankLines int
}

// NewFormatChecker creates a format checker with default settings
// (120 column limit, 2 consecutive blank lines).
func NewFormatChecker() *FormatChecker {
	return &FormatChecker{maxLineLength: 120, maxBlankLines: 2}
}

func (c *FormatChecker) Name() string { return "format" }

// Run checks formatting of all supported files under repoPath.
func (c *FormatChecker) Run(repoPath string) ([]types.Diagnostic, error) {
	files, err := collectFiles(repoPath, formatExts)
	if err != nil {
		return nil, err
	}

	var diags []types.Diagnostic
	for _, f := range files {
		diags = append(diags, c.checkSource(f.rel, f.content)...)
	}
	return diags, nil
}

func (c *FormatChecker) checkSource(file, content string) []types.Diagnostic {
	var diags []types.Diagnostic

	blankRun := 0
	hasTabs, hasSpaces := false, false
	lines := strings.Split(content, "\n")

	for i, line := range lines {
		lineNum := i + 1

		if strings.HasSuffix(line, " ") || strings.HasSuffix(line, "\t") {
			diags = append(diags, types.Diagnostic{
				Checker:    "format",
				Severity:   types.SeverityInfo,
				File:       file,
				Line:       lineNum,
				Column:     len(line),
				Message:    "Trailing whitespace",
				Rule:       "trailing-whitespace",
				Suggestion: "Remove trailing whitespace",
			})
		}

		if len(line) > c.maxLineLength {
			diags = append(diags, types.Diagnostic{
				Checker:    "format",
				Severity:   types.SeverityInfo,
				File:       file,
				Line:       lineNum,
				Column:     c.maxLineLength + 1,
				Message:    fmt.Sprintf("Line exceeds %d characters (%d chars)", c.maxLineLength, len(line)),
				Rule:       "line-too-long",
				Suggestion: "Consider breaking the line",
			})
		}

		leading := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if strings.Contains(leading, "\t") {
			hasTabs = true
		}
		if strings.Contains(leading, " ") {
			hasSpaces = true
		}

		if strings.TrimSpace(line) == "" {
			blankRun++
			if blankRun > c.maxBlankLines {
				diags = append(diags, types.Diagnostic{
					Checker:    "format",
					Severity:   types.SeverityInfo,
					File:       file,
					Line:       lineNum,
					Column:     1,
					Message:    fmt.Sprintf("More than %d consecutive blank lines", c.maxBlankLines),
					Rule:       "multiple-blank-lines",
					Suggestion: "Remove extra blank lines",
				})
			}
		} else {
			blankRun = 0
		}
	}

	if hasTabs && hasSpaces {
		diags = append(diags, types.Diagnostic{
			Checker:    "format",
			Severity:   types.SeverityWarning,
			File:       file,
			Line:       1,
			Column:     1,
			Message:    "File uses mixed tabs and spaces for indentation",
			Rule:       "mixed-indentation",
			Suggestion: "Use consistent indentation (tabs or spaces, not both)",
		})
	}

	if content != "" && !strings.HasSuffix(content, "\n") {
		diags = append(diags, types.Diagnostic{
			Checker:    "format",
			Severity:   types.SeverityInfo,
			File:       file,
			Line:       len(lines),
			Column:     1,
			Message:    "File should end with a newline",
			Rule:       "missing-final-newline",
			Suggestion: "Add a newline at the end of the file",
		})
	}

	return diags
}
