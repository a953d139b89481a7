package checker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

type commentPattern struct {
	re       *regexp.Regexp
	marker   string
	severity types.Severity
	message  string
}

var commentPatterns = []commentPattern{
	{regexp.MustCompile(`(?i)\bTODO\b[:\s]*(.*)`), "TODO", types.SeverityInfo, "TODO comment found"},
	{regexp.MustCompile(`(?i)\bFIXME\b[:\s]*(.*)`), "FIXME", types.SeverityWarning, "FIXME comment found - indicates a bug or issue"},
	{regexp.MustCompile(`(?i)\bHACK\b[:\s]*(.*)`), "HACK", types.SeverityWarning, "HACK comment found - indicates a workaround"},
	{regexp.MustCompile(`(?i)\bXXX\b[:\s]*(.*)`), "XXX", types.SeverityWarning, "XXX comment found - requires attention"},
	{regexp.MustCompile(`(?i)\bBUG\b[:\s]*(.*)`), "BUG", types.SeverityError, "BUG comment found - known bug marker"},
	{regexp.MustCompile(`(?i)\bNOTE\b[:\s]*(.*)`), "NOTE", types.SeverityInfo, "NOTE comment found"},
	{regexp.MustCompile(`(?i)\b(DEPRECATED|@deprecated)\b[:\s]*(.*)`), "DEPRECATED", types.SeverityWarning, "Deprecated code marker found"},
}

var commentExts = extSet(
	".js", ".jsx", ".ts", ".tsx", ".rs", ".py", ".go", ".java",
	".c", ".cpp", ".h", ".hpp", ".rb", ".php", ".swift", ".kt",
	".scala", ".cs", ".md",
)

// CommentChecker finds actionable comment markers (TODO, FIXME, ...).
type CommentChecker struct{}

// NewCommentChecker creates a comment checker.
func NewCommentChecker() *CommentChecker {
	return &CommentChecker{}
}

func (c *CommentChecker) Name() string { return "comments" }

// Run scans all checkable files under repoPath for comment markers.
func (c *CommentChecker) Run(repoPath string) ([]types.Diagnostic, error) {
	files, err := collectFiles(repoPath, commentExts)
	if err != nil {
		return nil, err
	}

	var diags []types.Diagnostic
	for _, f := range files {
		diags = append(diags, c.checkSource(f.rel, f.content)...)
	}
	return diags, nil
}

func (c *CommentChecker) checkSource(file, source string) []types.Diagnostic {
	var diags []types.Diagnostic
	for i, line := range strings.Split(source, "\n") {
		for _, p := range commentPatterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			desc := strings.TrimSpace(m[len(m)-1])
			message := p.message
			if desc != "" {
				message = fmt.Sprintf("%s: %s", p.message, desc)
			}
			column := 1
			if idx := strings.Index(strings.ToUpper(line), p.marker); idx >= 0 {
				column = idx + 1
			}
			diags = append(diags, types.Diagnostic{
				Checker:  "comments",
				Severity: p.severity,
				File:     file,
				Line:     i + 1,
				Column:   column,
				Message:  message,
				Rule:     "comment-" + strings.ToLower(p.marker),
			})
		}
	}
	return diags
}
