// Package ai implements the model-assisted stages: diagnostic
// validators, repository reviewers, and the acceptance-criteria
// grader.
package ai

import (
	"fmt"
	"strings"

	"github.com/vibestudy/vibestudy-reviewer/internal/scan"
	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

// CodeContext is the capped, filtered snapshot of a repository passed
// to reviewers.
type CodeContext struct {
	RepoURL     string
	Files       []scan.File
	Diagnostics []types.Diagnostic
}

// Summary lists the repository and its selected file paths.
func (c *CodeContext) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository: %s\nFiles (%d):", c.RepoURL, len(c.Files))
	for _, f := range c.Files {
		b.WriteString("\n- ")
		b.WriteString(f.Path)
	}
	return b.String()
}

// FilesSection renders up to maxFiles file bodies, each capped at
// maxChars characters, for inclusion in a prompt.
func (c *CodeContext) FilesSection(maxFiles, maxChars int) string {
	return renderFiles(c.Files, maxFiles, maxChars)
}

// GradeContext is the snapshot passed to the criteria grader for one
// task.
type GradeContext struct {
	RepoURL string
	Task    types.GradeTask
	Files   []scan.File
}

// CodeSummary renders the submitted code for the grading prompt.
func (c *GradeContext) CodeSummary(maxFiles, maxChars int) string {
	return renderFiles(c.Files, maxFiles, maxChars)
}

func renderFiles(files []scan.File, maxFiles, maxChars int) string {
	if maxFiles > 0 && len(files) > maxFiles {
		files = files[:maxFiles]
	}
	sections := make([]string, 0, len(files))
	for _, f := range files {
		content := f.Content
		if maxChars > 0 {
			content, _ = scan.Truncate(content, maxChars)
		}
		sections = append(sections, fmt.Sprintf("=== %s ===\n%s", f.Path, content))
	}
	return strings.Join(sections, "\n\n")
}
