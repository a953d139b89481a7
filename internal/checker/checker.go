// Package checker implements the rule-based checks that run against a
// cloned workspace. Checkers are read-only and deterministic for a
// given input tree.
package checker

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vibestudy/vibestudy-reviewer/internal/scan"
	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

// maxCheckableBytes guards checkers against pathological files.
const maxCheckableBytes = 1 << 20

// Checker is one rule-based check over a workspace. Run returns
// diagnostics with workspace-relative forward-slash paths and 1-based
// line numbers.
type Checker interface {
	Name() string
	Run(repoPath string) ([]types.Diagnostic, error)
}

// Default returns the checkers in registration order: linter,
// comments, typos, format.
func Default() []Checker {
	return []Checker{
		NewLinter(),
		NewCommentChecker(),
		NewTyposChecker(),
		NewFormatChecker(),
	}
}

// sourceFile is one readable candidate handed to a checker.
type sourceFile struct {
	rel     string
	content string
}

// collectFiles gathers checkable files under root whose extension is
// in exts, in deterministic (depth, path) order. Unreadable files are
// skipped; checkers never fail a review over one bad file.
func collectFiles(root string, exts map[string]bool) ([]sourceFile, error) {
	type candidate struct {
		rel   string
		abs   string
		depth int
	}
	var candidates []candidate

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && scan.SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		if info, err := d.Info(); err != nil || info.Size() > maxCheckableBytes {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		candidates = append(candidates, candidate{rel: rel, abs: path, depth: strings.Count(rel, "/")})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].depth != candidates[j].depth {
			return candidates[i].depth < candidates[j].depth
		}
		return candidates[i].rel < candidates[j].rel
	})

	files := make([]sourceFile, 0, len(candidates))
	for _, c := range candidates {
		raw, err := os.ReadFile(c.abs)
		if err != nil {
			continue
		}
		files = append(files, sourceFile{rel: c.rel, content: string(raw)})
	}
	return files, nil
}

func extSet(exts ...string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[e] = true
	}
	return m
}
