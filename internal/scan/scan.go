// Package scan selects and reads source files from a workspace for
// model prompts and repository analysis. Selection is deterministic
// across runs on identical trees: candidates are ordered by directory
// depth, then lexicographic path.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/vibestudy/vibestudy-reviewer/internal/apperr"
)

// Options bounds a workspace scan.
type Options struct {
	MaxFiles        int
	MaxCharsPerFile int
}

// File is one selected file with its (possibly truncated) content.
type File struct {
	Path      string // workspace-relative, forward slashes
	Content   string
	Lines     int
	Truncated bool
}

var acceptedExtensions = map[string]bool{
	".rs": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".py": true, ".go": true, ".java": true, ".kt": true, ".rb": true,
	".php": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true,
	".cs": true, ".swift": true, ".md": true, ".toml": true,
	".yaml": true, ".yml": true, ".json": true,
}

var skippedDirs = map[string]bool{
	"node_modules": true,
	"target":       true,
	"dist":         true,
	"build":        true,
	".git":         true,
	".venv":        true,
	"__pycache__":  true,
}

// SkipDir reports whether a directory name is excluded from scans.
func SkipDir(name string) bool {
	return skippedDirs[name] || strings.HasPrefix(name, ".")
}

// Accepted reports whether a file name has a scannable extension.
func Accepted(name string) bool {
	return acceptedExtensions[strings.ToLower(filepath.Ext(name))]
}

// Walk scans root and returns up to opts.MaxFiles files, each read up
// to opts.MaxCharsPerFile characters with an explicit truncation
// marker. Files larger than MaxCharsPerFile*4 bytes on disk are
// skipped before reading.
func Walk(root string, opts Options) ([]File, error) {
	type candidate struct {
		rel   string
		abs   string
		depth int
	}

	maxBytes := int64(opts.MaxCharsPerFile) * 4
	var candidates []candidate

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && SkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !Accepted(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if maxBytes > 0 && info.Size() > maxBytes {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		candidates = append(candidates, candidate{
			rel:   rel,
			abs:   path,
			depth: strings.Count(rel, "/"),
		})
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindAnalyze, "workspace traversal failed", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].depth != candidates[j].depth {
			return candidates[i].depth < candidates[j].depth
		}
		return candidates[i].rel < candidates[j].rel
	})

	if opts.MaxFiles > 0 && len(candidates) > opts.MaxFiles {
		candidates = candidates[:opts.MaxFiles]
	}

	files := make([]File, 0, len(candidates))
	for _, c := range candidates {
		raw, err := os.ReadFile(c.abs)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindAnalyze, fmt.Sprintf("read %s", c.rel), err)
		}
		content, truncated := Truncate(string(raw), opts.MaxCharsPerFile)
		files = append(files, File{
			Path:      c.rel,
			Content:   content,
			Lines:     countLines(string(raw)),
			Truncated: truncated,
		})
	}

	return files, nil
}

// Truncate cuts s to at most max characters at a rune boundary and
// appends a marker noting how much was dropped.
func Truncate(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	cut := 0
	for i := 0; i < max; i++ {
		_, size := utf8.DecodeRuneInString(s[cut:])
		cut += size
	}
	dropped := utf8.RuneCountInString(s[cut:])
	return s[:cut] + fmt.Sprintf("\n... [truncated, %d more chars]", dropped), true
}

// TotalLines sums the line counts of files.
func TotalLines(files []File) int {
	n := 0
	for _, f := range files {
		n += f.Lines
	}
	return n
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}
