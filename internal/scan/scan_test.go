package scan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
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

func paths(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestWalkOrdersByDepthThenPath(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/deep/nested.go": "package nested\n",
		"zeta.go":            "package zeta\n",
		"alpha.go":           "package alpha\n",
		"src/b.go":           "package b\n",
		"src/a.go":           "package a\n",
	})

	files, err := Walk(root, Options{MaxFiles: 50, MaxCharsPerFile: 4000})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	want := []string{"alpha.go", "zeta.go", "src/a.go", "src/b.go", "src/deep/nested.go"}
	if diff := cmp.Diff(want, paths(files)); diff != "" {
		t.Errorf("ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkIsDeterministic(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go": "package a\n", "b.py": "print()\n", "c/d.rs": "fn main() {}\n",
	})

	first, err := Walk(root, Options{MaxFiles: 50, MaxCharsPerFile: 4000})
	if err != nil {
		t.Fatal(err)
	}
	second, err := Walk(root, Options{MaxFiles: 50, MaxCharsPerFile: 4000})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated walk differs:\n%s", diff)
	}
}

func TestWalkSkipsDirsAndExtensions(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.go":              "package main\n",
		"node_modules/dep.js":  "x",
		"target/out.rs":        "x",
		".venv/lib.py":         "x",
		".hidden/secret.go":    "x",
		"__pycache__/cache.py": "x",
		"image.png":            "x",
		"binary.exe":           "x",
	})

	files, err := Walk(root, Options{MaxFiles: 50, MaxCharsPerFile: 4000})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"main.go"}
	if diff := cmp.Diff(want, paths(files)); diff != "" {
		t.Errorf("selection mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkSizePreFilter(t *testing.T) {
	root := writeTree(t, map[string]string{
		"small.go": "package small\n",
		"huge.go":  strings.Repeat("x", 500),
	})

	// huge.go is 500 bytes > 100*4, filtered before read.
	files, err := Walk(root, Options{MaxFiles: 50, MaxCharsPerFile: 100})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"small.go"}
	if diff := cmp.Diff(want, paths(files)); diff != "" {
		t.Errorf("size filter mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkCapsFileCount(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.go": "1", "b.go": "2", "c.go": "3", "d.go": "4",
	})

	files, err := Walk(root, Options{MaxFiles: 2, MaxCharsPerFile: 4000})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	// Cap keeps the deterministic prefix.
	want := []string{"a.go", "b.go"}
	if diff := cmp.Diff(want, paths(files)); diff != "" {
		t.Errorf("cap mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkTruncatesContent(t *testing.T) {
	root := writeTree(t, map[string]string{
		"big.md": strings.Repeat("a", 300),
	})

	files, err := Walk(root, Options{MaxFiles: 10, MaxCharsPerFile: 100})
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	f := files[0]
	if !f.Truncated {
		t.Error("expected truncation flag")
	}
	if !strings.Contains(f.Content, "[truncated, 200 more chars]") {
		t.Errorf("missing truncation marker in %q", f.Content)
	}
	if !strings.HasPrefix(f.Content, strings.Repeat("a", 100)) {
		t.Error("content prefix should be the first 100 chars")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		max       int
		truncated bool
	}{
		{"short", "hello", 10, false},
		{"exact", "hello", 5, false},
		{"cut", "hello world", 5, true},
		{"zero max keeps all", "hello", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, truncated := Truncate(tt.in, tt.max)
			if truncated != tt.truncated {
				t.Errorf("truncated = %v, want %v", truncated, tt.truncated)
			}
			if !truncated && out != tt.in {
				t.Errorf("content changed without truncation: %q", out)
			}
		})
	}
}

func TestTruncateRespectsRuneBoundary(t *testing.T) {
	s := "한국어 텍스트입니다"
	out, truncated := Truncate(s, 4)
	if !truncated {
		t.Fatal("expected truncation")
	}
	cut := strings.SplitN(out, "\n", 2)[0]
	if !strings.HasPrefix(s, cut) {
		t.Errorf("cut %q is not a clean prefix of input", cut)
	}
}

func TestTotalLines(t *testing.T) {
	files := []File{
		{Lines: 3},
		{Lines: 7},
	}
	if got := TotalLines(files); got != 10 {
		t.Errorf("TotalLines = %d, want 10", got)
	}
}
