// Package workspace acquires a shallow clone of a remote repository
// in a temporary directory and guarantees cleanup on all exit paths.
package workspace

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/vibestudy/vibestudy-reviewer/internal/apperr"
)

const (
	cloneTimeout  = 5 * time.Minute
	probeTimeout  = 10 * time.Second
	tempDirPrefix = "vibestudy-review-"
)

// probeClient is overridable in tests.
var probeClient = &http.Client{Timeout: probeTimeout}

// Workspace is a temporary checkout owned by one job. Release must be
// called on every exit path; it is idempotent.
type Workspace struct {
	Path    string
	RepoURL string
}

// ValidateURL checks that raw is a plausible https git remote.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return apperr.New(apperr.KindInvalidInput, "repo_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidInput, fmt.Sprintf("malformed repo URL %q", raw), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperr.Newf(apperr.KindInvalidInput, "unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return apperr.Newf(apperr.KindInvalidInput, "repo URL %q has no host", raw)
	}
	return nil
}

// Clone validates the URL, probes the hosting provider for existence
// when possible, and performs a depth-1 clone into a fresh temporary
// directory. The context cancels an in-flight clone.
func Clone(ctx context.Context, repoURL string) (*Workspace, error) {
	if err := ValidateURL(repoURL); err != nil {
		return nil, err
	}
	if err := probeGitHub(ctx, repoURL); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", tempDirPrefix)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindClone, "create temp dir", err)
	}

	ctx, cancel := context.WithTimeout(ctx, cloneTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--single-branch", repoURL, dir)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		os.RemoveAll(dir)
		if ctx.Err() == context.DeadlineExceeded {
			return nil, apperr.New(apperr.KindClone, "clone timed out")
		}
		if ctx.Err() == context.Canceled {
			return nil, apperr.New(apperr.KindCancelled, "cancelled")
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, apperr.Newf(apperr.KindClone, "git clone failed: %s", firstLine(msg))
	}

	return &Workspace{Path: dir, RepoURL: repoURL}, nil
}

// probeGitHub short-circuits obviously bad github.com URLs with an
// unauthenticated metadata fetch before paying for a full clone.
// Probe transport failures (rate limits, offline CI) fall through to
// the clone, which is authoritative.
func probeGitHub(ctx context.Context, repoURL string) error {
	u, err := url.Parse(repoURL)
	if err != nil || !strings.EqualFold(u.Host, "github.com") {
		return nil
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return apperr.Newf(apperr.KindInvalidInput, "github URL %q is not owner/repo", repoURL)
	}
	owner, repo := parts[0], strings.TrimSuffix(parts[1], ".git")

	api := fmt.Sprintf("https://api.github.com/repos/%s/%s", owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := probeClient.Do(req)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return apperr.New(apperr.KindCancelled, "cancelled")
		}
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return apperr.Newf(apperr.KindClone, "repository %s/%s not found", owner, repo)
	}
	return nil
}

// Release removes the workspace directory. Idempotent; safe on a nil
// receiver so failure paths can release unconditionally.
func (w *Workspace) Release() {
	if w == nil || w.Path == "" {
		return
	}
	os.RemoveAll(w.Path)
	w.Path = ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
