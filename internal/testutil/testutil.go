// Package testutil provides shared test helpers.
package testutil

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vibestudy/vibestudy-reviewer/internal/event"
	"github.com/vibestudy/vibestudy-reviewer/internal/workspace"
)

// WriteTree creates files under a fresh temp directory and returns
// its path. Keys are relative slash paths; parent directories are
// created as needed.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

// FakeClone returns a CloneFunc-compatible function that copies the
// given tree spec into a fresh directory per call, standing in for a
// real git clone.
func FakeClone(t *testing.T, files map[string]string) func(ctx context.Context, repoURL string) (*workspace.Workspace, error) {
	t.Helper()

	return func(ctx context.Context, repoURL string) (*workspace.Workspace, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		root, err := os.MkdirTemp("", "testclone-")
		if err != nil {
			return nil, err
		}
		for rel, content := range files {
			path := filepath.Join(root, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return nil, err
			}
		}
		return &workspace.Workspace{Path: root, RepoURL: repoURL}, nil
	}
}

// CollectEvents drains an event channel until it closes or the
// timeout expires, returning everything received.
func CollectEvents(t *testing.T, ch <-chan event.Event, timeout time.Duration) []event.Event {
	t.Helper()

	var events []event.Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out collecting events; got %d so far", len(events))
			return events
		}
	}
}

// EventTypes extracts the type names in order.
func EventTypes(events []event.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

// AssertStatusCode checks the recorded HTTP status, reporting the
// body on mismatch.
func AssertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()

	if w.Code != expected {
		t.Errorf("Expected status %d, got %d: %s", expected, w.Code, w.Body.String())
	}
}

// DecodeJSON unmarshals a response body into out.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()

	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}
