package daemon

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vibestudy/vibestudy-reviewer/internal/config"
	"github.com/vibestudy/vibestudy-reviewer/internal/grade"
	"github.com/vibestudy/vibestudy-reviewer/internal/model"
	"github.com/vibestudy/vibestudy-reviewer/internal/review"
	"github.com/vibestudy/vibestudy-reviewer/internal/testutil"
	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

var sampleTree = map[string]string{
	"main.go": "package main\n\nfunc main() {}\n",
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	client := model.NewStatic(`{"passed": true, "confidence": 0.9, "evidence": "ok"}`)
	reviews := review.NewOrchestrator(review.Options{
		Client: model.NewUnconfigured(),
		Clone:  testutil.FakeClone(t, sampleTree),
	})
	grades := grade.NewOrchestrator(grade.Options{
		Client: client,
		Clone:  testutil.FakeClone(t, sampleTree),
	})
	t.Cleanup(reviews.Close)
	t.Cleanup(grades.Close)

	return NewServer(reviews, grades, config.NewStatic(config.Default()))
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/health", "")
	testutil.AssertStatusCode(t, w, http.StatusOK)

	var resp map[string]any
	testutil.DecodeJSON(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v", resp["status"])
	}
}

func TestCreateReviewValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing url", `{}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
		{"ok", `{"repo_url": "https://example.com/a/b"}`, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/review", tt.body)
			testutil.AssertStatusCode(t, w, tt.want)
		})
	}
}

func TestReviewRoundTrip(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/review", `{"repo_url": "https://example.com/a/b"}`)
	testutil.AssertStatusCode(t, w, http.StatusAccepted)

	var created struct {
		ReviewID string `json:"review_id"`
	}
	testutil.DecodeJSON(t, w, &created)
	if created.ReviewID == "" {
		t.Fatal("empty review_id")
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		w = do(t, s, http.MethodGet, "/api/review/"+created.ReviewID, "")
		testutil.AssertStatusCode(t, w, http.StatusOK)
		var snap types.ReviewSnapshot
		testutil.DecodeJSON(t, w, &snap)
		if snap.Status.Terminal() {
			if snap.Status != types.ReviewCompleted {
				t.Fatalf("status = %s, error = %s", snap.Status, snap.Error)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("review did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGetReviewNotFound(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/review/does-not-exist", "")
	testutil.AssertStatusCode(t, w, http.StatusNotFound)

	var resp errorResponse
	testutil.DecodeJSON(t, w, &resp)
	if resp.Kind != "not_found" {
		t.Errorf("kind = %q", resp.Kind)
	}
}

func TestCreateGradeReturnsPending(t *testing.T) {
	s := newTestServer(t)

	body := `{"repo_url": "https://example.com/a/b", "tasks": [{"title": "T", "acceptance_criteria": [{"description": "c"}]}]}`
	w := do(t, s, http.MethodPost, "/api/grade", body)
	testutil.AssertStatusCode(t, w, http.StatusAccepted)

	var created struct {
		GradeID string `json:"grade_id"`
		Status  string `json:"status"`
	}
	testutil.DecodeJSON(t, w, &created)
	if created.GradeID == "" || created.Status != "pending" {
		t.Fatalf("created = %+v", created)
	}
}

func TestGradeEmptyTasksBecomesFailedJob(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/grade", `{"repo_url": "https://example.com/a/b", "tasks": []}`)
	testutil.AssertStatusCode(t, w, http.StatusAccepted)

	var created struct {
		GradeID string `json:"grade_id"`
	}
	testutil.DecodeJSON(t, w, &created)

	deadline := time.Now().Add(5 * time.Second)
	for {
		w = do(t, s, http.MethodGet, "/api/grade/"+created.GradeID, "")
		var snap types.GradeSnapshot
		testutil.DecodeJSON(t, w, &snap)
		if snap.Status.Terminal() {
			if snap.Status != types.GradeFailed {
				t.Fatalf("status = %s", snap.Status)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("grade did not fail")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamEndsAfterTerminalEvent(t *testing.T) {
	s := newTestServer(t)

	srv := httptest.NewServer(s.httpServer.Handler)
	defer srv.Close()

	w := do(t, s, http.MethodPost, "/api/review", `{"repo_url": "https://example.com/a/b"}`)
	var created struct {
		ReviewID string `json:"review_id"`
	}
	testutil.DecodeJSON(t, w, &created)

	resp, err := http.Get(srv.URL + "/api/review/" + created.ReviewID + "/stream")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	// The stream must terminate on its own after the terminal event.
	terminal := ""
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			if strings.Contains(data, `"review_completed"`) || strings.Contains(data, `"review_failed"`) {
				terminal = data
			}
		}
	}
	if terminal == "" {
		t.Fatal("stream ended without a terminal event")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/review/nope/cancel", "")
	testutil.AssertStatusCode(t, w, http.StatusConflict)
}

func TestMethodRouting(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/api/review", "")
	if w.Code == http.StatusOK {
		t.Errorf("GET /api/review should not be routed, got %d", w.Code)
	}
}
