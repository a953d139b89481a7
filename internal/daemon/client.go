package daemon

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vibestudy/vibestudy-reviewer/internal/types"
)

// Client talks to a running daemon over HTTP. Used by the CLI.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the daemon at baseURL
// (e.g. "http://127.0.0.1:8080").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Health checks daemon liveness.
func (c *Client) Health() error {
	var out map[string]any
	return c.getJSON("/api/health", &out)
}

// StartReview starts a review job and returns its id.
func (c *Client) StartReview(repoURL string) (string, error) {
	var out struct {
		ReviewID string `json:"review_id"`
	}
	err := c.postJSON("/api/review", types.ReviewRequest{RepoURL: repoURL}, &out)
	return out.ReviewID, err
}

// GetReview fetches a review snapshot.
func (c *Client) GetReview(id string) (types.ReviewSnapshot, error) {
	var out types.ReviewSnapshot
	err := c.getJSON("/api/review/"+id, &out)
	return out, err
}

// CancelReview cancels a running review job.
func (c *Client) CancelReview(id string) error {
	return c.postJSON("/api/review/"+id+"/cancel", nil, nil)
}

// StartGrade starts a grade job and returns its id.
func (c *Client) StartGrade(req types.GradeRequest) (string, error) {
	var out struct {
		GradeID string `json:"grade_id"`
	}
	err := c.postJSON("/api/grade", req, &out)
	return out.GradeID, err
}

// GetGrade fetches a grade snapshot.
func (c *Client) GetGrade(id string) (types.GradeSnapshot, error) {
	var out types.GradeSnapshot
	err := c.getJSON("/api/grade/"+id, &out)
	return out, err
}

// CancelGrade cancels a running grade job.
func (c *Client) CancelGrade(id string) error {
	return c.postJSON("/api/grade/"+id+"/cancel", nil, nil)
}

// StreamReview streams review events, invoking fn with each raw SSE
// data payload until the stream ends.
func (c *Client) StreamReview(id string, fn func(data []byte)) error {
	return c.stream("/api/review/"+id+"/stream", fn)
}

// StreamGrade streams grade events.
func (c *Client) StreamGrade(id string, fn func(data []byte)) error {
	return c.stream("/api/grade/"+id+"/stream", fn)
}

func (c *Client) stream(path string, fn func(data []byte)) error {
	// No client timeout: streams live until the terminal event.
	client := &http.Client{}
	resp, err := client.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			fn([]byte(data))
		}
	}
	return scanner.Err()
}

func (c *Client) getJSON(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *Client) postJSON(path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", reader)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e errorResponse
	if json.Unmarshal(slurp, &e) == nil && e.Error != "" {
		return fmt.Errorf("%s (%s)", e.Error, e.Kind)
	}
	return fmt.Errorf("daemon error (%s): %s", resp.Status, strings.TrimSpace(string(slurp)))
}
