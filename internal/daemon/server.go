// Package daemon exposes the review and grade orchestrators over
// HTTP, including the SSE progress streams, and provides the client
// used by the CLI.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/vibestudy/vibestudy-reviewer/internal/apperr"
	"github.com/vibestudy/vibestudy-reviewer/internal/config"
	"github.com/vibestudy/vibestudy-reviewer/internal/event"
	"github.com/vibestudy/vibestudy-reviewer/internal/grade"
	"github.com/vibestudy/vibestudy-reviewer/internal/review"
	"github.com/vibestudy/vibestudy-reviewer/internal/types"
	"github.com/vibestudy/vibestudy-reviewer/internal/version"
)

const (
	shutdownTimeout  = 30 * time.Second
	streamPingPeriod = 15 * time.Second
)

// Server is the HTTP API server for the daemon.
type Server struct {
	reviews    *review.Orchestrator
	grades     *grade.Orchestrator
	cfg        config.Getter
	httpServer *http.Server
	startTime  time.Time
}

// NewServer creates a daemon server over the given orchestrators.
func NewServer(reviews *review.Orchestrator, grades *grade.Orchestrator, cfg config.Getter) *Server {
	s := &Server{
		reviews:   reviews,
		grades:    grades,
		cfg:       cfg,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/review", s.handleCreateReview)
	mux.HandleFunc("GET /api/review/{id}", s.handleGetReview)
	mux.HandleFunc("GET /api/review/{id}/stream", s.handleStreamReview)
	mux.HandleFunc("POST /api/review/{id}/cancel", s.handleCancelReview)
	mux.HandleFunc("POST /api/grade", s.handleCreateGrade)
	mux.HandleFunc("GET /api/grade/{id}", s.handleGetGrade)
	mux.HandleFunc("GET /api/grade/{id}/stream", s.handleStreamGrade)
	mux.HandleFunc("POST /api/grade/{id}/cancel", s.handleCancelGrade)

	s.httpServer = &http.Server{
		Addr:    cfg.Config().Addr(),
		Handler: mux,
	}
	return s
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	log.Printf("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server and orchestrators.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.reviews.Close()
	s.grades.Close()
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, status int, kind apperr.Kind, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: string(kind)})
}

func writeAppError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindInvalidInput:
		status = http.StatusBadRequest
	}
	writeError(w, status, kind, apperr.MessageOf(err))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"version":        version.Version,
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req types.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.KindInvalidInput, fmt.Sprintf("decode request: %v", err))
		return
	}
	if req.RepoURL == "" {
		writeError(w, http.StatusBadRequest, apperr.KindInvalidInput, "repo_url is required")
		return
	}

	id := s.reviews.Start(req.RepoURL)
	writeJSON(w, http.StatusAccepted, map[string]string{"review_id": id})
}

func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	snap, err := s.reviews.Get(r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStreamReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	subID, ch, err := s.reviews.Subscribe(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	defer s.reviews.Unsubscribe(id, subID)
	streamEvents(w, r, ch)
}

func (s *Server) handleCancelReview(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.reviews.Cancel(id) {
		writeError(w, http.StatusConflict, apperr.KindInvalidInput, "review not running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) handleCreateGrade(w http.ResponseWriter, r *http.Request) {
	var req types.GradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.KindInvalidInput, fmt.Sprintf("decode request: %v", err))
		return
	}
	if req.RepoURL == "" {
		writeError(w, http.StatusBadRequest, apperr.KindInvalidInput, "repo_url is required")
		return
	}

	id := s.grades.Start(req)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"grade_id": id,
		"status":   string(types.GradePending),
	})
}

func (s *Server) handleGetGrade(w http.ResponseWriter, r *http.Request) {
	snap, err := s.grades.Get(r.PathValue("id"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStreamGrade(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	subID, ch, err := s.grades.Subscribe(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	defer s.grades.Unsubscribe(id, subID)
	streamEvents(w, r, ch)
}

func (s *Server) handleCancelGrade(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.grades.Cancel(id) {
		writeError(w, http.StatusConflict, apperr.KindInvalidInput, "grade not running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// streamEvents writes the job's event stream as SSE until the stream
// ends with the terminal event or the client disconnects. Periodic
// comment lines keep idle connections alive.
func streamEvents(w http.ResponseWriter, r *http.Request, ch <-chan event.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, apperr.KindInternal, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("marshal event: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
			flusher.Flush()
		}
	}
}
