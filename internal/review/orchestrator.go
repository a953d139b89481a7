// Package review drives the multi-stage review pipeline: clone,
// rule-based checkers, model-assisted validation, and reviewer
// suggestions, streaming progress on a per-job event bus.
package review

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vibestudy/vibestudy-reviewer/internal/ai"
	"github.com/vibestudy/vibestudy-reviewer/internal/apperr"
	"github.com/vibestudy/vibestudy-reviewer/internal/checker"
	"github.com/vibestudy/vibestudy-reviewer/internal/event"
	"github.com/vibestudy/vibestudy-reviewer/internal/model"
	"github.com/vibestudy/vibestudy-reviewer/internal/scan"
	"github.com/vibestudy/vibestudy-reviewer/internal/types"
	"github.com/vibestudy/vibestudy-reviewer/internal/workspace"
)

const (
	sweepInterval = time.Minute

	// Review code contexts are capped tighter than grading.
	contextMaxFiles = 20
	contextMaxChars = 4000
)

// CloneFunc acquires a workspace for a repo URL. Overridable in tests.
type CloneFunc func(ctx context.Context, repoURL string) (*workspace.Workspace, error)

// Archiver persists terminal job snapshots. Optional.
type Archiver interface {
	ArchiveReview(snap types.ReviewSnapshot) error
}

// Options configures an Orchestrator.
type Options struct {
	Client     *model.Client
	TTL        time.Duration
	MaxChecks  int // bounded checker parallelism, default 4
	Checkers   []checker.Checker
	Validators []ai.Validator
	Reviewers  []ai.Reviewer
	Clone      CloneFunc
	Archiver   Archiver
}

// job is one review job record. Fields are mutated only by the owning
// background task; the per-record lock covers reader snapshots.
type job struct {
	mu sync.RWMutex

	id          string
	repoURL     string
	status      types.ReviewStatus
	diagnostics []types.Diagnostic
	suggestions []types.Suggestion
	warnings    []string
	errMsg      string
	createdAt   time.Time
	completedAt time.Time

	bus    *event.Bus
	cancel context.CancelFunc
	usage  *model.UsageCounter
}

// Orchestrator owns the review job registry and pipeline.
type Orchestrator struct {
	mu   sync.RWMutex
	jobs map[string]*job

	client     *model.Client
	ttl        time.Duration
	maxChecks  int
	checkers   []checker.Checker
	validators []ai.Validator
	reviewers  []ai.Reviewer
	clone      CloneFunc
	archiver   Archiver

	stopSweep chan struct{}
	stopOnce  sync.Once
}

// NewOrchestrator creates a review orchestrator and starts its TTL
// sweeper.
func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		jobs:       make(map[string]*job),
		client:     opts.Client,
		ttl:        opts.TTL,
		maxChecks:  opts.MaxChecks,
		checkers:   opts.Checkers,
		validators: opts.Validators,
		reviewers:  opts.Reviewers,
		clone:      opts.Clone,
		archiver:   opts.Archiver,
		stopSweep:  make(chan struct{}),
	}
	if o.ttl <= 0 {
		o.ttl = time.Hour
	}
	if o.maxChecks <= 0 {
		o.maxChecks = 4
	}
	if o.checkers == nil {
		o.checkers = checker.Default()
	}
	if o.validators == nil {
		o.validators = ai.DefaultValidators()
	}
	if o.reviewers == nil {
		o.reviewers = ai.DefaultReviewers()
	}
	if o.clone == nil {
		o.clone = workspace.Clone
	}
	if o.client == nil {
		o.client = model.NewUnconfigured()
	}

	go o.sweepLoop()
	return o
}

// Close stops the TTL sweeper. Running jobs are left to finish.
func (o *Orchestrator) Close() {
	o.stopOnce.Do(func() { close(o.stopSweep) })
}

// Start registers a review job and launches its background task.
// Never fails: input validation errors surface as a Failed job.
func (o *Orchestrator) Start(repoURL string) string {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	j := &job{
		id:        id,
		repoURL:   repoURL,
		status:    types.ReviewPending,
		createdAt: time.Now(),
		bus:       event.NewBus(event.DefaultBacklog),
		cancel:    cancel,
		usage:     &model.UsageCounter{},
	}

	o.mu.Lock()
	o.jobs[id] = j
	o.mu.Unlock()

	j.bus.Publish(event.New(event.TypeReviewStarted, id, map[string]any{
		"repo_url": repoURL,
	}))

	go o.run(ctx, j)
	return id
}

// Get returns a snapshot of the job.
func (o *Orchestrator) Get(id string) (types.ReviewSnapshot, error) {
	j := o.lookup(id)
	if j == nil {
		return types.ReviewSnapshot{}, apperr.Newf(apperr.KindNotFound, "review %s not found", id)
	}
	return j.snapshot(), nil
}

// Subscribe returns the event stream for a job. The stream is finite:
// it ends after the terminal event.
func (o *Orchestrator) Subscribe(id string) (int, <-chan event.Event, error) {
	j := o.lookup(id)
	if j == nil {
		return 0, nil, apperr.Newf(apperr.KindNotFound, "review %s not found", id)
	}
	subID, ch := j.bus.Subscribe()
	return subID, ch, nil
}

// Unsubscribe detaches a subscriber returned by Subscribe.
func (o *Orchestrator) Unsubscribe(id string, subID int) {
	if j := o.lookup(id); j != nil {
		j.bus.Unsubscribe(subID)
	}
}

// Cancel requests cancellation of a running job. Returns false when
// the job does not exist or is already terminal.
func (o *Orchestrator) Cancel(id string) bool {
	j := o.lookup(id)
	if j == nil {
		return false
	}
	j.mu.RLock()
	terminal := j.status.Terminal()
	j.mu.RUnlock()
	if terminal {
		return false
	}
	j.cancel()
	return true
}

func (o *Orchestrator) lookup(id string) *job {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.jobs[id]
}

// run executes the pipeline stages for one job. The workspace is
// released on every exit path, including panics, before the job
// reaches a terminal status.
func (o *Orchestrator) run(ctx context.Context, j *job) {
	start := time.Now()

	var ws *workspace.Workspace
	defer func() {
		ws.Release()
		if r := recover(); r != nil {
			log.Printf("review %s panicked: %v", j.id, r)
			o.fail(j, apperr.Newf(apperr.KindInternal, "review panicked: %v", r))
		}
	}()

	// Stage: validate and clone.
	j.setStatus(types.ReviewCloning)
	if err := workspace.ValidateURL(j.repoURL); err != nil {
		o.fail(j, err)
		return
	}
	var err error
	ws, err = o.clone(ctx, j.repoURL)
	if err != nil {
		o.fail(j, err)
		return
	}

	if o.cancelled(ctx, j) {
		return
	}

	// Stage: rule-based checkers with bounded parallelism.
	j.setStatus(types.ReviewRunning)
	diagnostics := o.runCheckers(ctx, j, ws.Path)

	if o.cancelled(ctx, j) {
		return
	}

	// Stages: model-assisted validation and review, only with a
	// configured backend. Failures degrade to warnings.
	var suggestions []types.Suggestion
	if o.client.Configured() {
		diagnostics = o.runValidators(ctx, j, diagnostics)
		if o.cancelled(ctx, j) {
			return
		}
		suggestions = o.runReviewers(ctx, j, ws.Path, diagnostics)
		if o.cancelled(ctx, j) {
			return
		}
	}

	// Release before the terminal transition; the snapshot must never
	// reference a live workspace.
	ws.Release()

	o.complete(j, diagnostics, suggestions, time.Since(start))
}

// runCheckers runs all registered checkers under a semaphore of
// maxChecks, preserving registration order in the aggregate. A failed
// checker contributes a single checker_failed diagnostic.
func (o *Orchestrator) runCheckers(ctx context.Context, j *job, root string) []types.Diagnostic {
	results := make([][]types.Diagnostic, len(o.checkers))
	sem := make(chan struct{}, o.maxChecks)
	var wg sync.WaitGroup

	for i, c := range o.checkers {
		wg.Add(1)
		go func(i int, c checker.Checker) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			if ctx.Err() != nil {
				return
			}

			j.publish(event.New(event.TypeCheckStarted, j.id, map[string]any{
				"checker": c.Name(),
			}))

			checkStart := time.Now()
			diags, err := c.Run(root)
			if err != nil {
				log.Printf("review %s: checker %s failed: %v", j.id, c.Name(), err)
				diags = []types.Diagnostic{{
					Checker:  c.Name(),
					Severity: types.SeverityInfo,
					File:     ".",
					Line:     1,
					Message:  fmt.Sprintf("checker failed: %v", err),
					Rule:     "checker_failed",
				}}
			}
			results[i] = diags

			j.publish(event.New(event.TypeCheckCompleted, j.id, map[string]any{
				"checker":     c.Name(),
				"diagnostics": diags,
				"duration_ms": time.Since(checkStart).Milliseconds(),
			}))
		}(i, c)
	}
	wg.Wait()

	var all []types.Diagnostic
	for _, r := range results {
		all = append(all, r...)
	}
	return all
}

// runValidators applies validators in registration order, each
// transforming the current list. A validator failure passes the list
// through unchanged and is recorded as a warning.
func (o *Orchestrator) runValidators(ctx context.Context, j *job, diags []types.Diagnostic) []types.Diagnostic {
	for _, v := range o.validators {
		if ctx.Err() != nil {
			return diags
		}
		j.publish(event.New(event.TypeValidationStarted, j.id, map[string]any{
			"validator": v.Name(),
		}))

		validated, err := v.Validate(ctx, o.client, j.usage, diags)
		if err != nil {
			log.Printf("review %s: validator %s failed: %v", j.id, v.Name(), err)
			j.addWarning(fmt.Sprintf("validator %s failed: %v", v.Name(), err))
			continue
		}
		diags = validated

		j.publish(event.New(event.TypeValidationCompleted, j.id, map[string]any{
			"validator":   v.Name(),
			"diagnostics": diags,
		}))
	}
	return diags
}

// runReviewers builds the code context and runs reviewers in
// registration order. Output is small and order-dependent for
// display, so reviewers never run in parallel.
func (o *Orchestrator) runReviewers(ctx context.Context, j *job, root string, diags []types.Diagnostic) []types.Suggestion {
	files, err := scan.Walk(root, scan.Options{MaxFiles: contextMaxFiles, MaxCharsPerFile: contextMaxChars})
	if err != nil {
		log.Printf("review %s: code context scan failed: %v", j.id, err)
		j.addWarning(fmt.Sprintf("code context scan failed: %v", err))
		return nil
	}
	code := &ai.CodeContext{RepoURL: j.repoURL, Files: files, Diagnostics: diags}

	var all []types.Suggestion
	for _, r := range o.reviewers {
		if ctx.Err() != nil {
			return all
		}
		j.publish(event.New(event.TypeReviewerStarted, j.id, map[string]any{
			"reviewer": r.Name(),
		}))

		suggestions, err := r.Review(ctx, o.client, j.usage, code)
		if err != nil {
			log.Printf("review %s: reviewer %s failed: %v", j.id, r.Name(), err)
			j.addWarning(fmt.Sprintf("reviewer %s failed: %v", r.Name(), err))
			continue
		}
		all = append(all, suggestions...)

		j.publish(event.New(event.TypeReviewerCompleted, j.id, map[string]any{
			"reviewer":    r.Name(),
			"suggestions": suggestions,
		}))
	}
	return all
}

// cancelled fails the job with "cancelled" if its context is done.
func (o *Orchestrator) cancelled(ctx context.Context, j *job) bool {
	if ctx.Err() == nil {
		return false
	}
	o.fail(j, apperr.New(apperr.KindCancelled, "cancelled"))
	return true
}

func (o *Orchestrator) complete(j *job, diags []types.Diagnostic, suggestions []types.Suggestion, elapsed time.Duration) {
	j.mu.Lock()
	j.status = types.ReviewCompleted
	j.diagnostics = diags
	j.suggestions = suggestions
	j.completedAt = time.Now()
	warnings := append([]string(nil), j.warnings...)
	j.mu.Unlock()

	payload := map[string]any{
		"summary": types.ReviewSummary{
			TotalDiagnostics: len(diags),
			BySeverity:       types.CountSeverities(diags),
			DurationMS:       elapsed.Milliseconds(),
		},
		"token_usage": j.usage.Snapshot(),
	}
	if len(warnings) > 0 {
		payload["warnings"] = warnings
	}
	j.bus.PublishTerminal(event.New(event.TypeReviewCompleted, j.id, payload))

	o.archive(j)
}

func (o *Orchestrator) fail(j *job, err error) {
	if errors.Is(err, context.Canceled) {
		err = apperr.New(apperr.KindCancelled, "cancelled")
	}
	j.mu.Lock()
	if j.status.Terminal() {
		j.mu.Unlock()
		return
	}
	j.status = types.ReviewFailed
	j.errMsg = apperr.MessageOf(err)
	j.completedAt = time.Now()
	j.mu.Unlock()

	j.bus.PublishTerminal(event.New(event.TypeReviewFailed, j.id, event.Failed{
		Kind:  string(apperr.KindOf(err)),
		Error: apperr.MessageOf(err),
	}))

	o.archive(j)
}

func (o *Orchestrator) archive(j *job) {
	if o.archiver == nil {
		return
	}
	if err := o.archiver.ArchiveReview(j.snapshot()); err != nil {
		log.Printf("review %s: archive failed: %v", j.id, err)
	}
}

func (o *Orchestrator) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.stopSweep:
			return
		case <-ticker.C:
			o.sweep(time.Now())
		}
	}
}

// sweep removes jobs whose completion is older than the TTL.
func (o *Orchestrator) sweep(now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, j := range o.jobs {
		j.mu.RLock()
		expired := !j.completedAt.IsZero() && now.After(j.completedAt.Add(o.ttl))
		j.mu.RUnlock()
		if expired {
			delete(o.jobs, id)
		}
	}
}

func (j *job) setStatus(s types.ReviewStatus) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

func (j *job) addWarning(w string) {
	j.mu.Lock()
	j.warnings = append(j.warnings, w)
	j.mu.Unlock()
}

func (j *job) publish(ev event.Event) {
	j.bus.Publish(ev)
}

func (j *job) snapshot() types.ReviewSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	snap := types.ReviewSnapshot{
		ID:          j.id,
		RepoURL:     j.repoURL,
		Status:      j.status,
		Results:     append([]types.Diagnostic(nil), j.diagnostics...),
		Suggestions: append([]types.Suggestion(nil), j.suggestions...),
		Error:       j.errMsg,
		CreatedAt:   j.createdAt.UnixMilli(),
	}
	if snap.Results == nil {
		snap.Results = []types.Diagnostic{}
	}
	if snap.Suggestions == nil {
		snap.Suggestions = []types.Suggestion{}
	}
	if !j.completedAt.IsZero() {
		snap.CompletedAt = j.completedAt.UnixMilli()
	}
	return snap
}
