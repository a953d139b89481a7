// Package grade drives the grading pipeline: clone, workspace
// analysis, and per-criterion model evaluation fanned out under
// task- and criterion-level concurrency limits.
package grade

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vibestudy/vibestudy-reviewer/internal/ai"
	"github.com/vibestudy/vibestudy-reviewer/internal/apperr"
	"github.com/vibestudy/vibestudy-reviewer/internal/event"
	"github.com/vibestudy/vibestudy-reviewer/internal/model"
	"github.com/vibestudy/vibestudy-reviewer/internal/scan"
	"github.com/vibestudy/vibestudy-reviewer/internal/types"
	"github.com/vibestudy/vibestudy-reviewer/internal/workspace"
)

const sweepInterval = time.Minute

// CloneFunc acquires a workspace for a repo URL. Overridable in tests.
type CloneFunc func(ctx context.Context, repoURL string) (*workspace.Workspace, error)

// Archiver persists terminal grade snapshots. Optional.
type Archiver interface {
	ArchiveGrade(snap types.GradeSnapshot) error
}

// Options configures an Orchestrator.
type Options struct {
	Client        *model.Client
	TTL           time.Duration
	DefaultConfig types.GradeConfig
	Clone         CloneFunc
	Archiver      Archiver
}

type job struct {
	mu sync.RWMutex

	id           string
	repoURL      string
	curriculumID string
	taskID       string
	status       types.GradeStatus
	tasks        []types.GradeTask
	results      []types.TaskGradeResult
	overallScore float64
	percentage   int
	grade        string
	summary      string
	errMsg       string
	createdAt    time.Time
	completedAt  time.Time

	bus    *event.Bus
	cancel context.CancelFunc
	usage  *model.UsageCounter
}

// Orchestrator owns the grade job registry and pipeline.
type Orchestrator struct {
	mu   sync.RWMutex
	jobs map[string]*job

	client     *model.Client
	ttl        time.Duration
	defaultCfg types.GradeConfig
	clone      CloneFunc
	archiver   Archiver

	stopSweep chan struct{}
	stopOnce  sync.Once
}

// NewOrchestrator creates a grade orchestrator and starts its TTL
// sweeper.
func NewOrchestrator(opts Options) *Orchestrator {
	o := &Orchestrator{
		jobs:       make(map[string]*job),
		client:     opts.Client,
		ttl:        opts.TTL,
		defaultCfg: opts.DefaultConfig.Normalized(),
		clone:      opts.Clone,
		archiver:   opts.Archiver,
		stopSweep:  make(chan struct{}),
	}
	if o.ttl <= 0 {
		o.ttl = time.Hour
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

// Start registers a grade job and launches its background task.
// Never fails: invalid input surfaces as a Failed job.
func (o *Orchestrator) Start(req types.GradeRequest) string {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())

	j := &job{
		id:           id,
		repoURL:      req.RepoURL,
		curriculumID: req.CurriculumID,
		taskID:       req.TaskID,
		status:       types.GradePending,
		tasks:        req.Tasks,
		createdAt:    time.Now(),
		bus:          event.NewBus(event.DefaultBacklog),
		cancel:       cancel,
		usage:        &model.UsageCounter{},
	}

	o.mu.Lock()
	o.jobs[id] = j
	o.mu.Unlock()

	j.bus.Publish(event.New(event.TypeGradeStarted, id, map[string]any{
		"repo_url":       req.RepoURL,
		"task_count":     len(req.Tasks),
		"total_criteria": req.TotalCriteria(),
	}))

	cfg := o.defaultCfg
	if req.Config != nil {
		cfg = req.Config.Normalized()
	}

	go o.run(ctx, j, cfg)
	return id
}

// Get returns a snapshot of the job.
func (o *Orchestrator) Get(id string) (types.GradeSnapshot, error) {
	j := o.lookup(id)
	if j == nil {
		return types.GradeSnapshot{}, apperr.Newf(apperr.KindNotFound, "grade %s not found", id)
	}
	return j.snapshot(), nil
}

// Subscribe returns the event stream for a job.
func (o *Orchestrator) Subscribe(id string) (int, <-chan event.Event, error) {
	j := o.lookup(id)
	if j == nil {
		return 0, nil, apperr.Newf(apperr.KindNotFound, "grade %s not found", id)
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

// Cancel requests cancellation of a running job.
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

func (o *Orchestrator) run(ctx context.Context, j *job, cfg types.GradeConfig) {
	start := time.Now()

	var ws *workspace.Workspace
	defer func() {
		ws.Release()
		if r := recover(); r != nil {
			log.Printf("grade %s panicked: %v", j.id, r)
			o.fail(j, apperr.Newf(apperr.KindInternal, "grading panicked: %v", r))
		}
	}()

	// Empty task lists fail before any cloning happens.
	if len(j.tasks) == 0 {
		o.fail(j, apperr.New(apperr.KindInvalidInput, "tasks cannot be empty"))
		return
	}
	if err := workspace.ValidateURL(j.repoURL); err != nil {
		o.fail(j, err)
		return
	}
	if !o.client.Configured() {
		o.fail(j, apperr.New(apperr.KindModel, "no model provider configured"))
		return
	}

	// Stage: clone.
	j.setStatus(types.GradeCloning)
	j.publish(event.New(event.TypeCloningStarted, j.id, nil))

	cloneStart := time.Now()
	var err error
	ws, err = o.clone(ctx, j.repoURL)
	if err != nil {
		o.fail(j, err)
		return
	}
	j.publish(event.New(event.TypeCloningCompleted, j.id, map[string]any{
		"duration_ms": time.Since(cloneStart).Milliseconds(),
	}))

	if o.cancelled(ctx, j) {
		return
	}

	// Stage: analyze the workspace deterministically.
	j.setStatus(types.GradeAnalyzing)
	j.publish(event.New(event.TypeAnalysisStarted, j.id, nil))

	files, err := scan.Walk(ws.Path, scan.Options{
		MaxFiles:        cfg.MaxFiles,
		MaxCharsPerFile: cfg.MaxCharsPerFile,
	})
	if err != nil {
		o.fail(j, err)
		return
	}
	j.publish(event.New(event.TypeAnalysisCompleted, j.id, map[string]any{
		"file_count":  len(files),
		"total_lines": scan.TotalLines(files),
	}))

	if o.cancelled(ctx, j) {
		return
	}

	// Stage: grade with two-level bounded fan-out.
	j.setStatus(types.GradeGrading)
	results := o.gradeTasks(ctx, j, cfg, files)

	// The workspace is no longer needed once grading has finished;
	// release before the terminal transition.
	ws.Release()

	if o.cancelled(ctx, j) {
		return
	}

	o.complete(j, results, time.Since(start))
}

// gradeTasks fans out over tasks under the task semaphore; each task
// fans out over its criteria under its own criterion semaphore.
// Criterion results keep input order regardless of completion order.
func (o *Orchestrator) gradeTasks(ctx context.Context, j *job, cfg types.GradeConfig, files []scan.File) []types.TaskGradeResult {
	grader := ai.NewCriteriaChecker(cfg.MaxFiles, cfg.MaxCharsPerFile)
	results := make([]types.TaskGradeResult, len(j.tasks))

	taskSem := make(chan struct{}, cfg.MaxParallelTasks)
	var wg sync.WaitGroup

	for i, task := range j.tasks {
		wg.Add(1)
		go func(taskIndex int, task types.GradeTask) {
			defer wg.Done()
			select {
			case taskSem <- struct{}{}:
				defer func() { <-taskSem }()
			case <-ctx.Done():
				results[taskIndex] = failedTaskResult(task, "cancelled")
				return
			}

			j.publish(event.New(event.TypeTaskStarted, j.id, map[string]any{
				"task_index":     taskIndex,
				"task_title":     task.Title,
				"criteria_count": len(task.AcceptanceCriteria),
			}))

			gc := &ai.GradeContext{RepoURL: j.repoURL, Task: task, Files: files}
			criteriaResults := o.gradeCriteria(ctx, j, taskIndex, task, gc, grader, cfg.MaxParallelCriteria)

			score, status, passedCount := scoreTask(criteriaResults)
			results[taskIndex] = types.TaskGradeResult{
				TaskTitle:       task.Title,
				Score:           score,
				Status:          status,
				CriteriaResults: criteriaResults,
				PassedCount:     passedCount,
				TotalCount:      len(task.AcceptanceCriteria),
			}

			j.publish(event.New(event.TypeTaskCompleted, j.id, map[string]any{
				"task_index":   taskIndex,
				"task_title":   task.Title,
				"score":        score,
				"status":       status,
				"passed_count": passedCount,
				"total_count":  len(task.AcceptanceCriteria),
			}))
		}(i, task)
	}
	wg.Wait()

	return results
}

func (o *Orchestrator) gradeCriteria(ctx context.Context, j *job, taskIndex int, task types.GradeTask, gc *ai.GradeContext, grader *ai.CriteriaChecker, maxParallel int) []types.CriterionResult {
	out := make([]types.CriterionResult, len(task.AcceptanceCriteria))
	sem := make(chan struct{}, maxParallel)
	var wg sync.WaitGroup

	for i, criterion := range task.AcceptanceCriteria {
		wg.Add(1)
		go func(criterionIndex int, criterion types.Criterion) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				out[criterionIndex] = failedCriterionResult(criterion, "cancelled")
				return
			}

			result, err := grader.Check(ctx, o.client, j.usage, gc, criterion)
			if err != nil {
				// Model failures never fail the job; they are
				// absorbed into the criterion result.
				log.Printf("grade %s: criterion %q failed: %v", j.id, criterion.Description, err)
				result = failedCriterionResult(criterion, "Error checking criterion: "+err.Error())
			}
			out[criterionIndex] = result

			j.publish(event.New(event.TypeCriterionChecked, j.id, map[string]any{
				"task_index":      taskIndex,
				"criterion_index": criterionIndex,
				"criterion":       criterion.Description,
				"passed":          result.Passed,
				"confidence":      result.Confidence,
			}))
		}(i, criterion)
	}
	wg.Wait()

	return out
}

func failedCriterionResult(criterion types.Criterion, evidence string) types.CriterionResult {
	return types.CriterionResult{
		Criterion:      criterion.Description,
		Passed:         false,
		Confidence:     0,
		Evidence:       evidence,
		CodeReferences: []types.CodeRef{},
		Weight:         criterion.EffectiveWeight(),
	}
}

func failedTaskResult(task types.GradeTask, evidence string) types.TaskGradeResult {
	criteria := make([]types.CriterionResult, len(task.AcceptanceCriteria))
	for i, c := range task.AcceptanceCriteria {
		criteria[i] = failedCriterionResult(c, evidence)
	}
	return types.TaskGradeResult{
		TaskTitle:       task.Title,
		Score:           0,
		Status:          types.TaskFailed,
		CriteriaResults: criteria,
		PassedCount:     0,
		TotalCount:      len(task.AcceptanceCriteria),
	}
}

// scoreTask computes the weighted task score and its status bucket:
// Passed at >= 0.9, Failed below 0.4, Partial between.
func scoreTask(results []types.CriterionResult) (float64, types.TaskStatus, int) {
	if len(results) == 0 {
		return 0, types.TaskFailed, 0
	}

	var totalWeight, passedWeight float64
	passedCount := 0
	for _, r := range results {
		totalWeight += r.Weight
		if r.Passed {
			passedWeight += r.Weight
			passedCount++
		}
	}

	score := 0.0
	if totalWeight > 0 {
		score = passedWeight / totalWeight
	}

	status := types.TaskPartial
	switch {
	case score >= 0.9:
		status = types.TaskPassed
	case score < 0.4:
		status = types.TaskFailed
	}

	return score, status, passedCount
}

// finalScore aggregates the overall result: the unweighted mean of
// task scores, the rounded percentage, the Korean tier label, and the
// summary line.
func finalScore(results []types.TaskGradeResult) (overall float64, percentage int, tier, summary string) {
	if len(results) == 0 {
		return 0, 0, "N/A", "No tasks to grade"
	}

	for _, t := range results {
		overall += t.Score
	}
	overall /= float64(len(results))
	percentage = int(math.Round(overall * 100))
	tier = gradeTier(percentage)

	passedTasks := 0
	passedCriteria, totalCriteria := 0, 0
	for _, t := range results {
		if t.Status == types.TaskPassed {
			passedTasks++
		}
		passedCriteria += t.PassedCount
		totalCriteria += t.TotalCount
	}

	summary = fmt.Sprintf("전체 점수: %d점 (%s) - 과제 %d/%d 완료, 기준 %d/%d 충족",
		percentage, tier, passedTasks, len(results), passedCriteria, totalCriteria)
	return overall, percentage, tier, summary
}

// gradeTier buckets a percentage into the Korean tier labels.
func gradeTier(percentage int) string {
	switch {
	case percentage >= 90:
		return "우수"
	case percentage >= 75:
		return "양호"
	case percentage >= 60:
		return "보통"
	case percentage >= 40:
		return "미흡"
	default:
		return "불합격"
	}
}

func (o *Orchestrator) cancelled(ctx context.Context, j *job) bool {
	if ctx.Err() == nil {
		return false
	}
	o.fail(j, apperr.New(apperr.KindCancelled, "cancelled"))
	return true
}

func (o *Orchestrator) complete(j *job, results []types.TaskGradeResult, elapsed time.Duration) {
	overall, percentage, tier, summary := finalScore(results)

	j.mu.Lock()
	j.status = types.GradeCompleted
	j.results = results
	j.overallScore = overall
	j.percentage = percentage
	j.grade = tier
	j.summary = summary
	j.completedAt = time.Now()
	j.mu.Unlock()

	j.bus.PublishTerminal(event.New(event.TypeGradeCompleted, j.id, map[string]any{
		"overall_score": overall,
		"percentage":    percentage,
		"grade":         tier,
		"summary":       summary,
		"duration_ms":   elapsed.Milliseconds(),
		"token_usage":   j.usage.Snapshot(),
	}))

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
	j.status = types.GradeFailed
	j.errMsg = apperr.MessageOf(err)
	j.completedAt = time.Now()
	j.mu.Unlock()

	j.bus.PublishTerminal(event.New(event.TypeGradeFailed, j.id, event.Failed{
		Kind:  string(apperr.KindOf(err)),
		Error: apperr.MessageOf(err),
	}))

	o.archive(j)
}

func (o *Orchestrator) archive(j *job) {
	if o.archiver == nil {
		return
	}
	if err := o.archiver.ArchiveGrade(j.snapshot()); err != nil {
		log.Printf("grade %s: archive failed: %v", j.id, err)
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

func (j *job) setStatus(s types.GradeStatus) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

func (j *job) publish(ev event.Event) {
	j.bus.Publish(ev)
}

func (j *job) snapshot() types.GradeSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()

	snap := types.GradeSnapshot{
		ID:           j.id,
		RepoURL:      j.repoURL,
		CurriculumID: j.curriculumID,
		TaskID:       j.taskID,
		Status:       j.status,
		OverallScore: j.overallScore,
		Percentage:   j.percentage,
		Grade:        j.grade,
		Tasks:        append([]types.TaskGradeResult(nil), j.results...),
		Summary:      j.summary,
		Error:        j.errMsg,
		CreatedAt:    j.createdAt.UnixMilli(),
	}
	if snap.Tasks == nil {
		snap.Tasks = []types.TaskGradeResult{}
	}
	if !j.completedAt.IsZero() {
		snap.CompletedAt = j.completedAt.UnixMilli()
	}
	return snap
}
