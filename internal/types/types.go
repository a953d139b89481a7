// Package types holds the data model shared by the review and grade
// pipelines and the HTTP surface.
package types

// Severity classifies a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a machine-checkable finding about one file/line
// produced by a rule-based checker. File is always relative to the
// workspace root with forward slashes; Line is 1-based.
type Diagnostic struct {
	Checker    string   `json:"checker"`
	Severity   Severity `json:"severity"`
	File       string   `json:"file"`
	Line       int      `json:"line"`
	Column     int      `json:"column,omitempty"`
	Message    string   `json:"message"`
	Rule       string   `json:"rule"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Priority ranks a suggestion.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Suggestion is a free-form recommendation produced by an AI reviewer.
type Suggestion struct {
	Reviewer    string   `json:"reviewer"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	File        string   `json:"file,omitempty"`
	Line        int      `json:"line,omitempty"`
	Priority    Priority `json:"priority"`
	Rationale   string   `json:"rationale,omitempty"`
}

// ReviewStatus is the lifecycle state of a review job.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewCloning   ReviewStatus = "cloning"
	ReviewRunning   ReviewStatus = "running"
	ReviewCompleted ReviewStatus = "completed"
	ReviewFailed    ReviewStatus = "failed"
)

// Terminal reports whether the status is final.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewCompleted || s == ReviewFailed
}

// GradeStatus is the lifecycle state of a grade job.
type GradeStatus string

const (
	GradePending   GradeStatus = "pending"
	GradeCloning   GradeStatus = "cloning"
	GradeAnalyzing GradeStatus = "analyzing"
	GradeGrading   GradeStatus = "grading"
	GradeCompleted GradeStatus = "completed"
	GradeFailed    GradeStatus = "failed"
)

// Terminal reports whether the status is final.
func (s GradeStatus) Terminal() bool {
	return s == GradeCompleted || s == GradeFailed
}

// TaskStatus summarizes how a single graded task fared.
type TaskStatus string

const (
	TaskPassed  TaskStatus = "passed"
	TaskPartial TaskStatus = "partial"
	TaskFailed  TaskStatus = "failed"
)

// Criterion is one atomic acceptance statement for a task.
type Criterion struct {
	ID          string  `json:"id,omitempty"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight,omitempty"` // defaults to 1.0
}

// EffectiveWeight returns the criterion weight, defaulting to 1.0
// when unset or non-positive.
func (c Criterion) EffectiveWeight() float64 {
	if c.Weight > 0 {
		return c.Weight
	}
	return 1.0
}

// GradeTask describes one task to grade.
type GradeTask struct {
	Title              string      `json:"title"`
	Description        string      `json:"description,omitempty"`
	AcceptanceCriteria []Criterion `json:"acceptance_criteria"`
	EstimatedMinutes   int         `json:"estimated_minutes,omitempty"`
}

// CodeRef points at a span of code cited as evidence. File is
// workspace-relative with forward slashes; LineStart <= LineEnd.
type CodeRef struct {
	File      string `json:"file"`
	LineStart int    `json:"line_start"`
	LineEnd   int    `json:"line_end"`
	Snippet   string `json:"snippet,omitempty"`
}

// CriterionResult is the outcome of checking one criterion.
type CriterionResult struct {
	Criterion      string    `json:"criterion"`
	Passed         bool      `json:"passed"`
	Confidence     float64   `json:"confidence"`
	Evidence       string    `json:"evidence"`
	CodeReferences []CodeRef `json:"code_references"`
	Weight         float64   `json:"weight"`
}

// TaskGradeResult aggregates the criterion results of one task.
type TaskGradeResult struct {
	TaskTitle       string            `json:"task_title"`
	Score           float64           `json:"score"`
	Status          TaskStatus        `json:"status"`
	CriteriaResults []CriterionResult `json:"criteria_results"`
	PassedCount     int               `json:"passed_count"`
	TotalCount      int               `json:"total_count"`
}

// GradeConfig bounds the analysis and grading fan-out for one grade
// request.
type GradeConfig struct {
	MaxFiles            int `json:"max_files,omitempty" toml:"max_files"`
	MaxCharsPerFile     int `json:"max_chars_per_file,omitempty" toml:"max_chars_per_file"`
	MaxParallelTasks    int `json:"max_parallel_tasks,omitempty" toml:"max_parallel_tasks"`
	MaxParallelCriteria int `json:"max_parallel_criteria,omitempty" toml:"max_parallel_criteria"`
}

// DefaultGradeConfig returns the documented defaults.
func DefaultGradeConfig() GradeConfig {
	return GradeConfig{
		MaxFiles:            50,
		MaxCharsPerFile:     4000,
		MaxParallelTasks:    3,
		MaxParallelCriteria: 5,
	}
}

// Normalized fills zero fields with defaults.
func (c GradeConfig) Normalized() GradeConfig {
	d := DefaultGradeConfig()
	if c.MaxFiles <= 0 {
		c.MaxFiles = d.MaxFiles
	}
	if c.MaxCharsPerFile <= 0 {
		c.MaxCharsPerFile = d.MaxCharsPerFile
	}
	if c.MaxParallelTasks <= 0 {
		c.MaxParallelTasks = d.MaxParallelTasks
	}
	if c.MaxParallelCriteria <= 0 {
		c.MaxParallelCriteria = d.MaxParallelCriteria
	}
	return c
}

// ReviewRequest starts a review job.
type ReviewRequest struct {
	RepoURL string `json:"repo_url"`
}

// GradeRequest starts a grade job.
type GradeRequest struct {
	RepoURL      string       `json:"repo_url"`
	Tasks        []GradeTask  `json:"tasks"`
	Config       *GradeConfig `json:"config,omitempty"`
	CurriculumID string       `json:"curriculum_id,omitempty"`
	TaskID       string       `json:"task_id,omitempty"`
}

// TotalCriteria returns the number of criteria across all tasks.
func (r GradeRequest) TotalCriteria() int {
	n := 0
	for _, t := range r.Tasks {
		n += len(t.AcceptanceCriteria)
	}
	return n
}

// SeverityCounts breaks diagnostics down by severity.
type SeverityCounts struct {
	Error   int `json:"error"`
	Warning int `json:"warning"`
	Info    int `json:"info"`
}

// CountSeverities tallies diagnostics by severity.
func CountSeverities(diags []Diagnostic) SeverityCounts {
	var c SeverityCounts
	for _, d := range diags {
		switch d.Severity {
		case SeverityError:
			c.Error++
		case SeverityWarning:
			c.Warning++
		default:
			c.Info++
		}
	}
	return c
}

// ReviewSummary is attached to the review_completed event.
type ReviewSummary struct {
	TotalDiagnostics int            `json:"total_diagnostics"`
	BySeverity       SeverityCounts `json:"by_severity"`
	DurationMS       int64          `json:"duration_ms"`
}

// TokenUsage is the per-job token accounting exposed on terminal
// events. Estimated when the provider does not report exact counts.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// ReviewSnapshot is the externally visible state of a review job.
type ReviewSnapshot struct {
	ID          string       `json:"id"`
	RepoURL     string       `json:"repo_url"`
	Status      ReviewStatus `json:"status"`
	Results     []Diagnostic `json:"results"`
	Suggestions []Suggestion `json:"suggestions"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   int64        `json:"created_at"`
	CompletedAt int64        `json:"completed_at,omitempty"`
}

// GradeSnapshot is the externally visible state of a grade job.
type GradeSnapshot struct {
	ID           string            `json:"id"`
	RepoURL      string            `json:"repo_url"`
	CurriculumID string            `json:"curriculum_id,omitempty"`
	TaskID       string            `json:"task_id,omitempty"`
	Status       GradeStatus       `json:"status"`
	OverallScore float64           `json:"overall_score"`
	Percentage   int               `json:"percentage"`
	Grade        string            `json:"grade"`
	Tasks        []TaskGradeResult `json:"tasks"`
	Summary      string            `json:"summary"`
	Error        string            `json:"error,omitempty"`
	CreatedAt    int64             `json:"created_at"`
	CompletedAt  int64             `json:"completed_at,omitempty"`
}
