// Package event provides the per-job broadcast bus used to stream
// progress to subscribers.
package event

import (
	"encoding/json"
	"time"
)

// Wire event type names.
const (
	TypeReviewStarted       = "review_started"
	TypeCheckStarted        = "check_started"
	TypeCheckCompleted      = "check_completed"
	TypeValidationStarted   = "validation_started"
	TypeValidationCompleted = "validation_completed"
	TypeReviewerStarted     = "reviewer_started"
	TypeReviewerCompleted   = "reviewer_completed"
	TypeReviewCompleted     = "review_completed"
	TypeReviewFailed        = "review_failed"

	TypeGradeStarted      = "grade_started"
	TypeCloningStarted    = "cloning_started"
	TypeCloningCompleted  = "cloning_completed"
	TypeAnalysisStarted   = "analysis_started"
	TypeAnalysisCompleted = "analysis_completed"
	TypeTaskStarted       = "task_started"
	TypeCriterionChecked  = "criterion_checked"
	TypeTaskCompleted     = "task_completed"
	TypeGradeCompleted    = "grade_completed"
	TypeGradeFailed       = "grade_failed"

	// TypeEventsDropped marks a gap in a slow subscriber's stream.
	TypeEventsDropped = "events_dropped"
)

// Event is one progress event on a job's stream. Data carries the
// variant-specific payload; its fields are flattened into the JSON
// object next to type/timestamp_ms/job_id.
type Event struct {
	Type        string
	TimestampMS int64
	JobID       string
	Data        any
}

// New creates an event stamped with the current time.
func New(typ, jobID string, data any) Event {
	return Event{
		Type:        typ,
		TimestampMS: time.Now().UnixMilli(),
		JobID:       jobID,
		Data:        data,
	}
}

// MarshalJSON flattens the payload fields into the envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"type":         e.Type,
		"timestamp_ms": e.TimestampMS,
		"job_id":       e.JobID,
	}
	if e.Data != nil {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		for k, v := range fields {
			if _, reserved := out[k]; !reserved {
				out[k] = v
			}
		}
	}
	return json.Marshal(out)
}

// Terminal reports whether this event ends a job's stream.
func (e Event) Terminal() bool {
	switch e.Type {
	case TypeReviewCompleted, TypeReviewFailed, TypeGradeCompleted, TypeGradeFailed:
		return true
	}
	return false
}

// Dropped is the payload of an events_dropped lag marker.
type Dropped struct {
	Dropped int `json:"dropped"`
}

// Failed is the payload of review_failed/grade_failed events.
type Failed struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}
