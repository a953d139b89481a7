package types

import (
	"encoding/json"
	"testing"
)

func TestEffectiveWeight(t *testing.T) {
	tests := []struct {
		weight float64
		want   float64
	}{
		{0, 1.0},
		{-1, 1.0},
		{2.5, 2.5},
	}
	for _, tt := range tests {
		c := Criterion{Description: "c", Weight: tt.weight}
		if got := c.EffectiveWeight(); got != tt.want {
			t.Errorf("EffectiveWeight(%v) = %v, want %v", tt.weight, got, tt.want)
		}
	}
}

func TestGradeConfigNormalized(t *testing.T) {
	got := GradeConfig{MaxFiles: 5}.Normalized()
	if got.MaxFiles != 5 {
		t.Errorf("explicit max_files overridden: %d", got.MaxFiles)
	}
	if got.MaxCharsPerFile != 4000 || got.MaxParallelTasks != 3 || got.MaxParallelCriteria != 5 {
		t.Errorf("defaults not filled: %+v", got)
	}
}

func TestTotalCriteria(t *testing.T) {
	req := GradeRequest{
		Tasks: []GradeTask{
			{Title: "a", AcceptanceCriteria: []Criterion{{Description: "1"}, {Description: "2"}}},
			{Title: "b", AcceptanceCriteria: []Criterion{{Description: "3"}}},
		},
	}
	if got := req.TotalCriteria(); got != 3 {
		t.Errorf("TotalCriteria = %d, want 3", got)
	}
}

func TestCountSeverities(t *testing.T) {
	diags := []Diagnostic{
		{Severity: SeverityError},
		{Severity: SeverityWarning},
		{Severity: SeverityWarning},
		{Severity: SeverityInfo},
	}
	got := CountSeverities(diags)
	if got.Error != 1 || got.Warning != 2 || got.Info != 1 {
		t.Errorf("counts = %+v", got)
	}
}

func TestStatusTerminal(t *testing.T) {
	if ReviewRunning.Terminal() || GradeGrading.Terminal() {
		t.Error("intermediate status reported terminal")
	}
	if !ReviewCompleted.Terminal() || !ReviewFailed.Terminal() {
		t.Error("review terminal statuses not detected")
	}
	if !GradeCompleted.Terminal() || !GradeFailed.Terminal() {
		t.Error("grade terminal statuses not detected")
	}
}

func TestDiagnosticJSONShape(t *testing.T) {
	d := Diagnostic{
		Checker:  "linter",
		Severity: SeverityWarning,
		File:     "src/app.js",
		Line:     3,
		Message:  "m",
		Rule:     "no-var",
	}
	raw, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["severity"] != "warning" {
		t.Errorf("severity = %v", decoded["severity"])
	}
	if _, present := decoded["column"]; present {
		t.Error("zero column should be omitted")
	}
	if _, present := decoded["suggestion"]; present {
		t.Error("empty suggestion should be omitted")
	}
}
