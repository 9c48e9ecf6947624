// Package harmonization turns a source text and a selection of intentions
// into harmonized code plus an audit record describing the run.
package harmonization

import "time"

// TimestampLayout is the ISO-8601 form used for audit timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in UTC with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// StepStatus is the lifecycle state of a pipeline step
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepError      StepStatus = "error"
)

// rank orders statuses so a step can only move forward.
func (s StepStatus) rank() int {
	switch s {
	case StepPending:
		return 0
	case StepProcessing:
		return 1
	case StepCompleted, StepError:
		return 2
	}
	return -1
}

// Step is one stage of a harmonization run
type Step struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Status      StepStatus `json:"status" yaml:"status"`
	Progress    int        `json:"progress" yaml:"progress"`
}

// Transformation records one requested intention in the audit trail
type Transformation struct {
	Intention string `json:"intention" yaml:"intention"`
	Name      string `json:"name" yaml:"name"`
	Applied   bool   `json:"applied" yaml:"applied"`
	Reasoning string `json:"reasoning" yaml:"reasoning"`
}

// AuditRecord describes a completed run
type AuditRecord struct {
	Timestamp          string           `json:"timestamp" yaml:"timestamp"`
	OriginalCode       string           `json:"originalCode" yaml:"originalCode"`
	SelectedIntentions []string         `json:"selectedIntentions" yaml:"selectedIntentions"`
	Steps              []Step           `json:"steps" yaml:"steps"`
	Transformations    []Transformation `json:"transformations" yaml:"transformations"`
}

// Result is the outcome of a completed run
type Result struct {
	HarmonizedCode string        `json:"harmonizedCode"`
	Audit          AuditRecord   `json:"audit"`
	NoOp           bool          `json:"noop"`
	Duration       time.Duration `json:"-"`
}

// Progress is a snapshot emitted while a run advances
type Progress struct {
	Steps []Step `json:"steps"`
	// Current is the index of the step last updated, or -1 once all are done.
	Current int     `json:"current"`
	Overall float64 `json:"overall"`
}

// ProgressFunc observes progress snapshots. It is called synchronously from
// the run and must not block for long.
type ProgressFunc func(Progress)

func cloneSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	copy(out, steps)
	return out
}
