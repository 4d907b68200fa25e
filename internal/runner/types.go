package runner

import (
	"fmt"
	"time"

	"github.com/tradelens/ingestor/internal/window"
)

// Outcome is the result of one task within a run, or of the run as a whole
type Outcome string

const (
	// OutcomeSuccess means the task completed, possibly after a retry
	OutcomeSuccess Outcome = "success"
	// OutcomeFailure means both attempts failed
	OutcomeFailure Outcome = "failure"
	// OutcomeSkipped means the task was not invoked
	OutcomeSkipped Outcome = "skipped"
)

// Exit codes of a run
const (
	ExitOK      = 0
	ExitFailure = 1
)

// RunResult records what happened to one task in one run. It is never persisted.
type RunResult struct {
	TaskName   string        `json:"task" yaml:"task"`
	StartedAt  time.Time     `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt" yaml:"finishedAt"`
	Outcome    Outcome       `json:"outcome" yaml:"outcome"`
	Detail     string        `json:"detail,omitempty" yaml:"detail,omitempty"`
	Retried    bool          `json:"retried" yaml:"retried"`
	Attempts   int           `json:"attempts" yaml:"attempts"`
	Items      *int64        `json:"items,omitempty" yaml:"items,omitempty"`
	Window     window.Window `json:"window" yaml:"window"`

	// WouldRun is set on dry runs for tasks that a real run would invoke
	WouldRun bool `json:"wouldRun,omitempty" yaml:"wouldRun,omitempty"`
}

// Duration returns how long the task took, retry included
func (r RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunSummary is the ordered result of one coordinator invocation
type RunSummary struct {
	RunID      string      `json:"runId" yaml:"runId"`
	StartedAt  time.Time   `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt" yaml:"finishedAt"`
	DryRun     bool        `json:"dryRun" yaml:"dryRun"`
	Outcome    Outcome     `json:"outcome" yaml:"outcome"`
	ExitCode   int         `json:"exitCode" yaml:"exitCode"`
	Results    []RunResult `json:"results" yaml:"results"`

	// StatusError holds the message of a failed status save, if any
	StatusError string `json:"statusError,omitempty" yaml:"statusError,omitempty"`
}

// Count returns how many results have the given outcome
func (s *RunSummary) Count(outcome Outcome) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, r := range s.Results {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

// Result returns the result for the named task
func (s *RunSummary) Result(taskName string) (RunResult, bool) {
	if s == nil {
		return RunResult{}, false
	}
	for _, r := range s.Results {
		if r.TaskName == taskName {
			return r, true
		}
	}
	return RunResult{}, false
}

// finalize computes the overall outcome and exit code from the results
func (s *RunSummary) finalize() {
	if s.Count(OutcomeFailure) > 0 {
		s.Outcome = OutcomeFailure
		s.ExitCode = ExitFailure
		return
	}
	s.Outcome = OutcomeSuccess
	s.ExitCode = ExitOK
}

// TaskExecutionError wraps the error returned by a task attempt
type TaskExecutionError struct {
	Task    string
	Attempt int
	Err     error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %q failed on attempt %d: %v", e.Task, e.Attempt, e.Err)
}

func (e *TaskExecutionError) Unwrap() error {
	return e.Err
}
