package status

import "time"

// TaskStatus is the persisted last-run record of a single task.
type TaskStatus struct {
	// TaskName is the key the record is stored under. It is not serialized
	// as a field of the record itself.
	TaskName string `json:"-" yaml:"-"`

	// LastRunAt is the timestamp of the most recent attempt, successful or not
	LastRunAt *time.Time `json:"last_run,omitempty" yaml:"lastRun,omitempty"`

	// Success reports whether the most recent attempt succeeded
	Success bool `json:"success" yaml:"success"`

	// LastSuccessAt is the timestamp of the most recent successful completion
	LastSuccessAt *time.Time `json:"last_success,omitempty" yaml:"lastSuccess,omitempty"`

	// LastError is the message of the last failure, cleared on success
	LastError string `json:"last_error,omitempty" yaml:"lastError,omitempty"`

	// ConsecutiveFailures counts failed runs since the last success
	ConsecutiveFailures int `json:"consecutive_failures" yaml:"consecutiveFailures"`
}

// Clone returns a deep copy of the status.
func (s *TaskStatus) Clone() *TaskStatus {
	if s == nil {
		return nil
	}
	c := *s
	c.LastRunAt = cloneTime(s.LastRunAt)
	c.LastSuccessAt = cloneTime(s.LastSuccessAt)
	return &c
}

// RecordSuccess returns a copy of the status updated for a successful attempt.
// attemptAt is when the attempt started and successAt is the end of the window
// it covered. LastSuccessAt never ends up after LastRunAt.
func (s *TaskStatus) RecordSuccess(name string, attemptAt, successAt time.Time) *TaskStatus {
	next := s.Clone()
	if next == nil {
		next = &TaskStatus{}
	}
	next.TaskName = name

	attemptAt = attemptAt.UTC()
	successAt = successAt.UTC()
	if attemptAt.Before(successAt) {
		attemptAt = successAt
	}

	next.LastRunAt = &attemptAt
	next.LastSuccessAt = &successAt
	next.Success = true
	next.LastError = ""
	next.ConsecutiveFailures = 0
	return next
}

// RecordFailure returns a copy of the status updated for a failed attempt.
// The last success timestamp is left untouched.
func (s *TaskStatus) RecordFailure(name string, attemptAt time.Time, message string) *TaskStatus {
	next := s.Clone()
	if next == nil {
		next = &TaskStatus{}
	}
	next.TaskName = name

	attemptAt = attemptAt.UTC()
	next.LastRunAt = &attemptAt
	next.Success = false
	next.LastError = message
	next.ConsecutiveFailures++
	return next
}

// normalize fills the task name and upgrades records written in the legacy
// shape, which only carried last_run and success.
func (s *TaskStatus) normalize(name string) {
	s.TaskName = name
	if s.LastRunAt != nil {
		t := s.LastRunAt.UTC()
		s.LastRunAt = &t
	}
	if s.LastSuccessAt != nil {
		t := s.LastSuccessAt.UTC()
		s.LastSuccessAt = &t
	}
	if s.Success && s.LastSuccessAt == nil && s.LastRunAt != nil {
		s.LastSuccessAt = cloneTime(s.LastRunAt)
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
