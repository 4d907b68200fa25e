// Package window computes the fetch window a task should process on a run,
// based on its last successful run and its window policy.
package window

import (
	"errors"
	"fmt"
	"time"
)

// DefaultLookback bounds the first window of a Lookback task that has never succeeded
const DefaultLookback = 24 * time.Hour

var (
	// ErrMissingPolicy is returned when a task has no window policy
	ErrMissingPolicy = errors.New("window policy is required")

	// ErrInvalidPolicy is returned for a policy with out-of-range parameters
	ErrInvalidPolicy = errors.New("invalid window policy")
)

// Kind identifies the shape of a Window
type Kind string

const (
	// KindRange is a half-open [Start, End) time range
	KindRange Kind = "range"
	// KindDay is a single calendar day
	KindDay Kind = "day"
	// KindCursor carries no time range; the task resumes from its own cursor
	KindCursor Kind = "cursor"
	// KindEmpty means there is nothing to fetch and the task must be skipped
	KindEmpty Kind = "empty"
)

// Window is the time range or cursor signal handed to a task
type Window struct {
	Kind   Kind      `json:"kind" yaml:"kind"`
	Start  time.Time `json:"start,omitzero" yaml:"start,omitempty"`
	End    time.Time `json:"end,omitzero" yaml:"end,omitempty"`
	Reason string    `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// IsEmpty reports whether the window has nothing to fetch
func (w Window) IsEmpty() bool {
	return w.Kind == KindEmpty || w.Kind == ""
}

// IsCursor reports whether the task should resume from its own cursor
func (w Window) IsCursor() bool {
	return w.Kind == KindCursor
}

// Day returns the calendar date of a day window formatted as YYYY-MM-DD
func (w Window) Day() string {
	if w.Kind != KindDay {
		return ""
	}
	return w.Start.Format(time.DateOnly)
}

// Duration returns the length of a range or day window
func (w Window) Duration() time.Duration {
	switch w.Kind {
	case KindRange, KindDay:
		return w.End.Sub(w.Start)
	default:
		return 0
	}
}

func (w Window) String() string {
	switch w.Kind {
	case KindRange:
		return fmt.Sprintf("%s..%s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	case KindDay:
		return "day " + w.Day()
	case KindCursor:
		return "cursor"
	default:
		if w.Reason != "" {
			return "empty (" + w.Reason + ")"
		}
		return "empty"
	}
}

// Empty returns an empty window with the given reason
func Empty(reason string) Window {
	return Window{Kind: KindEmpty, Reason: reason}
}
