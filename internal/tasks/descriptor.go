// Package tasks holds the registry of runnable ingestion tasks.
package tasks

import (
	"context"

	"github.com/tradelens/ingestor/internal/window"
)

// Outcome is what a task reports after a successful execution
type Outcome struct {
	// Items is the number of records processed, when the task counts them
	Items *int64
	// Detail is a short human-readable note for the run summary
	Detail string
}

// Items returns an Outcome carrying an item count
func Items(n int64) Outcome {
	return Outcome{Items: &n}
}

// Func executes one task over the resolved window. A non-nil error marks the
// attempt as failed. Implementations must tolerate being re-run over a window
// that overlaps a previous one.
type Func func(ctx context.Context, w window.Window) (Outcome, error)

// Descriptor describes a registered task
type Descriptor struct {
	Name        string
	Description string
	Policy      window.Policy
	Run         Func
}
