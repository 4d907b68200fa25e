// Package status provides the durable record of per-task last-run metadata.
//
// A Store persists the whole set of TaskStatus records as one snapshot. Load
// and Save always operate on the complete mapping, so a Save either replaces
// everything or leaves the previous snapshot in place.
package status

import (
	"context"
	"errors"
	"sort"
	"time"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store

// ErrStoreUnavailable is returned when the persisted state cannot be read or
// written. Callers treat it as non-fatal.
var ErrStoreUnavailable = errors.New("status store unavailable")

// Store persists TaskStatus records keyed by task name.
type Store interface {
	// Load returns every persisted record. When the medium is missing it returns
	// an empty mapping and no error. When the medium is unreadable or corrupt it
	// returns an empty mapping together with an error wrapping ErrStoreUnavailable.
	Load(ctx context.Context) (map[string]*TaskStatus, error)

	// Save atomically replaces the entire persisted state with statuses.
	Save(ctx context.Context, statuses map[string]*TaskStatus) error
}

// LastSuccess returns the last success timestamp recorded for taskName, or nil
// if the task has never succeeded.
func LastSuccess(statuses map[string]*TaskStatus, taskName string) *time.Time {
	st, ok := statuses[taskName]
	if !ok || st == nil {
		return nil
	}
	return cloneTime(st.LastSuccessAt)
}

// CloneAll returns a deep copy of the mapping.
func CloneAll(statuses map[string]*TaskStatus) map[string]*TaskStatus {
	out := make(map[string]*TaskStatus, len(statuses))
	for name, st := range statuses {
		if st == nil {
			continue
		}
		c := st.Clone()
		c.TaskName = name
		out[name] = c
	}
	return out
}

// SortedNames returns the task names of the mapping in lexical order.
func SortedNames(statuses map[string]*TaskStatus) []string {
	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
