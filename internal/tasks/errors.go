package tasks

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTask is returned when a selected task name is not registered
	ErrUnknownTask = errors.New("unknown task")

	// ErrDuplicateTask is returned when a task name is registered twice
	ErrDuplicateTask = errors.New("duplicate task")

	// ErrInvalidTask is returned for a descriptor missing its name or function
	ErrInvalidTask = errors.New("invalid task")
)

// ConfigurationError reports a problem with task registration or selection.
// It is fatal: no task runs when one is returned.
type ConfigurationError struct {
	Task string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error for task %q: %v", e.Task, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
