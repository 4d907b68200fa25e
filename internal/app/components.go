package app

import (
	"github.com/tradelens/ingestor/internal/app/storage"
	"github.com/tradelens/ingestor/internal/runner"
	"github.com/tradelens/ingestor/internal/scheduler"
	"github.com/tradelens/ingestor/internal/status"
	"github.com/tradelens/ingestor/internal/tasks"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Registry holds the configured tasks in registration order
	Registry *tasks.Registry

	// Coordinator executes runs over the registry
	Coordinator *runner.Coordinator

	// StatusStore persists per-task last-run records
	StatusStore status.Store

	// Scheduler triggers periodic and ad-hoc runs
	Scheduler *scheduler.Scheduler

	storage storage.Factory
}

// Close releases the storage resources held by the components
func (c *AppComponents) Close() {
	if c != nil && c.storage != nil {
		c.storage.Cleanup()
	}
}
