// Package v1 provides the run and status endpoints of the ingestor API.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tradelens/ingestor/internal/api/common"
	"github.com/tradelens/ingestor/internal/runner"
	"github.com/tradelens/ingestor/internal/scheduler"
	"github.com/tradelens/ingestor/internal/status"
	"github.com/tradelens/ingestor/internal/tasks"
)

// maxTriggerBody bounds the size of a POST /v1/runs body
const maxTriggerBody = 64 << 10

//go:generate mockgen -destination=mocks/mock_runs.go -package=mocks -source=routes.go Runs

// Runs starts runs and reports on the latest one
type Runs interface {
	Trigger(ctx context.Context, names []string, dryRun bool) (*runner.RunSummary, error)
	LastSummary() *runner.RunSummary
	Running() bool
}

// TriggerRequest is the body of POST /v1/runs
type TriggerRequest struct {
	Tasks  []string `json:"tasks,omitempty"`
	DryRun bool     `json:"dryRun,omitempty"`
}

// StatusResponse lists the persisted status of every task
type StatusResponse struct {
	Running bool                          `json:"running"`
	Tasks   map[string]*status.TaskStatus `json:"tasks"`
}

// TaskStatusResponse is the persisted status of one task
type TaskStatusResponse struct {
	Task string `json:"task"`
	*status.TaskStatus
}

// Routes holds the dependencies of the v1 handlers
type Routes struct {
	runs  Runs
	store status.Store
}

// Router creates the v1 router
func Router(runs Runs, store status.Store) http.Handler {
	routes := &Routes{runs: runs, store: store}

	r := chi.NewRouter()
	r.Get("/status", routes.listStatus)
	r.Get("/status/{task}", routes.getStatus)
	r.Get("/runs/last", routes.lastRun)
	r.Post("/runs", routes.triggerRun)

	return r
}

// listStatus handles GET /v1/status
func (rr *Routes) listStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := rr.store.Load(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load task status", "error", err)
		common.WriteErrorResponse(w, "failed to load task status", http.StatusServiceUnavailable)
		return
	}

	common.WriteJSONResponse(w, StatusResponse{
		Running: rr.runs.Running(),
		Tasks:   status.CloneAll(statuses),
	}, http.StatusOK)
}

// getStatus handles GET /v1/status/{task}
func (rr *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	name, err := common.GetAndValidateURLParam(r, "task")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	statuses, err := rr.store.Load(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load task status", "task", name, "error", err)
		common.WriteErrorResponse(w, "failed to load task status", http.StatusServiceUnavailable)
		return
	}

	st, ok := statuses[name]
	if !ok || st == nil {
		common.WriteErrorResponse(w, "no status recorded for task "+name, http.StatusNotFound)
		return
	}

	common.WriteJSONResponse(w, TaskStatusResponse{Task: name, TaskStatus: st.Clone()}, http.StatusOK)
}

// lastRun handles GET /v1/runs/last
func (rr *Routes) lastRun(w http.ResponseWriter, _ *http.Request) {
	summary := rr.runs.LastSummary()
	if summary == nil {
		common.WriteErrorResponse(w, "no run has completed yet", http.StatusNotFound)
		return
	}
	common.WriteJSONResponse(w, summary, http.StatusOK)
}

// triggerRun handles POST /v1/runs. The run is detached from the request
// context so a disconnecting client cannot abort it half way.
func (rr *Routes) triggerRun(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxTriggerBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		common.WriteErrorResponse(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := rr.runs.Trigger(context.WithoutCancel(r.Context()), req.Tasks, req.DryRun)
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		common.WriteErrorResponse(w, err.Error(), http.StatusConflict)
		return
	case tasks.IsConfigurationError(err):
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Triggered run failed", "error", err)
		common.WriteErrorResponse(w, "run failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, summary, http.StatusOK)
}
