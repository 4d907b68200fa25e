package api

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse is the body of GET /readiness
type ReadinessResponse struct {
	Status string `json:"status"`
	// TrackedTasks is the number of tasks with a persisted status record
	TrackedTasks int `json:"tracked_tasks"`
}

// VersionResponse is the body of GET /version
type VersionResponse struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}
