package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/onsi/gomega"

	ingestor "github.com/tradelens/ingestor/internal/app"
	"github.com/tradelens/ingestor/internal/config"
	"github.com/tradelens/ingestor/internal/runner"
)

// ServerTestHelper manages the ingestor server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	address    string
	httpClient *http.Client
	app        *ingestor.IngestorApp
	summaries  chan *runner.RunSummary
}

// NewServerTestHelper creates a helper for the config at configPath listening
// on a free local port
func NewServerTestHelper(ctx context.Context, configPath string) (*ServerTestHelper, error) {
	port, err := freePort()
	if err != nil {
		return nil, err
	}
	address := fmt.Sprintf("127.0.0.1:%d", port)

	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		address:    address,
		baseURL:    "http://" + address,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		summaries:  make(chan *runner.RunSummary, 16),
	}, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find a free port: %w", err)
	}
	defer func() {
		_ = l.Close()
	}()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// StartServer builds the application from the config file and starts it
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := ingestor.NewIngestorApp(s.ctx,
		ingestor.WithConfig(cfg),
		ingestor.WithAddress(s.address),
		ingestor.WithSummaryHandler(func(_ context.Context, summary *runner.RunSummary) {
			select {
			case s.summaries <- summary:
			default:
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	s.app = app

	go func() {
		if err := app.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()
	return nil
}

// StopServer gracefully stops the server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// WaitForServerReady waits for the readiness endpoint to report ready
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 200*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// WaitForScheduledRun waits for the next run started by the scheduler or the API
func (s *ServerTestHelper) WaitForScheduledRun(timeout time.Duration) *runner.RunSummary {
	var summary *runner.RunSummary
	gomega.Eventually(s.summaries, timeout).Should(gomega.Receive(&summary), "a run should finish")
	return summary
}

// StatusResponse is the body of GET /v1/status
type StatusResponse struct {
	Running bool                  `json:"running"`
	Tasks   map[string]TaskStatus `json:"tasks"`
}

// TaskStatus is the persisted status of one task
type TaskStatus struct {
	LastRun             *time.Time `json:"last_run"`
	Success             bool       `json:"success"`
	LastSuccess         *time.Time `json:"last_success"`
	LastError           string     `json:"last_error"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// RunResponse is the body of a finished run
type RunResponse struct {
	RunID    string `json:"runId"`
	DryRun   bool   `json:"dryRun"`
	Outcome  string `json:"outcome"`
	ExitCode int    `json:"exitCode"`
	Results  []struct {
		Task     string `json:"task"`
		Outcome  string `json:"outcome"`
		Detail   string `json:"detail"`
		Attempts int    `json:"attempts"`
		Items    *int64 `json:"items"`
		WouldRun bool   `json:"wouldRun"`
	} `json:"results"`
}

// GetStatus calls GET /v1/status
func (s *ServerTestHelper) GetStatus() StatusResponse {
	var body StatusResponse
	s.getJSON("/v1/status", http.StatusOK, &body)
	return body
}

// GetLastRun calls GET /v1/runs/last
func (s *ServerTestHelper) GetLastRun() RunResponse {
	var body RunResponse
	s.getJSON("/v1/runs/last", http.StatusOK, &body)
	return body
}

// Get performs a GET request and returns the status code
func (s *ServerTestHelper) Get(path string) int {
	resp, err := s.httpClient.Get(s.baseURL + path)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	_ = resp.Body.Close()
	return resp.StatusCode
}

// TriggerRun calls POST /v1/runs and returns the status code and body
func (s *ServerTestHelper) TriggerRun(tasks []string, dryRun bool) (int, RunResponse) {
	payload, err := json.Marshal(map[string]any{"tasks": tasks, "dryRun": dryRun})
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	resp, err := s.httpClient.Post(s.baseURL+"/v1/runs", "application/json", bytes.NewReader(payload))
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()

	var body RunResponse
	if resp.StatusCode == http.StatusOK {
		gomega.Expect(json.NewDecoder(resp.Body).Decode(&body)).To(gomega.Succeed())
	}
	return resp.StatusCode, body
}

func (s *ServerTestHelper) getJSON(path string, wantStatus int, v any) {
	resp, err := s.httpClient.Get(s.baseURL + path)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(wantStatus), "GET %s", path)
	gomega.Expect(json.NewDecoder(resp.Body).Decode(v)).To(gomega.Succeed())
}
