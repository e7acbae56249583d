package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Startup steps reported by /readyz
const (
	StepDatabase   = "Database connection"
	StepMigrations = "Running migrations"
	StepIdentity   = "Identity provider"
	StepServices   = "Initializing services"
	StepServer     = "Server ready"
)

// StartupStatus tracks the initialization progress
type StartupStatus struct {
	mu       sync.RWMutex
	ready    bool
	current  string
	progress int
	steps    []StartupStep
}

type StartupStep struct {
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// NewStartupStatus creates a status with every step pending
func NewStartupStatus(stepNames ...string) *StartupStatus {
	steps := make([]StartupStep, len(stepNames))
	for i, name := range stepNames {
		steps[i] = StartupStep{Name: name}
	}
	return &StartupStatus{current: "Initializing...", steps: steps}
}

// SetCurrentStep updates the current initialization step
func (s *StartupStatus) SetCurrentStep(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = step
}

// CompleteStep marks a step as completed and updates progress
func (s *StartupStatus) CompleteStep(stepName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.steps {
		if s.steps[i].Name == stepName {
			s.steps[i].Completed = true
			break
		}
	}

	completed := 0
	for _, step := range s.steps {
		if step.Completed {
			completed++
		}
	}
	if len(s.steps) > 0 {
		s.progress = (completed * 100) / len(s.steps)
	}
}

// MarkReady marks the server as fully initialized
func (s *StartupStatus) MarkReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	s.current = StepServer
	s.progress = 100
}

// IsReady returns whether the server is fully initialized
func (s *StartupStatus) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

type readinessResponse struct {
	Status   string        `json:"status"`
	Current  string        `json:"current"`
	Progress int           `json:"progress"`
	Steps    []StartupStep `json:"steps"`
	Database string        `json:"database"`
}

func (s *StartupStatus) snapshot() readinessResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	steps := make([]StartupStep, len(s.steps))
	copy(steps, s.steps)
	return readinessResponse{Current: s.current, Progress: s.progress, Steps: steps}
}

// Pinger reports database reachability
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	status *StartupStatus
	db     Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(status *StartupStatus, db Pinger) *HealthHandler {
	return &HealthHandler{status: status, db: db}
}

// Healthz reports that the process is up
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz reports startup progress and database reachability. 503 until both are good.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	resp := h.status.snapshot()
	ready := h.status.IsReady()

	resp.Database = "unknown"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			resp.Database = "unreachable"
			ready = false
		} else {
			resp.Database = "ok"
		}
	}

	status := http.StatusOK
	resp.Status = "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		resp.Status = "starting"
	}
	respondWithJSON(w, status, resp)
}
