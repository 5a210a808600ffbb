package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const readinessTimeout = 3 * time.Second

// HealthChecker is a dependency that can report whether it is usable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Check names one readiness dependency.
type Check struct {
	Name    string
	Checker HealthChecker
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checks []Check
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. Checks with a nil Checker are
// reported as "not configured" and do not fail readiness.
func NewHealthHandler(logger *slog.Logger, checks ...Check) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{checks: checks, logger: logger}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz reports that the process is serving. It touches no dependency.
// GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Readyz pings every dependency in parallel and answers 503 if any fails.
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	results := make([]string, len(h.checks))
	var wg sync.WaitGroup
	for i, c := range h.checks {
		if c.Checker == nil {
			results[i] = "not configured"
			continue
		}
		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()
			if err := c.Checker.Ping(ctx); err != nil {
				// Connection errors can carry hosts; keep them in logs only.
				h.logger.Warn("readiness check failed", "dependency", c.Name, "error", err)
				results[i] = "unavailable"
				return
			}
			results[i] = "ok"
		}(i, c)
	}
	wg.Wait()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for i, c := range h.checks {
		resp.Checks[c.Name] = results[i]
		if results[i] == "unavailable" {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, resp)
}
