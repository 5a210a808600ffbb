package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	healthy   = pingFunc(func(context.Context) error { return nil })
	unhealthy = pingFunc(func(context.Context) error {
		return errors.New("dial tcp db.internal:5432: connection refused")
	})
)

func TestHealthHandler_Healthz(t *testing.T) {
	// Liveness must not depend on any check.
	h := NewHealthHandler(nil, Check{Name: "postgres", Checker: unhealthy})

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"status":"ok"}` {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHealthHandler_Readyz(t *testing.T) {
	tests := []struct {
		name       string
		checks     []Check
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name: "all healthy",
			checks: []Check{
				{Name: "postgres", Checker: healthy},
				{Name: "redis", Checker: healthy},
				{Name: "uploads", Checker: healthy},
			},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"postgres": "ok", "redis": "ok", "uploads": "ok"},
		},
		{
			name: "database down",
			checks: []Check{
				{Name: "postgres", Checker: unhealthy},
				{Name: "redis", Checker: healthy},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{"postgres": "unavailable", "redis": "ok"},
		},
		{
			name:       "unconfigured dependency",
			checks:     []Check{{Name: "redis"}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]string{"redis": "not configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHealthHandler(nil, tt.checks...).Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if strings.Contains(rec.Body.String(), "db.internal") {
				t.Error("dependency error leaked into the response")
			}

			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status field = %q, want %q", resp.Status, tt.wantStatus)
			}
			for name, want := range tt.wantChecks {
				if resp.Checks[name] != want {
					t.Errorf("checks[%s] = %q, want %q", name, resp.Checks[name], want)
				}
			}
		})
	}
}

func TestHealthHandler_ReadyzHonorsTimeout(t *testing.T) {
	slow := pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil).WithContext(ctx)
	NewHealthHandler(nil, Check{Name: "redis", Checker: slow}).Readyz(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
