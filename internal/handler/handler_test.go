package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/daybook/daybook/internal/handler/dto"
)

func TestHandler_Hello(t *testing.T) {
	rec := httptest.NewRecorder()
	New(nil).Hello(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != "Daybook API" || body["version"] != Version {
		t.Errorf("body = %v", body)
	}
}

func TestHandler_Fallbacks(t *testing.T) {
	h := New(nil)

	tests := []struct {
		name     string
		serve    http.HandlerFunc
		wantCode int
		wantBody dto.ErrorResponse
	}{
		{"not found", h.NotFound, http.StatusNotFound, dto.ErrorResponse{Error: "resource not found", Code: "NOT_FOUND"}},
		{"method not allowed", h.MethodNotAllowed, http.StatusMethodNotAllowed, dto.ErrorResponse{Error: "method not allowed", Code: "METHOD_NOT_ALLOWED"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.serve(rec, httptest.NewRequest(http.MethodPatch, "/moments/x", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var got dto.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got != tt.wantBody {
				t.Errorf("body = %+v, want %+v", got, tt.wantBody)
			}
		})
	}
}
