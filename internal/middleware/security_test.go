package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurity_Headers(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name     string
		dev      bool
		wantHSTS bool
	}{
		{"production", false, true},
		{"development", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Security(SecurityConfig{IsDevelopment: tt.dev})(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/moments", nil))

			want := map[string]string{
				"X-Content-Type-Options":  "nosniff",
				"X-Frame-Options":         "DENY",
				"Referrer-Policy":         "strict-origin-when-cross-origin",
				"Content-Security-Policy": apiCSP,
				"Cache-Control":           "no-store",
			}
			for k, v := range want {
				if got := rec.Header().Get(k); got != v {
					t.Errorf("%s = %q, want %q", k, got, v)
				}
			}
			if hsts := rec.Header().Get("Strict-Transport-Security"); (hsts != "") != tt.wantHSTS {
				t.Errorf("Strict-Transport-Security = %q, want present=%v", hsts, tt.wantHSTS)
			}
		})
	}
}

func TestMediaHeaders_OverrideAPIPolicy(t *testing.T) {
	handler := Security(SecurityConfig{})(MediaHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<svg onload=alert(1)>")
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/x.svg", nil))

	if csp := rec.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "sandbox") || !strings.Contains(csp, "default-src 'none'") {
		t.Errorf("media CSP = %q", csp)
	}
	if cc := rec.Header().Get("Cache-Control"); !strings.HasPrefix(cc, "private") {
		t.Errorf("Cache-Control = %q, want private caching", cc)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("nosniff must survive the override")
	}
}

func TestMaxBodySize(t *testing.T) {
	tests := []struct {
		name          string
		maxBytes      int64
		contentLength int64
		body          string
		wantStatus    int
		wantOverflow  bool
	}{
		{"fits", 1024, 10, "small body", http.StatusOK, false},
		{"declared length over limit", 10, 100, strings.Repeat("x", 100), http.StatusRequestEntityTooLarge, false},
		{"chunked body over limit", 10, -1, strings.Repeat("x", 100), http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var overflow bool
			handler := MaxBodySize(tt.maxBytes)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, err := io.Copy(io.Discard, r.Body)
				var maxErr *http.MaxBytesError
				overflow = errors.As(err, &maxErr)
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/moments", strings.NewReader(tt.body))
			req.ContentLength = tt.contentLength
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if overflow != tt.wantOverflow {
				t.Errorf("overflow = %v, want %v", overflow, tt.wantOverflow)
			}
			if tt.wantStatus == http.StatusRequestEntityTooLarge && !strings.Contains(rec.Body.String(), "PAYLOAD_TOO_LARGE") {
				t.Errorf("body = %s", rec.Body.String())
			}
		})
	}
}
