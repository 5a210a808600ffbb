package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func corsHandler(cfg CORSConfig) (http.Handler, *bool) {
	called := new(bool)
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}))
	return h, called
}

func TestCORS_Origins(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://diary.example.com", "https://*.daybook.app", "http://localhost:3000"}

	tests := []struct {
		origin  string
		allowed bool
	}{
		{"https://diary.example.com", true},
		{"HTTPS://Diary.Example.com", true},
		{"http://diary.example.com", false},
		{"https://evil.example.com", false},
		{"https://me.daybook.app", true},
		{"https://a.b.daybook.app", true},
		{"https://daybook.app", false},
		{"https://notdaybook.app", false},
		{"https://daybook.app.evil.com", false},
		{"http://localhost:3000", true},
		{"http://localhost:3001", false},
		{"null", false},
		{"https://diary.example.com/path", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			h, called := corsHandler(cfg)
			req := httptest.NewRequest(http.MethodGet, "/moments", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if !*called {
				t.Fatal("simple requests must always reach the handler")
			}
			got := rec.Header().Get("Access-Control-Allow-Origin")
			if tt.allowed && got != tt.origin {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.origin)
			}
			if !tt.allowed && got != "" {
				t.Errorf("Allow-Origin = %q for disallowed origin", got)
			}
			if !strings.Contains(strings.Join(rec.Header().Values("Vary"), ","), "Origin") {
				t.Error("Vary: Origin missing")
			}
		})
	}
}

func TestCORS_NoOriginHeader(t *testing.T) {
	h, called := corsHandler(DefaultCORSConfig())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/moments", nil))

	if !*called {
		t.Error("same-origin request should pass through")
	}
	if len(rec.Header()) != 0 {
		t.Errorf("unexpected headers: %v", rec.Header())
	}
}

func TestCORS_Credentials(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://diary.example.com"}

	h, _ := corsHandler(cfg)
	req := httptest.NewRequest(http.MethodGet, "/moments", nil)
	req.Header.Set("Origin", "https://diary.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("credentials should be allowed for the session cookie")
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Expose-Headers"), "Retry-After") {
		t.Error("Retry-After should be exposed to browser clients")
	}
}

func TestCORS_WildcardIgnoredWithCredentials(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"*"}

	h, _ := corsHandler(cfg)
	req := httptest.NewRequest(http.MethodGet, "/moments", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("wildcard with credentials allowed %q", got)
	}

	cfg.AllowCredentials = false
	h, _ = corsHandler(cfg)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://anywhere.example" {
		t.Errorf("wildcard without credentials: Allow-Origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("credentials header set while disabled")
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://diary.example.com"}

	t.Run("allowed", func(t *testing.T) {
		h, called := corsHandler(cfg)
		req := httptest.NewRequest(http.MethodOptions, "/moments/01HX", nil)
		req.Header.Set("Origin", "https://diary.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPut)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if *called {
			t.Error("preflight must not reach the handler")
		}
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		methods := rec.Header().Get("Access-Control-Allow-Methods")
		for _, m := range []string{"GET", "POST", "PUT", "DELETE"} {
			if !strings.Contains(methods, m) {
				t.Errorf("Allow-Methods %q missing %s", methods, m)
			}
		}
		if strings.Contains(methods, "PATCH") {
			t.Errorf("Allow-Methods %q should not include PATCH", methods)
		}
		if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Authorization") {
			t.Error("Authorization should be an allowed header")
		}
		if rec.Header().Get("Access-Control-Max-Age") != "600" {
			t.Errorf("Max-Age = %q", rec.Header().Get("Access-Control-Max-Age"))
		}
	})

	t.Run("disallowed", func(t *testing.T) {
		h, called := corsHandler(cfg)
		req := httptest.NewRequest(http.MethodOptions, "/moments", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if *called {
			t.Error("disallowed preflight must not reach the handler")
		}
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})

	t.Run("plain OPTIONS is not a preflight", func(t *testing.T) {
		h, called := corsHandler(cfg)
		req := httptest.NewRequest(http.MethodOptions, "/moments", nil)
		req.Header.Set("Origin", "https://diary.example.com")
		h.ServeHTTP(httptest.NewRecorder(), req)
		if !*called {
			t.Error("OPTIONS without Access-Control-Request-Method should pass through")
		}
	})
}
