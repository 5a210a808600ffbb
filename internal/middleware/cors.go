package middleware

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// CORSConfig holds CORS configuration options.
type CORSConfig struct {
	// AllowedOrigins lists exact origins ("https://diary.example.com") and
	// subdomain patterns ("https://*.example.com"). A bare "*" is ignored
	// when AllowCredentials is set, since the session cookie must never be
	// sent on behalf of arbitrary sites.
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	// MaxAge is the preflight cache lifetime in seconds.
	MaxAge int
}

// DefaultCORSConfig returns the settings used by the moments API.
// Origins must still be configured; none are allowed by default.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", RequestIDHeader, "Accept"},
		ExposedHeaders: []string{RequestIDHeader, "Retry-After", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		// Browser clients authenticate with the session cookie.
		AllowCredentials: true,
		MaxAge:           600,
	}
}

// originRule is one parsed AllowedOrigins entry.
type originRule struct {
	any    bool
	scheme string
	host   string // exact host[:port], or the suffix for wildcard rules
	wild   bool
}

func parseOriginRules(origins []string, credentials bool) []originRule {
	rules := make([]originRule, 0, len(origins))
	for _, raw := range origins {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "*" {
			if !credentials {
				rules = append(rules, originRule{any: true})
			}
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		rule := originRule{scheme: u.Scheme, host: u.Host}
		if strings.HasPrefix(u.Host, "*.") {
			rule.wild = true
			rule.host = strings.TrimPrefix(u.Host, "*")
		}
		rules = append(rules, rule)
	}
	return rules
}

func (r originRule) match(scheme, host string) bool {
	switch {
	case r.any:
		return true
	case r.scheme != scheme:
		return false
	case r.wild:
		// "*.example.com" matches "a.example.com" but not "example.com" or "badexample.com".
		return strings.HasSuffix(host, r.host) && len(host) > len(r.host)
	default:
		return host == r.host
	}
}

func originAllowed(origin string, rules []originRule) bool {
	u, err := url.Parse(strings.ToLower(origin))
	if err != nil || u.Scheme == "" || u.Host == "" || u.Path != "" {
		return false
	}
	for _, rule := range rules {
		if rule.match(u.Scheme, u.Host) {
			return true
		}
	}
	return false
}

// CORS answers preflight requests and decorates responses for allowed
// origins. Requests from other origins are passed through without CORS
// headers so the browser blocks them; their preflights get 403.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	rules := parseOriginRules(cfg.AllowedOrigins, cfg.AllowCredentials)
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if !originAllowed(origin, rules) {
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if !preflight {
				if exposed != "" {
					h.Set("Access-Control-Expose-Headers", exposed)
				}
				next.ServeHTTP(w, r)
				return
			}

			h.Add("Vary", "Access-Control-Request-Method")
			h.Add("Vary", "Access-Control-Request-Headers")
			h.Set("Access-Control-Allow-Methods", methods)
			h.Set("Access-Control-Allow-Headers", headers)
			if cfg.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
			}
			w.WriteHeader(http.StatusNoContent)
		})
	}
}
