package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/daybook/daybook/internal/auth"
	"github.com/daybook/daybook/internal/metrics"
	"github.com/daybook/daybook/internal/model"
)

const (
	// DefaultMinAuthDuration is the minimum time spent on auth to blunt timing attacks.
	DefaultMinAuthDuration = 200 * time.Millisecond

	// SessionCookieName is the cookie browsers carry the session token in.
	SessionCookieName = "daybook_session"

	touchTimeout = 5 * time.Second
)

// SessionStore looks up persisted sessions.
type SessionStore interface {
	GetSessionsByPrefix(ctx context.Context, prefix string) ([]*model.Session, error)
	TouchSession(ctx context.Context, id string) error
}

// IdentityCache caches resolved identities by token hash.
type IdentityCache interface {
	GetIdentity(ctx context.Context, cacheKey string) (*model.Identity, error)
	SetIdentity(ctx context.Context, cacheKey string, identity model.Identity, ttl time.Duration) error
}

// SessionResolverConfig holds dependencies for NewSessionResolver.
type SessionResolverConfig struct {
	Logger   *slog.Logger
	Sessions SessionStore
	// Cache is optional.
	Cache    IdentityCache
	CacheTTL time.Duration
	Recorder metrics.Recorder
	Now      func() time.Time
}

// NewSessionResolver returns a CurrentUserFunc that resolves the bearer
// session token of a request. Every authentication failure wraps
// auth.ErrUnauthorized; other errors are infrastructure failures.
func NewSessionResolver(cfg SessionResolverConfig) auth.CurrentUserFunc {
	if cfg.Recorder == nil {
		cfg.Recorder = metrics.NewNoop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(r *http.Request) (model.Identity, error) {
		ctx := r.Context()

		token := extractToken(r)
		if token == "" {
			return model.Identity{}, fmt.Errorf("%w: missing_token", auth.ErrUnauthorized)
		}

		parsed, err := auth.ParseToken(token)
		if err != nil {
			return model.Identity{}, fmt.Errorf("%w: invalid_format", auth.ErrUnauthorized)
		}

		cacheKey := auth.QuickHash(token)
		if cfg.Cache != nil {
			cached, err := cfg.Cache.GetIdentity(ctx, cacheKey)
			if err != nil {
				cfg.Logger.Warn("identity cache lookup failed", slog.String("error", err.Error()))
			}
			if cached != nil {
				cfg.Recorder.IncSessionCacheHit()
				return *cached, nil
			}
			cfg.Recorder.IncSessionCacheMiss()
		}

		sessions, err := cfg.Sessions.GetSessionsByPrefix(ctx, parsed.Prefix)
		if err != nil {
			return model.Identity{}, fmt.Errorf("lookup sessions: %w", err)
		}

		// Several sessions may share a prefix; verify each candidate.
		var matched *model.Session
		for _, s := range sessions {
			ok, err := auth.VerifySecret(token, s.TokenHash)
			if err != nil {
				continue
			}
			if ok {
				matched = s
				break
			}
		}
		if matched == nil {
			return model.Identity{}, fmt.Errorf("%w: invalid_token", auth.ErrUnauthorized)
		}
		if !matched.IsActive(cfg.Now()) {
			return model.Identity{}, fmt.Errorf("%w: inactive_session", auth.ErrUnauthorized)
		}

		identity := model.Identity{
			UserID:    matched.UserID,
			SessionID: matched.ID,
			ExpiresAt: matched.ExpiresAt,
		}

		if cfg.Cache != nil {
			if err := cfg.Cache.SetIdentity(ctx, cacheKey, identity, cfg.CacheTTL); err != nil {
				cfg.Logger.Warn("identity cache write failed", slog.String("error", err.Error()))
			}
		}

		// Update last_used_at asynchronously
		go func(id string) {
			touchCtx, cancel := context.WithTimeout(context.Background(), touchTimeout)
			defer cancel()
			if err := cfg.Sessions.TouchSession(touchCtx, id); err != nil {
				cfg.Logger.Debug("touch session failed", slog.String("session_id", id), slog.String("error", err.Error()))
			}
		}(matched.ID)

		return identity, nil
	}
}

// AuthConfig holds configuration for the Authenticate middleware.
type AuthConfig struct {
	Logger  *slog.Logger
	Resolve auth.CurrentUserFunc
	// MinDuration pads every authentication attempt. Zero disables it.
	MinDuration time.Duration
}

// Authenticate resolves the caller before any handler logic runs and
// injects the identity into the request context. Every failure is the
// same 401 response.
func Authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			identity, err := cfg.Resolve(r)

			// Ensure consistent timing regardless of outcome
			if elapsed := time.Since(startTime); elapsed < cfg.MinDuration {
				time.Sleep(cfg.MinDuration - elapsed)
			}

			if err != nil {
				attrs := []any{
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				}
				if errors.Is(err, auth.ErrUnauthorized) {
					cfg.Logger.Warn("authentication failed", append(attrs, slog.String("reason", reason(err)))...)
				} else {
					cfg.Logger.Error("session lookup error during auth", append(attrs, slog.String("error", err.Error()))...)
				}
				writeAuthError(w)
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("user_id", identity.UserID),
				slog.String("session_id", identity.SessionID),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			noteUser(r.Context(), identity.UserID)
			ctx := auth.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken reads the session token from the request.
// Supports "Authorization: Bearer <token>" and the session cookie.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		}
		return ""
	}

	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func reason(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized","code":"UNAUTHORIZED"}`))
}
