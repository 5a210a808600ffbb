package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/daybook/daybook/internal/auth"
	"github.com/daybook/daybook/internal/cache"
	"github.com/daybook/daybook/internal/metrics"
	"github.com/daybook/daybook/internal/model"
	"github.com/redis/go-redis/v9"
)

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions []*model.Session
	err      error
	lookups  int
	touched  chan string
}

func (f *fakeSessionStore) GetSessionsByPrefix(ctx context.Context, prefix string) ([]*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	var out []*model.Session
	for _, s := range f.sessions {
		if s.TokenPrefix == prefix {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) TouchSession(ctx context.Context, id string) error {
	if f.touched != nil {
		select {
		case f.touched <- id:
		default:
		}
	}
	return nil
}

func (f *fakeSessionStore) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// issueSession returns a plaintext token and the stored session it belongs to.
func issueSession(t *testing.T, userID string, expiresAt time.Time) (string, *model.Session) {
	t.Helper()
	tok, err := auth.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return tok.Plaintext, &model.Session{
		ID:          "sess-" + userID,
		UserID:      userID,
		TokenHash:   tok.Hash,
		TokenPrefix: tok.Prefix,
		ExpiresAt:   expiresAt,
		CreatedAt:   time.Now(),
	}
}

func requestWithToken(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/moments", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestSessionResolver_ValidToken(t *testing.T) {
	token, session := issueSession(t, "user-1", time.Now().Add(time.Hour))
	store := &fakeSessionStore{sessions: []*model.Session{session}, touched: make(chan string, 1)}
	resolve := NewSessionResolver(SessionResolverConfig{Logger: discardLogger(), Sessions: store})

	identity, err := resolve(requestWithToken(token))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UserID != "user-1" || identity.SessionID != session.ID {
		t.Errorf("unexpected identity: %+v", identity)
	}

	select {
	case id := <-store.touched:
		if id != session.ID {
			t.Errorf("touched %s, want %s", id, session.ID)
		}
	case <-time.After(2 * time.Second):
		t.Error("expected last-used timestamp to be updated")
	}
}

func TestSessionResolver_Rejections(t *testing.T) {
	now := time.Now()
	token, active := issueSession(t, "user-1", now.Add(time.Hour))
	expiredToken, expired := issueSession(t, "user-2", now.Add(-time.Minute))
	revokedToken, revoked := issueSession(t, "user-3", now.Add(time.Hour))
	revoked.RevokedAt = &now

	store := &fakeSessionStore{sessions: []*model.Session{active, expired, revoked}}
	resolve := NewSessionResolver(SessionResolverConfig{Logger: discardLogger(), Sessions: store})

	// Same prefix as a real session but a different secret.
	forged := token[:len("ds_")+auth.TokenPrefixLen+1] + strings.Repeat("0", auth.TokenSecretLen)

	tests := []struct {
		name  string
		req   *http.Request
		wantR string
	}{
		{"missing token", requestWithToken(""), "missing_token"},
		{"malformed token", requestWithToken("not-a-token"), "invalid_format"},
		{"unknown prefix", requestWithToken("ds_ffffff_" + strings.Repeat("a", auth.TokenSecretLen)), "invalid_token"},
		{"wrong secret", requestWithToken(forged), "invalid_token"},
		{"expired", requestWithToken(expiredToken), "inactive_session"},
		{"revoked", requestWithToken(revokedToken), "inactive_session"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolve(tt.req)
			if !errors.Is(err, auth.ErrUnauthorized) {
				t.Fatalf("error = %v, want ErrUnauthorized", err)
			}
			if got := reason(err); got != tt.wantR {
				t.Errorf("reason = %q, want %q", got, tt.wantR)
			}
		})
	}
}

func TestSessionResolver_NonBearerAuthorizationIgnored(t *testing.T) {
	token, session := issueSession(t, "user-1", time.Now().Add(time.Hour))
	store := &fakeSessionStore{sessions: []*model.Session{session}}
	resolve := NewSessionResolver(SessionResolverConfig{Logger: discardLogger(), Sessions: store})

	req := httptest.NewRequest(http.MethodGet, "/moments", nil)
	req.Header.Set("Authorization", "Basic "+token)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	if _, err := resolve(req); !errors.Is(err, auth.ErrUnauthorized) {
		t.Errorf("expected explicit non-bearer Authorization to win over cookie, got %v", err)
	}
}

func TestSessionResolver_Cookie(t *testing.T) {
	token, session := issueSession(t, "user-1", time.Now().Add(time.Hour))
	store := &fakeSessionStore{sessions: []*model.Session{session}}
	resolve := NewSessionResolver(SessionResolverConfig{Logger: discardLogger(), Sessions: store})

	req := httptest.NewRequest(http.MethodGet, "/moments", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	identity, err := resolve(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UserID != "user-1" {
		t.Errorf("UserID = %s, want user-1", identity.UserID)
	}
}

func TestSessionResolver_UsesCache(t *testing.T) {
	m, err := mr.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	defer client.Close()

	token, session := issueSession(t, "user-1", time.Now().Add(time.Hour))
	store := &fakeSessionStore{sessions: []*model.Session{session}}
	recorder := metrics.NewInMemory()
	resolve := NewSessionResolver(SessionResolverConfig{
		Logger:   discardLogger(),
		Sessions: store,
		Cache:    cache.NewFromClient(client),
		CacheTTL: time.Minute,
		Recorder: recorder,
	})

	for i := 0; i < 3; i++ {
		identity, err := resolve(requestWithToken(token))
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if identity.UserID != "user-1" {
			t.Fatalf("resolve %d: UserID = %s", i, identity.UserID)
		}
	}

	if got := store.lookupCount(); got != 1 {
		t.Errorf("session store lookups = %d, want 1", got)
	}
	snap := recorder.Snapshot()
	if snap.SessionCacheMiss != 1 || snap.SessionCacheHits != 2 {
		t.Errorf("cache hits/misses = %d/%d, want 2/1", snap.SessionCacheHits, snap.SessionCacheMiss)
	}
}

func TestAuthenticate_InjectsIdentity(t *testing.T) {
	resolve := func(r *http.Request) (model.Identity, error) {
		return model.Identity{UserID: "user-1", SessionID: "sess-1"}, nil
	}
	mw := Authenticate(AuthConfig{Logger: discardLogger(), Resolve: resolve})

	var got string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/moments", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got != "user-1" {
		t.Errorf("identity in context = %q, want user-1", got)
	}
}

func TestAuthenticate_FailuresLookIdentical(t *testing.T) {
	errs := []error{
		auth.ErrUnauthorized,
		errors.Join(auth.ErrUnauthorized, errors.New("expired")),
		errors.New("connection refused"),
	}

	var bodies []string
	for _, resolveErr := range errs {
		resolveErr := resolveErr
		var logs bytes.Buffer
		mw := Authenticate(AuthConfig{
			Logger: slog.New(slog.NewJSONHandler(&logs, nil)),
			Resolve: func(r *http.Request) (model.Identity, error) {
				return model.Identity{}, resolveErr
			},
		})

		called := false
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithToken("ds_abc123_"+strings.Repeat("f", auth.TokenSecretLen)))

		if called {
			t.Error("handler must not run without an identity")
		}
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s, want application/json", ct)
		}
		if strings.Contains(logs.String(), "ds_abc123_") {
			t.Error("token leaked into logs")
		}
		bodies = append(bodies, rec.Body.String())
	}

	for _, body := range bodies[1:] {
		if body != bodies[0] {
			t.Errorf("response bodies differ: %q vs %q", body, bodies[0])
		}
	}
	if !strings.Contains(bodies[0], `"code":"UNAUTHORIZED"`) {
		t.Errorf("body missing UNAUTHORIZED code: %s", bodies[0])
	}
}

func TestAuthenticate_MinDuration(t *testing.T) {
	mw := Authenticate(AuthConfig{
		Logger:      discardLogger(),
		Resolve:     func(r *http.Request) (model.Identity, error) { return model.Identity{}, auth.ErrUnauthorized },
		MinDuration: 50 * time.Millisecond,
	})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	start := time.Now()
	handler.ServeHTTP(httptest.NewRecorder(), requestWithToken(""))
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("auth returned after %s, want at least 50ms", elapsed)
	}
}

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{name: "bearer", header: "Bearer ds_abc123_secret", want: "ds_abc123_secret"},
		{name: "bearer with padding", header: "Bearer  ds_abc123_secret ", want: "ds_abc123_secret"},
		{name: "cookie", cookie: "ds_abc123_secret", want: "ds_abc123_secret"},
		{name: "basic scheme", header: "Basic dXNlcjpwYXNz", want: ""},
		{name: "nothing", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			if got := extractToken(req); got != tt.want {
				t.Errorf("extractToken() = %q, want %q", got, tt.want)
			}
		})
	}
}
