package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/daybook/daybook/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// MigrationFiles returns the up or down migration paths in apply order.
// Down migrations are returned newest first.
func MigrationFiles(direction string) ([]string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return nil, err
	}

	paths, err := filepath.Glob(filepath.Join(root, "migrations", "*."+direction+".sql"))
	if err != nil {
		return nil, fmt.Errorf("glob migrations: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no %s migrations found", direction)
	}

	sort.Strings(paths)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	}
	return paths, nil
}

// ResetSchema drops and recreates every table from migrations/*.sql.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, direction := range []string{"down", "up"} {
		paths, err := MigrationFiles(direction)
		if err != nil {
			return err
		}
		for _, p := range paths {
			sql, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read migration %s: %w", filepath.Base(p), err)
			}
			if _, err := pool.Exec(ctx, string(sql)); err != nil {
				return fmt.Errorf("apply migration %s: %w", filepath.Base(p), err)
			}
		}
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a test user with a unique email.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	id := ulid.Make().String()
	return &model.User{
		ID:        id,
		Email:     strings.ToLower(id) + "@example.test",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

// NewTestTextMoment creates a TEXT moment owned by ownerID dated at createdAt.
func NewTestTextMoment(t testing.TB, ownerID, text string, createdAt time.Time) *model.Moment {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &model.Moment{
		ID:        ulid.Make().String(),
		OwnerID:   ownerID,
		Type:      model.MomentText,
		Content:   model.TextContent(text),
		CreatedAt: createdAt.UTC(),
		UpdatedAt: now,
	}
}

// NewTestMediaMoment creates a media moment pointing at ref.
func NewTestMediaMoment(t testing.TB, ownerID string, typ model.MomentType, ref string, createdAt time.Time) *model.Moment {
	t.Helper()
	m := NewTestTextMoment(t, ownerID, ref, createdAt)
	m.Type = typ
	m.Content = model.MediaContent(ref)
	return m
}

// Date returns midnight UTC of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
