package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daybook/daybook/internal/model"
	"github.com/jackc/pgx/v5"
)

// Common errors for session repository operations.
var (
	ErrSessionNotFound = errors.New("session not found")
)

const sessionColumns = `id, user_id, token_hash, token_prefix, expires_at, revoked_at, last_used_at, created_at`

// CreateSession inserts a new session.
func (r *Repository) CreateSession(ctx context.Context, s *model.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token_hash, token_prefix, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.UserID,
		s.TokenHash,
		s.TokenPrefix,
		s.ExpiresAt,
		s.CreatedAt,
	)

	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSessionByID retrieves a session by its ID.
func (r *Repository) GetSessionByID(ctx context.Context, id string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return s, nil
}

// GetSessionsByPrefix retrieves all unrevoked sessions matching a token prefix.
// Used during authentication to find candidates for hash verification.
func (r *Repository) GetSessionsByPrefix(ctx context.Context, prefix string) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE token_prefix = $1 AND revoked_at IS NULL
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions by prefix: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// ListSessionsByUserID retrieves all sessions for a user, newest first.
func (r *Repository) ListSessionsByUserID(ctx context.Context, userID string) ([]*model.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// RevokeSession revokes a session by setting revoked_at.
func (r *Repository) RevokeSession(ctx context.Context, id string) error {
	query := `
		UPDATE sessions
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`

	result, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	return nil
}

// TouchSession updates the last_used_at timestamp.
// Should be called asynchronously after successful authentication.
func (r *Repository) TouchSession(ctx context.Context, id string) error {
	query := `
		UPDATE sessions
		SET last_used_at = $2
		WHERE id = $1
	`

	_, err := r.pool.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}

	return nil
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var s model.Session
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.TokenHash,
		&s.TokenPrefix,
		&s.ExpiresAt,
		&s.RevokedAt,
		&s.LastUsedAt,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
