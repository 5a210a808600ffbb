package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/daybook/daybook/internal/model"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already exists")
)

const userColumns = `id, email::text, created_at`

// CreateUser inserts a user. Emails are unique regardless of case.
func (r *Repository) CreateUser(ctx context.Context, user *model.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, email, created_at) VALUES ($1, $2, $3)`,
		user.ID, user.Email, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by id.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetUserByEmail retrieves a user by email, ignoring case.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// EnsureUser returns the user owning user.Email, inserting user when no
// such row exists. created reports whether the insert happened. The
// statement is a single upsert, so concurrent callers agree on one row.
func (r *Repository) EnsureUser(ctx context.Context, user *model.User) (*model.User, bool, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	// The no-op update makes RETURNING yield the existing row on conflict;
	// xmax is zero only for a freshly inserted tuple.
	query := `
		INSERT INTO users (id, email, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE SET email = users.email
		RETURNING ` + userColumns + `, (xmax = 0) AS inserted
	`

	var (
		got      model.User
		inserted bool
	)
	err := r.pool.QueryRow(ctx, query, user.ID, user.Email, user.CreatedAt).
		Scan(&got.ID, &got.Email, &got.CreatedAt, &inserted)
	if err != nil {
		return nil, false, fmt.Errorf("failed to ensure user: %w", err)
	}
	return &got, inserted, nil
}

func (r *Repository) getUser(ctx context.Context, query string, arg string) (*model.User, error) {
	var user model.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
