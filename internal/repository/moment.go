package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daybook/daybook/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// Common errors for moment repository operations.
var (
	ErrMomentNotFound = errors.New("moment not found")
	ErrMomentExists   = errors.New("moment id already exists")
	ErrOwnerNotFound  = errors.New("moment owner does not exist")
)

// MomentFilter narrows a moment listing.
// From and To bound created_at inclusively; Types restricts the kinds returned.
type MomentFilter struct {
	From  *time.Time
	To    *time.Time
	Types []model.MomentType
}

const momentColumns = `id, user_id, type::text, content, created_at, updated_at`

// CreateMoment inserts a new moment.
func (r *Repository) CreateMoment(ctx context.Context, m *model.Moment) error {
	query := `
		INSERT INTO moments (id, user_id, type, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		m.ID,
		m.OwnerID,
		string(m.Type),
		m.Content.Value(),
		m.CreatedAt,
		m.UpdatedAt,
	)

	if err != nil {
		switch {
		case isUniqueViolation(err):
			return ErrMomentExists
		case isForeignKeyViolation(err):
			return ErrOwnerNotFound
		}
		return fmt.Errorf("failed to create moment: %w", err)
	}

	return nil
}

// GetMomentForOwner retrieves a moment by ID, scoped to its owner.
// A moment owned by someone else is reported as ErrMomentNotFound.
func (r *Repository) GetMomentForOwner(ctx context.Context, id, ownerID string) (*model.Moment, error) {
	query := `SELECT ` + momentColumns + `
		FROM moments
		WHERE id = $1 AND user_id = $2
	`

	m, err := scanMoment(r.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMomentNotFound
		}
		return nil, fmt.Errorf("failed to get moment: %w", err)
	}

	return m, nil
}

// ListMomentsByOwner returns the owner's moments, newest logical date first.
// Ties on created_at fall back to id; ids are ULIDs so this keeps insertion order.
func (r *Repository) ListMomentsByOwner(ctx context.Context, ownerID string, filter MomentFilter) ([]*model.Moment, error) {
	query := `SELECT ` + momentColumns + `
		FROM moments
		WHERE user_id = $1
	`
	args := []any{ownerID}
	argIndex := 2

	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIndex)
		args = append(args, *filter.From)
		argIndex++
	}

	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIndex)
		args = append(args, *filter.To)
		argIndex++
	}

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		query += fmt.Sprintf(" AND type::text = ANY($%d)", argIndex)
		args = append(args, pq.Array(types))
	}

	query += " ORDER BY created_at DESC, id ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list moments: %w", err)
	}
	defer rows.Close()

	moments := make([]*model.Moment, 0)
	for rows.Next() {
		m, err := scanMoment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan moment: %w", err)
		}
		moments = append(moments, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating moments: %w", err)
	}

	return moments, nil
}

// UpdateMoment writes the mutable fields of a moment.
// The type and owner are never changed; the owner scopes the write.
func (r *Repository) UpdateMoment(ctx context.Context, m *model.Moment) error {
	query := `
		UPDATE moments
		SET content = $3, created_at = $4, updated_at = $5
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.pool.Exec(ctx, query,
		m.ID,
		m.OwnerID,
		m.Content.Value(),
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update moment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrMomentNotFound
	}

	return nil
}

// DeleteMoment removes a moment owned by ownerID.
func (r *Repository) DeleteMoment(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM moments WHERE id = $1 AND user_id = $2`

	result, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete moment: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrMomentNotFound
	}

	return nil
}

// CountMomentsByOwner returns how many moments a user has.
func (r *Repository) CountMomentsByOwner(ctx context.Context, ownerID string) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM moments WHERE user_id = $1`, ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count moments: %w", err)
	}
	return n, nil
}

// ListMediaReferences returns every media content string with the given prefix.
// Used by the cleanup sweep to tell live references from orphans.
func (r *Repository) ListMediaReferences(ctx context.Context, prefix string) (map[string]struct{}, error) {
	query := `
		SELECT content
		FROM moments
		WHERE type <> 'TEXT' AND starts_with(content, $1)
	`

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list media references: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]struct{})
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("failed to scan media reference: %w", err)
		}
		refs[ref] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media references: %w", err)
	}

	return refs, nil
}

// scanMoment scans a row into a Moment, restoring the content variant from the type.
func scanMoment(row pgx.Row) (*model.Moment, error) {
	var (
		m       model.Moment
		rawType string
		content string
	)
	err := row.Scan(
		&m.ID,
		&m.OwnerID,
		&rawType,
		&content,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Type = model.MomentType(rawType)
	m.Content = model.ContentFor(m.Type, content)
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}
