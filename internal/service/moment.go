// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/daybook/daybook/internal/media"
	"github.com/daybook/daybook/internal/metrics"
	"github.com/daybook/daybook/internal/model"
	"github.com/daybook/daybook/internal/repository"
	"github.com/oklog/ulid/v2"
)

// MomentRepository persists moments scoped by owner.
type MomentRepository interface {
	CreateMoment(ctx context.Context, m *model.Moment) error
	GetMomentForOwner(ctx context.Context, id, ownerID string) (*model.Moment, error)
	ListMomentsByOwner(ctx context.Context, ownerID string, filter repository.MomentFilter) ([]*model.Moment, error)
	UpdateMoment(ctx context.Context, m *model.Moment) error
	DeleteMoment(ctx context.Context, id, ownerID string) error
}

// CleanupQueue accepts media references whose deletion must be retried.
type CleanupQueue interface {
	Enqueue(ctx context.Context, ref string) error
}

// ListInput narrows a moment listing.
type ListInput struct {
	From  *time.Time
	To    *time.Time
	Types []model.MomentType
}

// MomentService validates moment requests and applies their storage effects.
type MomentService struct {
	repo    MomentRepository
	store   media.Store
	cleanup CleanupQueue
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewMomentService creates a new MomentService. cleanup may be nil, in which
// case failed media deletions are only logged.
func NewMomentService(repo MomentRepository, store media.Store, cleanup CleanupQueue, logger *slog.Logger, recorder metrics.Recorder) *MomentService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MomentService{
		repo:    repo,
		store:   store,
		cleanup: cleanup,
		logger:  logger.With("component", "service.moment"),
		metrics: recorder,
		now:     time.Now,
	}
}

// SetClock overrides the time source used for "now".
func (s *MomentService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns the caller's moments, newest logical date first.
func (s *MomentService) List(ctx context.Context, identity model.Identity, input ListInput) ([]*model.Moment, error) {
	if identity.IsZero() {
		return nil, ErrUnauthorized
	}
	if input.From != nil && input.To != nil && input.To.Before(*input.From) {
		return nil, ErrInvalidDate
	}

	moments, err := s.repo.ListMomentsByOwner(ctx, identity.UserID, repository.MomentFilter{
		From:  input.From,
		To:    input.To,
		Types: input.Types,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list moments: %w", err)
	}
	return moments, nil
}

// Create validates req and persists a new moment owned by the caller.
// Every validation runs before the media store is touched.
func (s *MomentService) Create(ctx context.Context, identity model.Identity, req MomentRequest) (*model.Moment, error) {
	if identity.IsZero() {
		return nil, ErrUnauthorized
	}

	if req.Type == "" {
		return nil, missingField(FieldType)
	}
	typ, ok := model.ParseMomentType(req.Type)
	if !ok {
		return nil, ErrInvalidType
	}

	if err := s.checkContent(typ, req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	createdAt, supplied, err := ResolveDate(req.Date, now)
	if err != nil {
		return nil, err
	}
	if !supplied {
		createdAt = now
	}

	content, saved, err := s.resolveContent(ctx, typ, req)
	if err != nil {
		return nil, err
	}

	moment := &model.Moment{
		ID:        ulid.Make().String(),
		OwnerID:   identity.UserID,
		Type:      typ,
		Content:   content,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}

	if err := s.repo.CreateMoment(ctx, moment); err != nil {
		if saved {
			s.releaseMedia(ctx, content.Value(), "create_failed")
		}
		return nil, fmt.Errorf("failed to create moment: %w", err)
	}

	s.metrics.IncMomentCreated(string(typ))
	return moment, nil
}

// Update replaces the content of a moment and optionally its date.
// The stored type governs which content field is required.
func (s *MomentService) Update(ctx context.Context, identity model.Identity, id string, req MomentRequest) (*model.Moment, error) {
	if identity.IsZero() {
		return nil, ErrUnauthorized
	}

	existing, err := s.load(ctx, identity, id)
	if err != nil {
		return nil, err
	}

	if err := s.checkContent(existing.Type, req); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	createdAt, supplied, err := ResolveDate(req.Date, now)
	if err != nil {
		return nil, err
	}

	content, saved, err := s.resolveContent(ctx, existing.Type, req)
	if err != nil {
		return nil, err
	}

	oldRef, hadMedia := existing.MediaRef()

	updated := *existing
	updated.Content = content
	updated.UpdatedAt = now
	if supplied {
		updated.CreatedAt = createdAt
	}

	if err := s.repo.UpdateMoment(ctx, &updated); err != nil {
		// The old bytes are still referenced; only the new upload is orphaned.
		if saved {
			s.releaseMedia(ctx, content.Value(), "update_failed")
		}
		if errors.Is(err, repository.ErrMomentNotFound) {
			return nil, ErrMomentNotFound
		}
		return nil, fmt.Errorf("failed to update moment: %w", err)
	}

	// The new reference is durable; the old bytes can go.
	if hadMedia && oldRef != content.Value() {
		s.releaseMedia(ctx, oldRef, "replaced")
	}

	s.metrics.IncMomentUpdated(string(existing.Type))
	return &updated, nil
}

// Delete removes a moment and releases its media.
// The record is the source of truth: media release never fails the call.
func (s *MomentService) Delete(ctx context.Context, identity model.Identity, id string) error {
	if identity.IsZero() {
		return ErrUnauthorized
	}

	existing, err := s.load(ctx, identity, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteMoment(ctx, existing.ID, identity.UserID); err != nil {
		if errors.Is(err, repository.ErrMomentNotFound) {
			return ErrMomentNotFound
		}
		return fmt.Errorf("failed to delete moment: %w", err)
	}

	if ref, ok := existing.MediaRef(); ok {
		s.releaseMedia(ctx, ref, "deleted")
	}

	s.metrics.IncMomentDeleted(string(existing.Type))
	return nil
}

func (s *MomentService) load(ctx context.Context, identity model.Identity, id string) (*model.Moment, error) {
	if id == "" {
		return nil, ErrMomentNotFound
	}
	m, err := s.repo.GetMomentForOwner(ctx, id, identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrMomentNotFound) {
			return nil, ErrMomentNotFound
		}
		return nil, fmt.Errorf("failed to get moment: %w", err)
	}
	return m, nil
}

// checkContent verifies the content-bearing field for typ is present
// without performing any writes.
func (s *MomentService) checkContent(typ model.MomentType, req MomentRequest) error {
	if !typ.IsMedia() {
		if !req.hasText() {
			return missingField(FieldContent)
		}
		return nil
	}

	if req.hasFile() {
		return nil
	}
	// Without bytes, only an externally hosted URL can stand in for the file.
	// A reference inside the store is refused so callers cannot adopt
	// (and later delete) media they did not upload.
	if req.hasText() && isExternalURL(req.Text) && !s.store.IsManaged(req.Text) {
		return nil
	}
	return missingField(FieldFile)
}

// resolveContent builds the content variant, saving uploaded bytes when
// present. saved reports whether a new store-managed reference was created.
func (s *MomentService) resolveContent(ctx context.Context, typ model.MomentType, req MomentRequest) (model.Content, bool, error) {
	if !typ.IsMedia() {
		return model.TextContent(req.Text), false, nil
	}
	if !req.hasFile() {
		return model.MediaContent(req.Text), false, nil
	}

	body := &countingReader{r: req.File.Body}
	ref, err := s.store.Save(ctx, req.File.Filename, body)
	if err != nil {
		s.metrics.IncMediaSaveFailed()
		if errors.Is(err, media.ErrTooLarge) {
			return model.Content{}, false, ErrMediaTooLarge
		}
		return model.Content{}, false, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	s.metrics.ObserveMediaSaved(body.n)
	return model.MediaContent(ref), true, nil
}

// releaseMedia deletes store-managed bytes on a best-effort basis.
// Unmanaged references (external URLs) are never touched. Failures are
// logged and handed to the cleanup queue.
func (s *MomentService) releaseMedia(ctx context.Context, ref, reason string) {
	if !s.store.IsManaged(ref) {
		return
	}

	err := s.store.Delete(ctx, ref)
	if err == nil {
		s.metrics.IncMediaCleanup(metrics.CleanupDeleted)
		return
	}

	s.logger.Warn("media_cleanup_failed",
		"ref", ref,
		"reason", reason,
		"error", err,
	)

	if s.cleanup == nil {
		return
	}
	// The request context may already be cancelled; the queue write must still happen.
	if qerr := s.cleanup.Enqueue(context.WithoutCancel(ctx), ref); qerr != nil {
		s.logger.Error("media_cleanup_enqueue_failed", "ref", ref, "error", qerr)
		return
	}
	s.metrics.IncMediaCleanup(metrics.CleanupQueued)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
