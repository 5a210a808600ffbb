package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/daybook/daybook/internal/media"
	"github.com/daybook/daybook/internal/model"
	"github.com/daybook/daybook/internal/repository"
)

// memoryRepo is an in-memory MomentRepository with the same ordering
// and ownership rules as the PostgreSQL repository.
type memoryRepo struct {
	mu        sync.RWMutex
	moments   map[string]model.Moment
	createErr error
	updateErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{moments: make(map[string]model.Moment)}
}

func (r *memoryRepo) CreateMoment(ctx context.Context, m *model.Moment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.moments[m.ID]; ok {
		return repository.ErrMomentExists
	}
	r.moments[m.ID] = *m
	return nil
}

func (r *memoryRepo) GetMomentForOwner(ctx context.Context, id, ownerID string) (*model.Moment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.moments[id]
	if !ok || m.OwnerID != ownerID {
		return nil, repository.ErrMomentNotFound
	}
	return &m, nil
}

func (r *memoryRepo) ListMomentsByOwner(ctx context.Context, ownerID string, filter repository.MomentFilter) ([]*model.Moment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Moment, 0)
	for _, m := range r.moments {
		if m.OwnerID != ownerID {
			continue
		}
		if filter.From != nil && m.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && m.CreatedAt.After(*filter.To) {
			continue
		}
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, m.Type) {
			continue
		}
		m := m
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryRepo) UpdateMoment(ctx context.Context, m *model.Moment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	existing, ok := r.moments[m.ID]
	if !ok || existing.OwnerID != m.OwnerID {
		return repository.ErrMomentNotFound
	}
	existing.Content = m.Content
	existing.CreatedAt = m.CreatedAt
	existing.UpdatedAt = m.UpdatedAt
	r.moments[m.ID] = existing
	return nil
}

func (r *memoryRepo) DeleteMoment(ctx context.Context, id, ownerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.moments[id]
	if !ok || m.OwnerID != ownerID {
		return repository.ErrMomentNotFound
	}
	delete(r.moments, id)
	return nil
}

func (r *memoryRepo) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.moments)
}

// memoryStore is an in-memory media.Store that records every call.
type memoryStore struct {
	mu        sync.Mutex
	files     map[string][]byte
	seq       int
	saves     int
	deletes   []string
	saveErr   error
	deleteErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: make(map[string][]byte)}
}

func (s *memoryStore) Save(ctx context.Context, filename string, body io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return "", s.saveErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.seq++
	ref := fmt.Sprintf("/uploads/%03d-%s", s.seq, filename)
	s.files[ref] = data
	return ref, nil
}

func (s *memoryStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes = append(s.deletes, ref)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.files, ref)
	return nil
}

func (s *memoryStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[ref]
	if !ok {
		return nil, media.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memoryStore) IsManaged(ref string) bool {
	return strings.HasPrefix(ref, "/uploads/") && len(ref) > len("/uploads/")
}

func (s *memoryStore) calls() (saves int, deletes []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves, append([]string(nil), s.deletes...)
}

type memoryQueue struct {
	mu   sync.Mutex
	refs []string
	err  error
}

func (q *memoryQueue) Enqueue(ctx context.Context, ref string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.refs = append(q.refs, ref)
	return nil
}

func (q *memoryQueue) queued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.refs...)
}

var errBoom = errors.New("boom")
