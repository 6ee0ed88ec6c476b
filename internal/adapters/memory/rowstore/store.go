package rowstore

import (
	"context"
	"sync"

	"github.com/campus-tech-club/roster-api/internal/domain"
	"github.com/campus-tech-club/roster-api/internal/ports/out/rowstore"
)

// Store is an in-memory implementation of rowstore.Store.
// It is safe for concurrent use.
type Store[P any] struct {
	mu sync.RWMutex

	clone func(P) P
	byID  map[domain.EntryID]domain.Entry[P]
}

// NewStore returns an empty store. clone deep-copies payloads crossing the
// store boundary; nil copies values as-is.
func NewStore[P any](clone func(P) P) *Store[P] {
	return &Store[P]{
		clone: clone,
		byID:  make(map[domain.EntryID]domain.Entry[P]),
	}
}

// NewProfileStore returns a store for roster profiles.
func NewProfileStore() *Store[domain.Profile] {
	return NewStore(domain.Profile.Clone)
}

func (s *Store[P]) Select(ctx context.Context) ([]domain.Entry[P], error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Entry[P], 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, s.cloneEntry(e))
	}
	domain.SortByDisplayOrder(out)
	return out, nil
}

func (s *Store[P]) Insert(ctx context.Context, e domain.Entry[P]) (domain.Entry[P], error) {
	_ = ctx
	if e.ID == "" {
		return domain.Entry[P]{}, rowstore.ErrAlreadyExists // treat empty ID as invalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[e.ID]; ok {
		return domain.Entry[P]{}, rowstore.ErrAlreadyExists
	}
	s.byID[e.ID] = s.cloneEntry(e)
	return s.cloneEntry(e), nil
}

func (s *Store[P]) Update(ctx context.Context, id domain.EntryID, p rowstore.Patch[P]) (domain.Entry[P], error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[id]
	if !ok {
		return domain.Entry[P]{}, rowstore.ErrNotFound
	}
	if p.Payload != nil {
		e.Payload = *p.Payload
	}
	if p.DisplayOrder != nil {
		e.DisplayOrder = *p.DisplayOrder
	}
	e.UpdatedAt = p.UpdatedAt
	s.byID[id] = s.cloneEntry(e)
	return s.cloneEntry(e), nil
}

func (s *Store[P]) Delete(ctx context.Context, id domain.EntryID) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return rowstore.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *Store[P]) cloneEntry(e domain.Entry[P]) domain.Entry[P] {
	if s.clone != nil {
		e.Payload = s.clone(e.Payload)
	}
	return e
}
