package idempotency

import (
	"bytes"
	"context"
	"sync"

	"github.com/campus-tech-club/roster-api/internal/ports/out/idempotency"
)

// Store is an in-memory implementation of idempotency.Store.
// It is safe for concurrent use. Bodies are copied on the way in and out, and
// records older than the replay window are dropped on Put.
type Store struct {
	mu sync.RWMutex
	m  map[idempotency.Fingerprint]idempotency.Record
}

func NewStore() *Store {
	return &Store{
		m: make(map[idempotency.Fingerprint]idempotency.Record),
	}
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.m[fp]
	if !ok {
		return idempotency.Record{}, false, nil
	}
	rec.Body = bytes.Clone(rec.Body)
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	_ = ctx
	rec.Body = bytes.Clone(rec.Body)
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, old := range s.m {
		if !old.Fresh(rec.CreatedAt) {
			delete(s.m, k)
		}
	}
	s.m[fp] = rec
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
