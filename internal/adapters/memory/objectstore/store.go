package objectstore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/campus-tech-club/roster-api/internal/ports/out/objectstore"
)

// Store is an in-memory implementation of objectstore.Store.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string][]byte
	types   map[string]string
}

func NewStore(baseURL string) *Store {
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (s *Store) Upload(ctx context.Context, key string, contentType string, r io.Reader) (string, error) {
	_ = ctx
	key, err := objectstore.CleanKey(key)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = buf.Bytes()
	s.types[key] = contentType
	return s.baseURL + "/" + key, nil
}

func (s *Store) Remove(ctx context.Context, url string) error {
	_ = ctx
	key, ok := s.keyFromURL(url)
	if !ok {
		return objectstore.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return objectstore.ErrNotFound
	}
	delete(s.objects, key)
	delete(s.types, key)
	return nil
}

// Get returns a copy of the object behind url.
func (s *Store) Get(url string) ([]byte, string, bool) {
	key, ok := s.keyFromURL(url)
	if !ok {
		return nil, "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[key]
	if !ok {
		return nil, "", false
	}
	return bytes.Clone(b), s.types[key], true
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// ServeHTTP serves stored objects by key. Mount it behind http.StripPrefix
// for the media base path.
func (s *Store) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	s.mu.RLock()
	b, ok := s.objects[key]
	contentType := s.types[key]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	http.ServeContent(w, r, key, time.Time{}, bytes.NewReader(b))
}

func (s *Store) keyFromURL(url string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}
