package memory

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/kgellert/trimer-client/internal/storage"
)

type Storage struct {
	mu     sync.RWMutex
	caches map[string]map[string]storage.Entry
}

func New() *Storage {
	return &Storage{caches: make(map[string]map[string]storage.Entry)}
}

func (s *Storage) Put(_ context.Context, cache string, e storage.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.caches[cache]
	if entries == nil {
		entries = make(map[string]storage.Entry)
		s.caches[cache] = entries
	}
	entries[e.URL] = clone(e)
	return nil
}

func (s *Storage) Match(_ context.Context, cache, url string) (storage.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.caches[cache][url]
	if !ok {
		return storage.Entry{}, storage.ErrNotFound
	}
	return clone(e), nil
}

func (s *Storage) Keys(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.caches))
	for name, entries := range s.caches {
		if len(entries) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Storage) Delete(_ context.Context, caches ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range caches {
		delete(s.caches, name)
	}
	return nil
}

func (s *Storage) Close() error { return nil }

func clone(e storage.Entry) storage.Entry {
	if e.Header != nil {
		e.Header = e.Header.Clone()
	} else {
		e.Header = http.Header{}
	}
	e.Body = append([]byte(nil), e.Body...)
	return e
}
