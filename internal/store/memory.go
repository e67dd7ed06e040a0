package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pagetrail/pagetrail/internal/domain"
	"github.com/pagetrail/pagetrail/internal/store/schema"
)

type memoryStore struct {
	mu       sync.RWMutex
	byPath   map[string]schema.PathHistory
	segments []string
	hasSegs  bool
}

// NewMemoryStore creates an in-process Store backed by maps. It is used by
// tests and by single-node deployments that do not need durable history.
func NewMemoryStore() Store {
	return &memoryStore{
		byPath: make(map[string]schema.PathHistory),
	}
}

func (s *memoryStore) InsertPathHistory(_ context.Context, entry schema.PathHistory) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byPath[entry.Path]; ok {
		return false, nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.byPath[entry.Path] = entry
	return true, nil
}

func (s *memoryStore) GetPathHistory(_ context.Context, path string) (*schema.PathHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byPath[path]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *memoryStore) GetPathHistoryForLanguage(_ context.Context, path string, language domain.LanguageID) (*schema.PathHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byPath[path]
	if !ok || entry.LanguageID != language {
		return nil, nil
	}
	return &entry, nil
}

func (s *memoryStore) ListPathHistoryByPage(_ context.Context, pageID int64, language *domain.LanguageID) ([]schema.PathHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []schema.PathHistory
	for _, entry := range s.byPath {
		if entry.PagesID != pageID {
			continue
		}
		if language != nil && entry.LanguageID != *language {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].Path < entries[j].Path
	})

	return entries, nil
}

func (s *memoryStore) DeletePathHistory(_ context.Context, pageID int64, path string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.byPath[path]
	if !ok || entry.PagesID != pageID {
		return 0, nil
	}
	delete(s.byPath, path)
	return 1, nil
}

func (s *memoryStore) DeletePathHistoryByPage(_ context.Context, pageID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for path, entry := range s.byPath {
		if entry.PagesID == pageID {
			delete(s.byPath, path)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memoryStore) DeleteByPath(_ context.Context, path string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byPath[path]; !ok {
		return 0, nil
	}
	delete(s.byPath, path)
	return 1, nil
}

func (s *memoryStore) DeleteAllPathHistory(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byPath = make(map[string]schema.PathHistory)
	return nil
}

func (s *memoryStore) DistinctRootSegments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for path := range s.byPath {
		segment := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 2)[0]
		seen[segment] = struct{}{}
	}

	segments := make([]string, 0, len(seen))
	for segment := range seen {
		segments = append(segments, segment)
	}
	sort.Strings(segments)
	return segments, nil
}

func (s *memoryStore) GetRootSegments(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasSegs {
		return nil, nil
	}
	segments := make([]string, len(s.segments))
	copy(segments, s.segments)
	return segments, nil
}

func (s *memoryStore) SetRootSegments(_ context.Context, segments []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.segments = make([]string, len(segments))
	copy(s.segments, segments)
	s.hasSegs = true
	return nil
}
