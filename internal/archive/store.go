package archive

import (
	"sort"
	"sync"
	"time"

	"github.com/star/skywatch/internal/heavens"
)

// Store provides thread-safe access to the latest table per source.
type Store struct {
	mu     sync.RWMutex
	tables map[string]*heavens.Table
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{tables: make(map[string]*heavens.Table)}
}

// Get returns the current table for source, or nil if none has been loaded.
func (s *Store) Get(source string) *heavens.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables[source]
}

// Set replaces the current table for t.Source.
func (s *Store) Set(t *heavens.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[t.Source] = t
}

// Sources returns the names of loaded sources, sorted.
func (s *Store) Sources() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of loaded sources.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables)
}

// AgeSeconds returns the age of the table for source in seconds.
// Returns -1 if no table is loaded.
func (s *Store) AgeSeconds(source string) float64 {
	t := s.Get(source)
	if t == nil {
		return -1
	}
	return time.Since(t.FetchedAt).Seconds()
}
