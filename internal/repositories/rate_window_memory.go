package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/prospector/internal/models"
)

type windowEntry struct {
	window    models.RateWindow
	expiresAt time.Time
}

// MemoryWindowStore holds fixed rate windows in process memory
type MemoryWindowStore struct {
	mu      sync.Mutex
	windows map[string]*windowEntry
}

// NewMemoryWindowStore creates an empty window store
func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{windows: make(map[string]*windowEntry)}
}

// Hit records one request for identifier. A missing or elapsed window starts
// over at 1; a full window is returned unchanged with allowed=false.
func (s *MemoryWindowStore) Hit(ctx context.Context, identifier string, length time.Duration, max int, now time.Time) (models.RateWindow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.windows[identifier]
	if !ok || now.After(entry.window.WindowStart.Add(length)) {
		entry = &windowEntry{
			window:    models.RateWindow{Identifier: identifier, WindowStart: now, Count: 1},
			expiresAt: now.Add(length),
		}
		s.windows[identifier] = entry
		return entry.window, true, nil
	}

	if entry.window.Count >= max {
		return entry.window, false, nil
	}

	entry.window.Count++
	return entry.window, true, nil
}

// Prune drops windows that expired before now and returns how many were removed
func (s *MemoryWindowStore) Prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, entry := range s.windows {
		if now.After(entry.expiresAt) {
			delete(s.windows, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked identifiers
func (s *MemoryWindowStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
