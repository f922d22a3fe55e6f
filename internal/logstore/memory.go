package logstore

import (
	"context"
	"sync"
)

// MemoryStore keeps entries in process memory. It satisfies the contract
// except durability and is meant for tests and throwaway sessions.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []LogEntry
	lastID  uint64
	notify  *notifier
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore { return &MemoryStore{notify: newNotifier()} }

func (s *MemoryStore) Append(_ context.Context, lines []string) (uint64, error) {
	s.mu.Lock()
	if len(lines) == 0 {
		n := uint64(len(s.entries))
		s.mu.Unlock()
		return n, nil
	}
	for _, l := range lines {
		s.lastID++
		s.entries = append(s.entries, LogEntry{ID: s.lastID, Text: l})
	}
	n := uint64(len(s.entries))
	s.mu.Unlock()
	s.notify.broadcast()
	return n, nil
}

func (s *MemoryStore) Count(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.entries)), nil
}

// GetRange relies on ids being contiguous from 1, so entry id i sits at index i-1.
func (s *MemoryStore) GetRange(_ context.Context, lowID, highID uint64) ([]LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	low, high, ok := normalizeRange(lowID, highID, s.lastID)
	if !ok {
		return []LogEntry{}, nil
	}
	out := make([]LogEntry, high-low+1)
	copy(out, s.entries[low-1:high])
	return out, nil
}

func (s *MemoryStore) Clear(context.Context) error {
	s.mu.Lock()
	s.entries = nil
	s.lastID = 0
	s.mu.Unlock()
	s.notify.broadcast()
	return nil
}

func (s *MemoryStore) Changes() <-chan struct{} { return s.notify.changes() }

func (s *MemoryStore) Close() error { return nil }
