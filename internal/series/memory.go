package series

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryStore is a thread-safe in-memory Store. It backs tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]Reading
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]Reading)}
}

// Append adds r to the end of the source's series.
func (s *MemoryStore) Append(_ context.Context, sourceID string, r Reading) error {
	if sourceID == "" {
		return storeErr("append", sourceID, errors.New("empty source id"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sourceID] = append(s.data[sourceID], cloneReading(r))
	return nil
}

// Last returns a copy of the last appended reading.
func (s *MemoryStore) Last(_ context.Context, sourceID string) (*Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.data[sourceID]
	if len(src) == 0 {
		return nil, nil
	}
	last := cloneReading(src[len(src)-1])
	return &last, nil
}

// All returns a copy of the series, safe for callers to modify.
func (s *MemoryStore) All(_ context.Context, sourceID string) ([]Reading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.data[sourceID]
	out := make([]Reading, 0, len(src))
	for _, r := range src {
		out = append(out, cloneReading(r))
	}
	return out, nil
}

// Sources returns the ids with at least one reading.
func (s *MemoryStore) Sources(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.data))
	for id, readings := range s.data {
		if len(readings) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func cloneReading(r Reading) Reading {
	if r.CounterTotal != nil {
		r.CounterTotal = Int64(*r.CounterTotal)
	}
	return r
}
