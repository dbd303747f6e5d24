package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanliu110/ALmoMD/pkg/models"
)

// MemoryStore keeps interval entries in process memory, in insertion
// order per condition.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]Entry
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string][]Entry),
	}
}

func (s *MemoryStore) Append(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.entries[e.Condition] = append(s.entries[e.Condition], e)
	return nil
}

func (s *MemoryStore) Count(ctx context.Context, condition string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[condition]), nil
}

func (s *MemoryStore) LastCounting(ctx context.Context, condition string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.entries[condition]
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[len(entries)-1].Counting, nil
}

func (s *MemoryStore) Window(ctx context.Context, condition string, n int) ([]models.UncertaintyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.entries[condition]
	if n > len(entries) {
		n = len(entries)
	}
	recs := make([]models.UncertaintyRecord, n)
	for i := 0; i < n; i++ {
		recs[i] = entries[i].Record
	}
	return recs, nil
}

func (s *MemoryStore) Reset(ctx context.Context, condition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, condition)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
