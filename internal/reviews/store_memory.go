package reviews

import (
	"context"
	"sort"
	"sync"
)

type memoryEntry struct {
	review Review
	seq    uint64
}

// MemoryStore keeps reviews for the life of the process. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]memoryEntry
	nextSeq uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Put(ctx context.Context, review Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := clone(review)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byID[review.ID]
	if !ok {
		s.nextSeq++
		entry.seq = s.nextSeq
	}
	entry.review = stored
	s.byID[review.ID] = entry
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Review, error) {
	if err := ctx.Err(); err != nil {
		return Review{}, err
	}
	s.mu.RLock()
	entry, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return Review{}, ErrNotFound
	}
	return clone(entry.review), nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, n int) ([]Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return []Review{}, nil
	}

	s.mu.RLock()
	entries := make([]memoryEntry, 0, len(s.byID))
	for _, e := range s.byID {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.review.CreatedAt.Equal(b.review.CreatedAt) {
			return a.review.CreatedAt.After(b.review.CreatedAt)
		}
		return a.seq < b.seq
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	out := make([]Review, len(entries))
	for i, e := range entries {
		out[i] = clone(e.review)
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
