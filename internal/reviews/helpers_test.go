package reviews

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"permit-backend/internal/analysis"
	"permit-backend/internal/shared/clock"
)

var (
	testEpoch = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	pngPlan   = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
)

// memObjects is an in-memory object.ObjectStore.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	saveErr error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) SaveWithKey(ctx context.Context, key, contentType string, r io.Reader) (int64, error) {
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return int64(len(data)), nil
}

func (m *memObjects) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, errors.New("no such key"))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// recordingScheduler captures scheduled IDs without running anything.
type recordingScheduler struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (s *recordingScheduler) Schedule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.ids = append(s.ids, id)
	return nil
}

func (s *recordingScheduler) scheduled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ids...)
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("review-%d", n)
	}
}

func newTestService(t *testing.T) (*Service, *MemoryStore, *memObjects, *recordingScheduler) {
	t.Helper()
	store := NewMemoryStore()
	objects := newMemObjects()
	sched := &recordingScheduler{}
	svc := &Service{
		Store:     store,
		Objects:   objects,
		Scheduler: sched,
		Clock:     clock.NewFixed(testEpoch),
		NewID:     sequentialIDs(),
	}
	return svc, store, objects, sched
}

func staticAnalyzer(a analysis.Analysis, err error) analysis.Analyzer {
	return analysis.Func(func(ctx context.Context, in analysis.Input) (analysis.Analysis, error) {
		return a, err
	})
}
