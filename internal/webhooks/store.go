package webhooks

import (
	"context"
	"database/sql"
	"sync"
	"time"
)

// Trigger is one recorded permit automation request.
type Trigger struct {
	ID        string    `json:"id"`
	DealID    int64     `json:"dealId"`
	Action    string    `json:"action"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
}

type TriggerStore interface {
	Record(ctx context.Context, t Trigger) error
}

type MemoryTriggerStore struct {
	mu       sync.Mutex
	triggers []Trigger
}

func NewMemoryTriggerStore() *MemoryTriggerStore {
	return &MemoryTriggerStore{}
}

func (s *MemoryTriggerStore) Record(ctx context.Context, t Trigger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.triggers = append(s.triggers, t)
	s.mu.Unlock()
	return nil
}

// All returns the recorded triggers in arrival order.
func (s *MemoryTriggerStore) All() []Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Trigger(nil), s.triggers...)
}

type PGTriggerStore struct {
	DB *sql.DB
}

func (s *PGTriggerStore) Record(ctx context.Context, t Trigger) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO permit_automation_triggers (id, deal_id, action, source, created_at) VALUES ($1, $2, $3, $4, $5)`,
		t.ID, t.DealID, t.Action, t.Source, t.CreatedAt,
	)
	return err
}

var (
	_ TriggerStore = (*MemoryTriggerStore)(nil)
	_ TriggerStore = (*PGTriggerStore)(nil)
)
