package dashboard

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemoryRepo struct {
	mu    sync.RWMutex
	plans map[string]Plan
	appts map[string]Appointment
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{plans: make(map[string]Plan), appts: make(map[string]Appointment)}
}

func (r *MemoryRepo) CreatePlan(ctx context.Context, plan Plan) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[plan.ID] = plan
	return nil
}

func (r *MemoryRepo) GetPlan(ctx context.Context, planID string) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	plan, ok := r.plans[planID]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return plan, nil
}

func (r *MemoryRepo) ListPlans(ctx context.Context, userID string) ([]Plan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Plan, 0)
	for _, p := range r.plans {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

func (r *MemoryRepo) SetPlanStatus(ctx context.Context, planID string, status PlanStatus, at time.Time) (Plan, error) {
	if err := ctx.Err(); err != nil {
		return Plan{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	plan, ok := r.plans[planID]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	plan.Status = status
	plan.UpdatedAt = at
	r.plans[planID] = plan
	return plan, nil
}

func (r *MemoryRepo) SaveAppointment(ctx context.Context, appt Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appts[appt.ID] = appt
	return nil
}

func (r *MemoryRepo) GetAppointment(ctx context.Context, userID, apptID string) (Appointment, error) {
	if err := ctx.Err(); err != nil {
		return Appointment{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.appts[apptID]
	if !ok || appt.UserID != userID {
		return Appointment{}, ErrAppointmentNotFound
	}
	return appt, nil
}

func (r *MemoryRepo) ListAppointments(ctx context.Context, userID string) ([]Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Appointment, 0)
	for _, a := range r.appts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scheduled.Equal(out[j].Scheduled) {
			return out[i].ID > out[j].ID
		}
		return out[i].Scheduled.After(out[j].Scheduled)
	})
	return out, nil
}

var _ Repo = (*MemoryRepo)(nil)
