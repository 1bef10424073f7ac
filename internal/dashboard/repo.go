package dashboard

import (
	"context"
	"time"
)

// Repo persists plans and appointments. Lists are newest first.
type Repo interface {
	CreatePlan(ctx context.Context, plan Plan) error
	GetPlan(ctx context.Context, planID string) (Plan, error)
	ListPlans(ctx context.Context, userID string) ([]Plan, error)
	SetPlanStatus(ctx context.Context, planID string, status PlanStatus, at time.Time) (Plan, error)

	SaveAppointment(ctx context.Context, appt Appointment) error
	GetAppointment(ctx context.Context, userID, apptID string) (Appointment, error)
	ListAppointments(ctx context.Context, userID string) ([]Appointment, error)
}
