package dashboard

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type PGRepo struct {
	DB *sql.DB
}

const (
	planColumns        = `id, user_id, name, file_name, status, COALESCE(review_id, ''), uploaded_at, updated_at`
	appointmentColumns = `id, user_id, type, scheduled, notes, location, status, created_at`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PGRepo) CreatePlan(ctx context.Context, plan Plan) error {
	const query = `
INSERT INTO plans (id, user_id, name, file_name, status, review_id, uploaded_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $7)`
	_, err := r.DB.ExecContext(ctx, query,
		plan.ID, plan.UserID, plan.Name, plan.FileName, string(plan.Status), plan.ReviewID, plan.UploadedAt,
	)
	return err
}

func (r *PGRepo) GetPlan(ctx context.Context, planID string) (Plan, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, planID)
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Plan{}, ErrPlanNotFound
	}
	return plan, err
}

func (r *PGRepo) ListPlans(ctx context.Context, userID string) ([]Plan, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+planColumns+` FROM plans WHERE user_id = $1 ORDER BY uploaded_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Plan, 0)
	for rows.Next() {
		plan, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, plan)
	}
	return out, rows.Err()
}

func (r *PGRepo) SetPlanStatus(ctx context.Context, planID string, status PlanStatus, at time.Time) (Plan, error) {
	row := r.DB.QueryRowContext(ctx,
		`UPDATE plans SET status = $2, updated_at = $3 WHERE id = $1 RETURNING `+planColumns,
		planID, string(status), at)
	plan, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Plan{}, ErrPlanNotFound
	}
	return plan, err
}

func (r *PGRepo) SaveAppointment(ctx context.Context, appt Appointment) error {
	const query = `
INSERT INTO appointments (id, user_id, type, scheduled, notes, location, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
  type = EXCLUDED.type,
  scheduled = EXCLUDED.scheduled,
  notes = EXCLUDED.notes,
  location = EXCLUDED.location,
  status = EXCLUDED.status`
	_, err := r.DB.ExecContext(ctx, query,
		appt.ID, appt.UserID, string(appt.Type), appt.Scheduled, appt.Notes, appt.Location, string(appt.Status), appt.CreatedAt,
	)
	return err
}

func (r *PGRepo) GetAppointment(ctx context.Context, userID, apptID string) (Appointment, error) {
	row := r.DB.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE id = $1 AND user_id = $2`, apptID, userID)
	appt, err := scanAppointment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Appointment{}, ErrAppointmentNotFound
	}
	return appt, err
}

func (r *PGRepo) ListAppointments(ctx context.Context, userID string) ([]Appointment, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments WHERE user_id = $1 ORDER BY scheduled DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Appointment, 0)
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}

func scanPlan(row rowScanner) (Plan, error) {
	var (
		p      Plan
		status string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.FileName, &status, &p.ReviewID, &p.UploadedAt, &p.UpdatedAt); err != nil {
		return Plan{}, err
	}
	p.Status = PlanStatus(status)
	return p, nil
}

func scanAppointment(row rowScanner) (Appointment, error) {
	var (
		a            Appointment
		typ, status string
	)
	if err := row.Scan(&a.ID, &a.UserID, &typ, &a.Scheduled, &a.Notes, &a.Location, &status, &a.CreatedAt); err != nil {
		return Appointment{}, err
	}
	a.Type = AppointmentType(typ)
	a.Status = AppointmentStatus(status)
	a.Scheduled = a.Scheduled.UTC()
	return a, nil
}

var _ Repo = (*PGRepo)(nil)
