package dashboard

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"permit-backend/internal/reviews"
	"permit-backend/internal/shared/clock"
	"permit-backend/internal/shared/telemetry"
)

const (
	DefaultActivityLimit = 10
	MaxActivityLimit     = 50
)

// ReviewLookup resolves the review linked to a plan.
type ReviewLookup interface {
	Get(ctx context.Context, id string) (reviews.Review, error)
}

type Service struct {
	Repo    Repo
	Reviews ReviewLookup
	Clock   clock.Clock
	NewID   func() string
}

func NewService(repo Repo, lookup ReviewLookup) *Service {
	return &Service{Repo: repo, Reviews: lookup}
}

// RecordSubmission files a Pending plan for a review uploaded by userID.
func (s *Service) RecordSubmission(ctx context.Context, userID string, review reviews.Review) error {
	now := s.now()
	plan := Plan{
		ID:         s.newID(),
		UserID:     userID,
		Name:       planName(review),
		FileName:   review.ImageSource,
		Status:     PlanPending,
		ReviewID:   review.ID,
		UploadedAt: now,
		UpdatedAt:  now,
	}
	if err := s.Repo.CreatePlan(ctx, plan); err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	telemetry.Info("dashboard.plan.recorded", map[string]any{
		"plan_id":   plan.ID,
		"user_id":   userID,
		"review_id": review.ID,
	})
	return nil
}

func (s *Service) ListPlans(ctx context.Context, userID string) ([]PlanView, error) {
	plans, err := s.Repo.ListPlans(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]PlanView, 0, len(plans))
	for _, p := range plans {
		view := PlanView{
			ID:         p.ID,
			Name:       p.Name,
			FileName:   p.FileName,
			Status:     p.Status,
			ReviewID:   p.ReviewID,
			UploadedAt: p.UploadedAt,
		}
		if p.ReviewID != "" && s.Reviews != nil {
			review, err := s.Reviews.Get(ctx, p.ReviewID)
			switch {
			case err == nil:
				view.ReviewStatus = string(review.Status())
			case !errors.Is(err, reviews.ErrNotFound):
				return nil, err
			}
		}
		out = append(out, view)
	}
	return out, nil
}

// SetPlanStatus records an administrator's decision on a plan.
func (s *Service) SetPlanStatus(ctx context.Context, planID string, status PlanStatus) (Plan, error) {
	if !status.Valid() {
		return Plan{}, invalid("status", "invalid", "status must be Pending, Approved or Rejected")
	}
	plan, err := s.Repo.SetPlanStatus(ctx, planID, status, s.now())
	if err != nil {
		return Plan{}, err
	}
	telemetry.Info("dashboard.plan.status", map[string]any{"plan_id": plan.ID, "status": status})
	return plan, nil
}

// AppointmentInput is a full or partial appointment. Empty fields are left unchanged on update.
type AppointmentInput struct {
	Type     AppointmentType
	Date     string
	Time     string
	Notes    *string
	Location *string
	Status   AppointmentStatus
}

func (s *Service) CreateAppointment(ctx context.Context, userID string, in AppointmentInput) (Appointment, error) {
	if !in.Type.Valid() {
		return Appointment{}, invalid("type", "invalid", "type must be consultation, site_inspection or final_inspection")
	}
	if in.Date == "" || in.Time == "" {
		return Appointment{}, invalid("date", "required", "date and time are required")
	}
	scheduled, err := parseSchedule(in.Date, in.Time)
	if err != nil {
		return Appointment{}, err
	}
	appt := Appointment{
		ID:        s.newID(),
		UserID:    userID,
		Type:      in.Type,
		Scheduled: scheduled,
		Status:    AppointmentUpcoming,
		CreatedAt: s.now(),
	}
	applyText(&appt.Notes, in.Notes)
	applyText(&appt.Location, in.Location)
	if err := s.Repo.SaveAppointment(ctx, appt); err != nil {
		return Appointment{}, err
	}
	return appt, nil
}

func (s *Service) UpdateAppointment(ctx context.Context, userID, apptID string, in AppointmentInput) (Appointment, error) {
	appt, err := s.Repo.GetAppointment(ctx, userID, apptID)
	if err != nil {
		return Appointment{}, err
	}
	if in.Type != "" {
		if !in.Type.Valid() {
			return Appointment{}, invalid("type", "invalid", "type must be consultation, site_inspection or final_inspection")
		}
		appt.Type = in.Type
	}
	if in.Status != "" {
		if !in.Status.Valid() {
			return Appointment{}, invalid("status", "invalid", "status must be upcoming, completed or cancelled")
		}
		appt.Status = in.Status
	}
	if in.Date != "" || in.Time != "" {
		date, clockTime := in.Date, in.Time
		if date == "" {
			date = appt.Scheduled.Format(dateLayout)
		}
		if clockTime == "" {
			clockTime = appt.Scheduled.Format(timeLayout)
		}
		if appt.Scheduled, err = parseSchedule(date, clockTime); err != nil {
			return Appointment{}, err
		}
	}
	applyText(&appt.Notes, in.Notes)
	applyText(&appt.Location, in.Location)
	if err := s.Repo.SaveAppointment(ctx, appt); err != nil {
		return Appointment{}, err
	}
	return appt, nil
}

// CancelAppointment marks the appointment cancelled. Cancelled appointments stay listed.
func (s *Service) CancelAppointment(ctx context.Context, userID, apptID string) (Appointment, error) {
	return s.UpdateAppointment(ctx, userID, apptID, AppointmentInput{Status: AppointmentCancelled})
}

func (s *Service) ListAppointments(ctx context.Context, userID string) ([]Appointment, error) {
	return s.Repo.ListAppointments(ctx, userID)
}

func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	plans, err := s.Repo.ListPlans(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	appts, err := s.Repo.ListAppointments(ctx, userID)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{TotalPlans: len(plans)}
	for _, p := range plans {
		switch p.Status {
		case PlanApproved:
			stats.ApprovedPlans++
		case PlanPending:
			stats.PendingPlans++
		}
	}
	now := s.now()
	for _, a := range appts {
		if a.Status != AppointmentCancelled && a.Scheduled.After(now) {
			stats.UpcomingAppointments++
		}
	}
	return stats, nil
}

// Activity merges plan and appointment events, newest first, capped at limit.
func (s *Service) Activity(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if limit < 1 || limit > MaxActivityLimit {
		return nil, invalid("limit", "out_of_range", fmt.Sprintf("limit must be between 1 and %d", MaxActivityLimit))
	}
	plans, err := s.Repo.ListPlans(ctx, userID)
	if err != nil {
		return nil, err
	}
	appts, err := s.Repo.ListAppointments(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]Activity, 0, len(plans)+len(appts))
	for _, p := range plans {
		out = append(out, planActivity(p))
	}
	for _, a := range appts {
		out = append(out, Activity{
			ID:          "appointment_" + a.ID,
			Type:        ActivityAppointmentScheduled,
			Title:       "Appointment Scheduled",
			Description: fmt.Sprintf("%s scheduled for %s", appointmentLabel(a.Type), a.Scheduled.Format("Jan 02, 2006")),
			Timestamp:   a.CreatedAt,
			Status:      string(a.Status),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func planActivity(p Plan) Activity {
	act := Activity{ID: "plan_" + p.ID, Status: string(p.Status)}
	switch p.Status {
	case PlanApproved:
		act.Type = ActivityPlanApproved
		act.Title = p.Name + " Approved"
		act.Description = "Your plan has been approved and is ready for installation"
		act.Timestamp = p.UpdatedAt
	case PlanRejected:
		act.Type = ActivityPlanFailed
		act.Title = p.Name + " Rejected"
		act.Description = "Your plan needs revisions. Please check the feedback."
		act.Timestamp = p.UpdatedAt
	default:
		act.Type = ActivityPlanUploaded
		act.Title = p.Name + " Submitted"
		act.Description = "Your plan is being reviewed by our team"
		act.Timestamp = p.UploadedAt
	}
	return act
}

func appointmentLabel(t AppointmentType) string {
	switch t {
	case SiteInspection:
		return "Site inspection"
	case FinalInspection:
		return "Final inspection"
	default:
		return "Consultation"
	}
}

func parseSchedule(date, clockTime string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, invalid("date", "invalid_format", "date must be YYYY-MM-DD")
	}
	t, err := time.Parse(timeLayout, strings.TrimSpace(clockTime))
	if err != nil {
		return time.Time{}, invalid("time", "invalid_format", "time must be HH:MM")
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}

func planName(review reviews.Review) string {
	name := strings.TrimSuffix(review.ImageSource, path.Ext(review.ImageSource))
	if name == "" || review.ImageSource == "upload" {
		return "Plan " + shortID(review.ID)
	}
	return name
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func applyText(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock.Now()
	}
	return clock.System{}.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

var _ reviews.SubmissionRecorder = (*Service)(nil)
