package dashboard

import (
	"encoding/json"
	"time"
)

type PlanStatus string

const (
	PlanPending  PlanStatus = "Pending"
	PlanApproved PlanStatus = "Approved"
	PlanRejected PlanStatus = "Rejected"
)

func (s PlanStatus) Valid() bool {
	switch s {
	case PlanPending, PlanApproved, PlanRejected:
		return true
	}
	return false
}

// Plan is a permit plan a signed-in user uploaded for review.
type Plan struct {
	ID         string
	UserID     string
	Name       string
	FileName   string
	Status     PlanStatus
	ReviewID   string
	UploadedAt time.Time
	UpdatedAt  time.Time
}

// PlanView is a plan with the state of its linked review.
type PlanView struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	FileName     string     `json:"fileName"`
	Status       PlanStatus `json:"status"`
	ReviewID     string     `json:"reviewId,omitempty"`
	ReviewStatus string     `json:"reviewStatus,omitempty"`
	UploadedAt   time.Time  `json:"uploadedAt"`
}

type AppointmentType string

const (
	Consultation    AppointmentType = "consultation"
	SiteInspection  AppointmentType = "site_inspection"
	FinalInspection AppointmentType = "final_inspection"
)

func (t AppointmentType) Valid() bool {
	switch t {
	case Consultation, SiteInspection, FinalInspection:
		return true
	}
	return false
}

type AppointmentStatus string

const (
	AppointmentUpcoming  AppointmentStatus = "upcoming"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentUpcoming, AppointmentCompleted, AppointmentCancelled:
		return true
	}
	return false
}

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

type Appointment struct {
	ID        string
	UserID    string
	Type      AppointmentType
	Scheduled time.Time
	Notes     string
	Location  string
	Status    AppointmentStatus
	CreatedAt time.Time
}

type appointmentJSON struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Type      AppointmentType   `json:"type"`
	Date      string            `json:"date"`
	Time      string            `json:"time"`
	Notes     string            `json:"notes,omitempty"`
	Location  string            `json:"location,omitempty"`
	Status    AppointmentStatus `json:"status"`
	CreatedAt time.Time         `json:"createdAt"`
}

// MarshalJSON splits Scheduled into the date and time fields clients use.
func (a Appointment) MarshalJSON() ([]byte, error) {
	return json.Marshal(appointmentJSON{
		ID:        a.ID,
		UserID:    a.UserID,
		Type:      a.Type,
		Date:      a.Scheduled.Format(dateLayout),
		Time:      a.Scheduled.Format(timeLayout),
		Notes:     a.Notes,
		Location:  a.Location,
		Status:    a.Status,
		CreatedAt: a.CreatedAt,
	})
}

type Stats struct {
	TotalPlans           int `json:"totalPlans"`
	ApprovedPlans        int `json:"approvedPlans"`
	PendingPlans         int `json:"pendingPlans"`
	UpcomingAppointments int `json:"upcomingAppointments"`
}

type ActivityType string

const (
	ActivityPlanUploaded         ActivityType = "plan_uploaded"
	ActivityPlanApproved         ActivityType = "plan_approved"
	ActivityPlanFailed           ActivityType = "plan_failed"
	ActivityAppointmentScheduled ActivityType = "appointment_scheduled"
)

type Activity struct {
	ID          string       `json:"id"`
	Type        ActivityType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Timestamp   time.Time    `json:"timestamp"`
	Status      string       `json:"status,omitempty"`
}
