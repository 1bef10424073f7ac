package reviews

import (
	"encoding/json"
	"fmt"
	"time"

	"permit-backend/internal/analysis"
)

// Status is the lifecycle state of a review.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) valid() bool {
	switch s {
	case StatusPending, StatusAnalyzing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Outcome is the state-specific part of a review. Only the variants in this
// package implement it, so an analysis and an error message never coexist.
type Outcome interface {
	Status() Status
	isOutcome()
}

type Pending struct{}

type Analyzing struct{}

// Completed carries the analysis of a successful review.
type Completed struct {
	Analysis analysis.Analysis
}

// Failed carries a human-readable reason.
type Failed struct {
	Message string
}

func (Pending) Status() Status   { return StatusPending }
func (Analyzing) Status() Status { return StatusAnalyzing }
func (Completed) Status() Status { return StatusCompleted }
func (Failed) Status() Status    { return StatusFailed }

func (Pending) isOutcome()   {}
func (Analyzing) isOutcome() {}
func (Completed) isOutcome() {}
func (Failed) isOutcome()    {}

// Review is one plan submission and its analysis lifecycle.
type Review struct {
	ID        string
	CreatedAt time.Time
	Outcome   Outcome

	// ImageSource is the submitted file name, or "upload" when none was given.
	ImageSource string
	City        string
	// ImageKey locates the plan bytes in the object store. Never serialized.
	ImageKey string
}

// Status returns the review's lifecycle state. A zero Outcome reads as pending.
func (r Review) Status() Status {
	if r.Outcome == nil {
		return StatusPending
	}
	return r.Outcome.Status()
}

// Analysis returns the analysis when the review completed.
func (r Review) Analysis() (analysis.Analysis, bool) {
	c, ok := r.Outcome.(Completed)
	return c.Analysis, ok
}

// ErrorMessage returns the failure reason when the review failed.
func (r Review) ErrorMessage() (string, bool) {
	f, ok := r.Outcome.(Failed)
	return f.Message, ok
}

// Complete moves a non-terminal review to completed.
func (r Review) Complete(a analysis.Analysis) (Review, error) {
	return r.transition(Completed{Analysis: a.Normalize()})
}

// Fail moves a non-terminal review to failed.
func (r Review) Fail(message string) (Review, error) {
	return r.transition(Failed{Message: message})
}

func (r Review) transition(next Outcome) (Review, error) {
	if r.Status().Terminal() {
		return r, fmt.Errorf("%w: review %s is %s", ErrAlreadyTerminal, r.ID, r.Status())
	}
	r.Outcome = next
	return r, nil
}

// reviewJSON is the wire shape shared by the API and its clients.
type reviewJSON struct {
	ID           string             `json:"id"`
	CreatedAt    time.Time          `json:"createdAt"`
	Status       Status             `json:"status"`
	Analysis     *analysis.Analysis `json:"analysis"`
	ErrorMessage *string            `json:"errorMessage"`
	ImageURL     *string            `json:"imageUrl"`
	City         *string            `json:"city"`
}

func (r Review) MarshalJSON() ([]byte, error) {
	out := reviewJSON{
		ID:        r.ID,
		CreatedAt: r.CreatedAt.UTC(),
		Status:    r.Status(),
		ImageURL:  optional(r.ImageSource),
		City:      optional(r.City),
	}
	if a, ok := r.Analysis(); ok {
		out.Analysis = &a
	}
	if msg, ok := r.ErrorMessage(); ok {
		out.ErrorMessage = &msg
	}
	return json.Marshal(out)
}

func (r *Review) UnmarshalJSON(data []byte) error {
	var in reviewJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	outcome, err := outcomeFor(in.Status, in.Analysis, in.ErrorMessage)
	if err != nil {
		return err
	}
	*r = Review{
		ID:        in.ID,
		CreatedAt: in.CreatedAt,
		Outcome:   outcome,
	}
	if in.ImageURL != nil {
		r.ImageSource = *in.ImageURL
	}
	if in.City != nil {
		r.City = *in.City
	}
	return nil
}

// outcomeFor rebuilds an Outcome from its flattened columns or fields.
func outcomeFor(status Status, a *analysis.Analysis, errorMessage *string) (Outcome, error) {
	if !status.valid() {
		return nil, fmt.Errorf("unknown review status %q", status)
	}
	switch status {
	case StatusCompleted:
		if a == nil {
			return nil, fmt.Errorf("completed review without analysis")
		}
		return Completed{Analysis: a.Normalize()}, nil
	case StatusFailed:
		msg := ""
		if errorMessage != nil {
			msg = *errorMessage
		}
		return Failed{Message: msg}, nil
	case StatusAnalyzing:
		return Analyzing{}, nil
	default:
		return Pending{}, nil
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// clone copies the slices reachable from r so stored records share nothing with callers.
func clone(r Review) Review {
	if c, ok := r.Outcome.(Completed); ok {
		a := c.Analysis
		a.Violations = append([]analysis.Violation(nil), a.Violations...)
		a.Recommendations = append([]string(nil), a.Recommendations...)
		if a.Details != nil {
			d := *a.Details
			a.Details = &d
		}
		r.Outcome = Completed{Analysis: a.Normalize()}
	}
	return r
}
