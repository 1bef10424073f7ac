package dashboard

import "errors"

var (
	ErrPlanNotFound        = errors.New("plan not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// ValidationError names the rejected field.
type ValidationError struct {
	Field   string
	Issue   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, issue, message string) error {
	return &ValidationError{Field: field, Issue: issue, Message: message}
}
