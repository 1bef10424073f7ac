package reviews

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("review not found")
	ErrAlreadyTerminal = errors.New("review already terminal")
	// ErrReviewMissing means a scheduled review has no record. It signals an
	// internal inconsistency and is never shown to a submitter.
	ErrReviewMissing   = errors.New("scheduled review missing from store")
	ErrSchedulerClosed = errors.New("review scheduler closed")
)

// ValidationError rejects a request before any review is created.
type ValidationError struct {
	Field   string
	Issue   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, issue, message string) error {
	return &ValidationError{Field: field, Issue: issue, Message: message}
}
