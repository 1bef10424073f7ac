package users

import (
	"errors"
	"strings"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("User with this email already exists.")
	ErrInvalidCredentials = errors.New("Invalid credentials.")
)

// ValidationError lists every rejected field of a request.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "Validation failed: " + strings.Join(e.Issues, "; ")
}
