// Package service holds the business rules: authentication, user and
// task management, the Kanban board and productivity statistics.  It
// talks to storage only through the repository interfaces.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the category of every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrPermissionDenied means the caller is authenticated but not allowed.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
