// Package repository defines the store contracts shared by every backend,
// the SQL implementations of them, and the error values that let higher
// layers such as handlers distinguish failure scenarios.  Backends wrap
// the two categories below so callers can match either the precise error
// or the category with errors.Is.
package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is the category for lookups that matched nothing.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as a duplicate email or deleting a column that
// still holds tasks.  Handlers translate it into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

var (
	ErrTaskNotFound   = fmt.Errorf("task %w", ErrNotFound)
	ErrColumnNotFound = fmt.Errorf("column %w", ErrNotFound)
	ErrUserNotFound   = fmt.Errorf("user %w", ErrNotFound)

	ErrEmailExists    = fmt.Errorf("email already exists: %w", ErrConflict)
	ErrUsernameExists = fmt.Errorf("username already exists: %w", ErrConflict)
	ErrColumnNotEmpty = fmt.Errorf("cannot delete: contains tasks: %w", ErrConflict)
)

// ErrTokenInvalid means a refresh token is unknown, revoked or expired.
var ErrTokenInvalid = errors.New("refresh token invalid")
