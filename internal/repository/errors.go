package repository

import (
	"errors"
	"fmt"

	"github.com/Manumac86/collybrix-admin-sub001/internal/storage"
)

var (
	// ErrInvalidID is returned for identifiers that are not well formed.
	ErrInvalidID = errors.New("invalid identifier")
	// ErrDuplicateTag is returned when a project already has a tag of that name.
	ErrDuplicateTag = errors.New("a tag with this name already exists in the project")
	// ErrDuplicateUser is returned when the email is already registered.
	ErrDuplicateUser = errors.New("a user with this email already exists")
	// ErrInvalidTransition is returned when a sprint cannot move to the requested status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrForbidden is returned when the caller may not modify a resource.
	ErrForbidden = errors.New("forbidden")
)

// NotFoundError reports a missing resource. It matches storage.ErrNotFound.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// Is lets errors.Is match the storage sentinel.
func (e *NotFoundError) Is(target error) bool {
	return target == storage.ErrNotFound
}

// ValidationError carries field-level problems with an input.
type ValidationError struct {
	Message string
	Details map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Details)
}

func invalidf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func invalidID(field string) error {
	return fmt.Errorf("%w: %s", ErrInvalidID, field)
}

func transitionError(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
