package blog

import (
	"errors"
	"fmt"

	"github.com/cabinetdiet/cabinet/internal/store"
)

var (
	// ErrNotFound wraps store.ErrNotFound so callers can match either.
	ErrNotFound  = fmt.Errorf("post %w", store.ErrNotFound)
	ErrSlugTaken = errors.New("slug already used by another post")
)

// ValidationError reports a missing or malformed input field. Message is
// user facing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func required(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
