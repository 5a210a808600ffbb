package service

import (
	"errors"

	"github.com/daybook/daybook/internal/auth"
)

// Service errors.
var (
	ErrUnauthorized   = auth.ErrUnauthorized
	ErrMomentNotFound = errors.New("moment not found")
	ErrMissingField   = errors.New("missing required field")
	ErrInvalidType    = errors.New("invalid moment type")
	ErrInvalidDate    = errors.New("invalid date")
	ErrFutureDate     = errors.New("date is in the future")
	ErrMediaTooLarge  = errors.New("media file too large")
	ErrStorageFailure = errors.New("failed to store media")
)

// Field names reported by MissingFieldError.
const (
	FieldType    = "type"
	FieldContent = "content"
	FieldFile    = "file"
)

// MissingFieldError names the required field that was absent or empty.
// It matches ErrMissingField with errors.Is.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "missing required field: " + e.Field
}

func (e *MissingFieldError) Unwrap() error {
	return ErrMissingField
}

func missingField(field string) error {
	return &MissingFieldError{Field: field}
}
