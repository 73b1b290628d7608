package services

import (
	"errors"
	"fmt"
	"strings"

	"safewatch-backend/internal/repository"
)

var (
	// ErrAlertNotFound is returned when no alert matches the requested id.
	ErrAlertNotFound = repository.ErrAlertNotFound
	// ErrNotAlertOwner is returned when the caller does not own the alert.
	ErrNotAlertOwner = errors.New("not authorized")
)

// ValidationError lists the request fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

// StorageError wraps an unexpected repository or media failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageError(op string, err error) error {
	if errors.Is(err, repository.ErrAlertNotFound) {
		return ErrAlertNotFound
	}
	return &StorageError{Op: op, Err: err}
}
