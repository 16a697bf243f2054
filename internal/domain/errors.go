package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every service. Callers match them with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrParseFailure = errors.New("parser returned malformed output")
	ErrTransient    = errors.New("temporary infrastructure failure")
)

// ValidationError carries a user-facing reason for rejecting input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalidf builds a ValidationError from a format string.
func Invalidf(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// UnclearError means the parser understood nothing actionable and wants to ask back.
type UnclearError struct {
	Question string
}

func (e *UnclearError) Error() string {
	return "input unclear: " + e.Question
}

// NotFoundError names the kind of record that was missing.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
