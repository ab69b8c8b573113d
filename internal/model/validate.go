package model

import (
	"fmt"
	"strings"
)

// MaxListLimit caps the page size accepted by ListActivities.
const MaxListLimit = 1000

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateFilter checks paging bounds on an ActivityFilter.
func ValidateFilter(f ActivityFilter) error {
	var ve ValidationError

	if f.Limit < 0 || f.Limit > MaxListLimit {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "limit",
			Message: fmt.Sprintf("must be between 0 and %d, got %d", MaxListLimit, f.Limit),
		})
	}
	if f.Offset < 0 {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "offset",
			Message: fmt.Sprintf("must not be negative, got %d", f.Offset),
		})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateRecord checks an ActivityRecord before it is persisted.
func ValidateRecord(r *ActivityRecord) error {
	var ve ValidationError

	if strings.TrimSpace(r.ID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "id", Message: "is required"})
	}
	if r.Activity == nil {
		ve.Errors = append(ve.Errors, FieldError{Field: "activity", Message: "is required"})
	} else if r.Activity.Object.ID == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "activity.object.id", Message: "is required"})
	}
	if r.ReceivedAt.IsZero() {
		ve.Errors = append(ve.Errors, FieldError{Field: "received_at", Message: "is required"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateRejection checks a Rejection before it is persisted.
func ValidateRejection(r *Rejection) error {
	var ve ValidationError

	if strings.TrimSpace(r.ID) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "id", Message: "is required"})
	}
	if !r.Stage.IsValid() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   "stage",
			Message: fmt.Sprintf("invalid value %q", r.Stage),
		})
	}
	if r.CreatedAt.IsZero() {
		ve.Errors = append(ve.Errors, FieldError{Field: "created_at", Message: "is required"})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}
