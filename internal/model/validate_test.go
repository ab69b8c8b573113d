package model

import (
	"strings"
	"testing"
	"time"
)

// fieldErrors extracts a *ValidationError from err or fails the test.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func validRecord() ActivityRecord {
	return ActivityRecord{
		ID:         "act-abc",
		Activity:   &Activity{Object: Object{ID: "m1", Type: TypeNote}},
		ReceivedAt: time.Now().UTC(),
	}
}

func TestValidateFilter(t *testing.T) {
	for _, tc := range []struct {
		name      string
		filter    ActivityFilter
		wantField string
	}{
		{name: "Zero", filter: ActivityFilter{}},
		{name: "MaxLimit", filter: ActivityFilter{Limit: MaxListLimit}},
		{name: "NegativeLimit", filter: ActivityFilter{Limit: -1}, wantField: "limit"},
		{name: "LimitTooLarge", filter: ActivityFilter{Limit: MaxListLimit + 1}, wantField: "limit"},
		{name: "NegativeOffset", filter: ActivityFilter{Offset: -5}, wantField: "offset"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateFilter(tc.filter)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !hasFieldError(fieldErrors(t, err), tc.wantField) {
				t.Errorf("expected error on field %q, got %v", tc.wantField, err)
			}
		})
	}
}

func TestValidateRecord_Valid(t *testing.T) {
	r := validRecord()
	if err := ValidateRecord(&r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRecord_MissingFields(t *testing.T) {
	r := ActivityRecord{}
	errs := fieldErrors(t, ValidateRecord(&r))
	for _, field := range []string{"id", "activity", "received_at"} {
		if !hasFieldError(errs, field) {
			t.Errorf("expected error on field %q", field)
		}
	}
}

func TestValidateRecord_MissingObjectID(t *testing.T) {
	r := validRecord()
	r.Activity.Object.ID = ""
	errs := fieldErrors(t, ValidateRecord(&r))
	if !hasFieldError(errs, "activity.object.id") {
		t.Error("expected error on field 'activity.object.id'")
	}
}

func TestValidateRejection(t *testing.T) {
	ok := Rejection{ID: "rej-1", Stage: StageValidate, CreatedAt: time.Now()}
	if err := ValidateRejection(&ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := Rejection{Stage: "bogus"}
	errs := fieldErrors(t, ValidateRejection(&bad))
	for _, field := range []string{"id", "stage", "created_at"} {
		if !hasFieldError(errs, field) {
			t.Errorf("expected error on field %q", field)
		}
	}
}

func TestValidationError_Format(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{
		{Field: "limit", Message: "too big"},
		{Field: "offset", Message: "negative"},
	}}
	got := ve.Error()
	if !strings.HasPrefix(got, "validation failed: ") {
		t.Errorf("Error() = %q, want prefix %q", got, "validation failed: ")
	}
	if !strings.Contains(got, "limit: too big; offset: negative") {
		t.Errorf("Error() = %q, missing joined field messages", got)
	}
}
