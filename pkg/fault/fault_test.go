package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{name: "nil", err: nil, expected: KindNone},
		{name: "missing", err: Missing("answer required"), expected: KindMissingRequiredAnswer},
		{name: "out of range", err: OutOfRange("%d > %d", 11, 10), expected: KindOutOfRangeAnswer},
		{name: "wrapped not found", err: fmt.Errorf("get survey: %w", ErrNotFound), expected: KindNotFound},
		{name: "structural", err: NewClientError("delete question", ErrStructuralViolation), expected: KindStructuralViolation},
		{name: "completed", err: ErrSubmissionCompleted, expected: KindSubmissionCompleted},
		{name: "invalid input", err: Invalid("bad url %q", "x"), expected: KindInvalidInput},
		{name: "anything else", err: errors.New("boom"), expected: KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.expected {
				t.Errorf("KindOf() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestValidationErrorsAreClientErrors(t *testing.T) {
	err := OutOfRange("length %d exceeds %d", 12, 10)

	if !IsClientError(err) {
		t.Errorf("expected client error, got %v", err)
	}
	if IsInternalError(err) {
		t.Errorf("did not expect internal error")
	}
	if !IsValidation(err) {
		t.Errorf("expected validation error")
	}
	if !errors.Is(err, ErrOutOfRangeAnswer) {
		t.Errorf("expected errors.Is to match ErrOutOfRangeAnswer")
	}
	if IsValidation(NewInternalError("db down", ErrNotFound)) {
		t.Errorf("not found must not be a validation error")
	}
}

func TestFaultError(t *testing.T) {
	err := NewInternalError("save answer", errors.New("disk full"))
	if got, want := err.Error(), "[InternalError] save answer: disk full"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &Fault{Type: ErrClient, Message: "bad input"}
	if got, want := bare.Error(), "[ClientError] bad input"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
