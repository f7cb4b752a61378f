package fault

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrUniqueViolation     = errors.New("unique violation")
	ErrForeignKeyViolation = errors.New("restricted for deletion")

	// Answer validation outcomes. Both are recoverable: the caller re-prompts
	// and nothing was written.
	ErrMissingRequiredAnswer = errors.New("missing required answer")
	ErrOutOfRangeAnswer      = errors.New("answer out of range")

	// ErrStructuralViolation is returned when a published survey's question
	// graph would be mutated.
	ErrStructuralViolation = errors.New("survey is published")

	ErrSubmissionCompleted = errors.New("submission already completed")

	// ErrInvalidInput rejects builder input such as a malformed media URL or
	// a condition that cannot test its question.
	ErrInvalidInput = errors.New("invalid input")
)

type ErrorType int

const (
	ErrClient ErrorType = iota
	ErrInternal
)

type Fault struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Fault) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.typeString(), e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.typeString(), e.Message)
}

// Unwrap allows errors.Is and errors.As to work.
func (e *Fault) Unwrap() error {
	return e.Err
}

// typeString returns a human-readable representation of the error type.
func (e *Fault) typeString() string {
	switch e.Type {
	case ErrClient:
		return "ClientError"
	case ErrInternal:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// NewClientError creates a new client error.
func NewClientError(msg string, err error) error {
	return &Fault{
		Type:    ErrClient,
		Message: msg,
		Err:     err,
	}
}

// NewInternalError creates a new internal server error.
func NewInternalError(msg string, err error) error {
	return &Fault{
		Type:    ErrInternal,
		Message: msg,
		Err:     err,
	}
}

// IsClientError checks if an error is a client error.
func IsClientError(err error) bool {
	var ce *Fault
	if errors.As(err, &ce) {
		return ce.Type == ErrClient
	}
	return false
}

// IsInternalError checks if an error is an internal error.
func IsInternalError(err error) bool {
	var ce *Fault
	if errors.As(err, &ce) {
		return ce.Type == ErrInternal
	}
	return false
}

// Missing reports a required question that received no usable input.
func Missing(msg string) error {
	return NewClientError(msg, ErrMissingRequiredAnswer)
}

// OutOfRange reports input that violates a type-specific constraint.
func OutOfRange(format string, args ...any) error {
	return NewClientError(fmt.Sprintf(format, args...), ErrOutOfRangeAnswer)
}

// Kind is the coarse classification of an error as seen by a delivery layer.
type Kind int

const (
	KindNone Kind = iota
	KindMissingRequiredAnswer
	KindOutOfRangeAnswer
	KindNotFound
	KindStructuralViolation
	KindSubmissionCompleted
	KindInvalidInput
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindMissingRequiredAnswer:
		return "MissingRequiredAnswer"
	case KindOutOfRangeAnswer:
		return "OutOfRangeAnswer"
	case KindNotFound:
		return "NotFound"
	case KindStructuralViolation:
		return "StructuralViolation"
	case KindSubmissionCompleted:
		return "SubmissionCompleted"
	case KindInvalidInput:
		return "InvalidInput"
	default:
		return "Internal"
	}
}

// KindOf maps err onto the error taxonomy. A nil error is KindNone.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMissingRequiredAnswer):
		return KindMissingRequiredAnswer
	case errors.Is(err, ErrOutOfRangeAnswer):
		return KindOutOfRangeAnswer
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrStructuralViolation):
		return KindStructuralViolation
	case errors.Is(err, ErrSubmissionCompleted):
		return KindSubmissionCompleted
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	default:
		return KindInternal
	}
}

// IsValidation reports whether err is a recoverable answer validation failure.
func IsValidation(err error) bool {
	k := KindOf(err)
	return k == KindMissingRequiredAnswer || k == KindOutOfRangeAnswer
}

// Invalid reports builder input that cannot be stored.
func Invalid(format string, args ...any) error {
	return NewClientError(fmt.Sprintf(format, args...), ErrInvalidInput)
}
