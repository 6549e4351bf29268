/*
errors.go - Error taxonomy for check-in operations

KINDS (stable, machine-readable):
  NOT_FOUND             profile or questionnaire missing
  INVALID_CHECKIN_DATE  not a designated day, or remedial date outside 1..3 days ago
  ALREADY_CHECKED_IN    a record exists for (profile, date)
  VALIDATION_ERROR      answer or profile input rejected, offending fields listed
  INTERNAL_ERROR        anything else (storage, ledger)

USAGE:
  Sentinels work with errors.Is; structured errors carry context and
  unwrap to their sentinel. KindOf classifies any error for transport.

    if checkin.KindOf(err) == checkin.KindAlreadyCheckedIn { ... }

None of these are retried internally.
*/
package checkin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warp/habit-vault/calendar"
)

type ErrorKind string

const (
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindInvalidCheckinDate ErrorKind = "INVALID_CHECKIN_DATE"
	KindAlreadyCheckedIn   ErrorKind = "ALREADY_CHECKED_IN"
	KindValidation         ErrorKind = "VALIDATION_ERROR"
	KindInternal           ErrorKind = "INTERNAL_ERROR"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrProfileNotFound       = errors.New("check-in profile not found")
	ErrQuestionnaireNotFound = errors.New("questionnaire not found")
	ErrInvalidCheckinDate    = errors.New("invalid check-in date")
	ErrAlreadyCheckedIn      = errors.New("already checked in for this date")
	ErrValidation            = errors.New("validation failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidDateError explains why a date cannot be checked in.
type InvalidDateError struct {
	Date   calendar.LocalDate
	Reason string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid check-in date %s: %s", e.Date, e.Reason)
}

func (e *InvalidDateError) Unwrap() error { return ErrInvalidCheckinDate }

// DuplicateCheckinError is returned when (profile, date) is already recorded,
// whether detected by the pre-check or by the storage uniqueness constraint.
type DuplicateCheckinError struct {
	ProfileID ProfileID
	Date      calendar.LocalDate
}

func (e *DuplicateCheckinError) Error() string {
	return fmt.Sprintf("profile %s already checked in on %s", e.ProfileID, e.Date)
}

func (e *DuplicateCheckinError) Unwrap() error { return ErrAlreadyCheckedIn }

// Problem identifies one offending field.
type Problem struct {
	Field  string `json:"field"` // question id, or an input field name
	Reason string `json:"reason"`
}

// ValidationError lists every problem found, not just the first.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Field + ": " + p.Reason
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) add(field, format string, args ...any) {
	e.Problems = append(e.Problems, Problem{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// orNil returns nil when nothing was reported.
func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrQuestionnaireNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidCheckinDate):
		return KindInvalidCheckinDate
	case errors.Is(err, ErrAlreadyCheckedIn):
		return KindAlreadyCheckedIn
	case errors.Is(err, ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}

// ProblemsOf returns the field problems carried by err, if any.
func ProblemsOf(err error) []Problem {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Problems
	}
	return nil
}
