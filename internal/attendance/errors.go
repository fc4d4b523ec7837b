package attendance

import (
	"errors"
	"fmt"
)

// Rule names carried by ValidationError.
const (
	RuleOverlap       = "overlap"
	RuleCountMismatch = "count_mismatch"
	RuleSuperset      = "superset"
	RuleCapacity      = "capacity"
)

// ValidationError is a payload problem found before anything is written.
type ValidationError struct {
	Class   string
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("class %s: %s", e.Class, e.Message)
}

type StateKind string

const (
	StateNonSchoolDay     StateKind = "non_school_day"
	StateEditWindowClosed StateKind = "edit_window_closed"
	StateDuplicate        StateKind = "duplicate_submission"
)

// StateError rejects a submission because of what is already stored or
// because of the date, never because of the payload itself.
type StateError struct {
	Class string
	Kind  StateKind
}

func (e *StateError) Error() string {
	switch e.Kind {
	case StateNonSchoolDay:
		return "today is a weekend or a holiday, attendance is closed"
	case StateEditWindowClosed:
		return fmt.Sprintf("class %s: edit window is closed", e.Class)
	case StateDuplicate:
		return fmt.Sprintf("class %s: attendance was already submitted by someone else", e.Class)
	default:
		return fmt.Sprintf("class %s: %s", e.Class, e.Kind)
	}
}

type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

var ErrClassNotPermitted = errors.New("class is not permitted for this user")

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsState(err error, kind StateKind) bool {
	var s *StateError
	return errors.As(err, &s) && s.Kind == kind
}
