package calc

import (
	"errors"
	"fmt"
)

// Sentinel errors wrapped by DataError. Match them with errors.Is.
var (
	ErrNoAvoidedCosts        = errors.New("no avoided costs")
	ErrAmbiguousAvoidedCosts = errors.New("ambiguous avoided costs")
	ErrLoadShapeNotFound     = errors.New("load shape not found")
	ErrUnknownThermsProfile  = errors.New("unknown therms profile")
	ErrNoThermsAdjustment    = errors.New("no therms profile adjustment for utility")
	ErrInvalidProject        = errors.New("invalid project")
)

// DataError reports reference data that a project needs but that is missing
// or does not match. These are deterministic and never retried.
type DataError struct {
	Err     error
	Project string
	Detail  string
}

func (e *DataError) Error() string {
	if e.Project == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Detail)
	}
	return fmt.Sprintf("project %s: %v: %s", e.Project, e.Err, e.Detail)
}

func (e *DataError) Unwrap() error { return e.Err }

func dataErrorf(sentinel error, project, format string, args ...any) *DataError {
	return &DataError{Err: sentinel, Project: project, Detail: fmt.Sprintf(format, args...)}
}

// InputError is a coercion or validation failure for one input row.
type InputError struct {
	Row    int
	ID     string
	Column string
	Err    error
}

func (e *InputError) Error() string {
	loc := fmt.Sprintf("row %d", e.Row)
	if e.ID != "" {
		loc += fmt.Sprintf(" (id %q)", e.ID)
	}
	if e.Column != "" {
		loc += fmt.Sprintf(" column %q", e.Column)
	}
	return fmt.Sprintf("%s: %v", loc, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }
