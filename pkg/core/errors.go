package core

import (
	"errors"
	"fmt"
)

// ErrNoSharedColumns is returned when no join key was requested and the two
// tables have no column usable as one.
var ErrNoSharedColumns = errors.New("no shared columns to join on")

// ErrInvalidKeySpec is returned when an explicit key request is malformed.
// Match it with errors.Is; use errors.As with *KeySpecError for details.
var ErrInvalidKeySpec = errors.New("invalid join key specification")

// Side names one of the two join inputs.
type Side string

// Join sides.
const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// KeySpecError describes why a requested JoinPlan was rejected.
type KeySpecError struct {
	Reason string
	Side   Side   // empty when the problem is not side-specific
	Column string // empty when no single column is at fault
}

func (e *KeySpecError) Error() string {
	switch {
	case e.Column != "" && e.Side != "":
		return fmt.Sprintf("%s: %s column %q: %s", ErrInvalidKeySpec, e.Side, e.Column, e.Reason)
	case e.Column != "":
		return fmt.Sprintf("%s: column %q: %s", ErrInvalidKeySpec, e.Column, e.Reason)
	default:
		return fmt.Sprintf("%s: %s", ErrInvalidKeySpec, e.Reason)
	}
}

// Unwrap lets errors.Is(err, ErrInvalidKeySpec) succeed.
func (e *KeySpecError) Unwrap() error { return ErrInvalidKeySpec }
