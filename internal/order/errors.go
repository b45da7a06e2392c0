package order

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTrigger matches every InvalidTriggerError.
	ErrInvalidTrigger = errors.New("order: invalid status trigger")
	// ErrUnknownStatus matches every UnknownStatusError.
	ErrUnknownStatus = errors.New("order: unknown status")
	// ErrStatusConflict is returned when the order changed while a transition
	// was being applied.
	ErrStatusConflict = errors.New("order: status changed concurrently")
	// ErrNotFound is returned when the order does not exist.
	ErrNotFound = errors.New("order: not found")
)

// InvalidTriggerError reports a trigger the current status does not accept.
type InvalidTriggerError struct {
	Trigger string
	Status  StatusName
}

func (e *InvalidTriggerError) Error() string {
	return fmt.Sprintf("order: trigger %q is not valid for status %q", e.Trigger, e.Status)
}

// Is makes errors.Is(err, ErrInvalidTrigger) hold.
func (e *InvalidTriggerError) Is(target error) bool {
	return target == ErrInvalidTrigger
}

// UnknownStatusError reports a persisted status value with no behaviour.
type UnknownStatusError struct {
	Status StatusName
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("order: unknown status %q", e.Status)
}

// Is makes errors.Is(err, ErrUnknownStatus) hold.
func (e *UnknownStatusError) Is(target error) bool {
	return target == ErrUnknownStatus
}
