package workflow

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrUnknownStatus     = errors.New("unknown status")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrCartEmpty         = errors.New("cart is empty")
	ErrAddressRequired   = errors.New("delivery address is required")
	ErrReasonRequired    = errors.New("rejection reason is required")
	ErrFileRequired      = errors.New("prescription file is required")
	ErrMedicineRequired  = errors.New("prescribed medicine is required")

	// ErrInvalidParticipant means a missing patient or doctor, a staff patient or a non doctor
	ErrInvalidParticipant = errors.New("invalid patient or doctor")
)

// TransitionError names the refused edge. It matches ErrIllegalTransition.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move %s from %s to %s", e.Entity, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}
