package otp

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by stores when no record matches the lookup.
	ErrNotFound = errors.New("otp record not found")
	// ErrAttemptLimit is returned by stores when an increment would pass the maximum.
	ErrAttemptLimit = errors.New("otp attempt limit reached")
	// ErrConflict is returned by stores when a conditional update matched nothing.
	ErrConflict = errors.New("otp record changed concurrently")

	ErrInvalidPurpose = errors.New("unknown otp purpose")
	ErrPhoneRequired  = errors.New("phone number is required")
)

// DeliveryError reports that the SMS gateway rejected the message or was unreachable.
// The issuance has already been rolled back when this is returned.
type DeliveryError struct {
	Reason     string
	StatusCode string
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != "" {
		return fmt.Sprintf("failed to send OTP SMS: %s (status %s)", e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("failed to send OTP SMS: %s", e.Reason)
}

// InternalError wraps a persistence fault. It is never retried by the ledger.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("otp %s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

func internal(op string, err error) error {
	return &InternalError{Op: op, Err: err}
}
