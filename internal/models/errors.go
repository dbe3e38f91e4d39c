package models

import (
	"fmt"
	"strings"
)

// ValidationError rejects malformed input before any state is touched.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// ConflictError reports seats that were booked or locked by someone else.
// The caller must re-select and retry.
type ConflictError struct {
	TripID string
	Seats  []string
	Reason string
}

func (e *ConflictError) Error() string {
	if len(e.Seats) > 0 {
		return fmt.Sprintf("seat conflict on trip %s: %s", e.TripID, strings.Join(e.Seats, ", "))
	}
	return "conflict: " + e.Reason
}

// InsufficientFundsError reports a wallet balance too low for the booking total.
type InsufficientFundsError struct {
	Required  float64
	Available float64
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient wallet balance: need %.2f, have %.2f", e.Required, e.Available)
}

// NotFoundError reports a missing trip, booking or user.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// StateError reports an illegal transition, such as cancelling after
// departure or cancelling twice. Not retryable.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return "invalid state: " + e.Reason
}

// ExternalPaymentError reports a gateway or signature failure. The
// booking stays pending and verification may be retried.
type ExternalPaymentError struct {
	Reason string
	Err    error
}

func (e *ExternalPaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment error: %s: %v", e.Reason, e.Err)
	}
	return "payment error: " + e.Reason
}

func (e *ExternalPaymentError) Unwrap() error {
	return e.Err
}
