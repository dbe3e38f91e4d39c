package models

import "time"

// SeatLock is the advisory, non-durable hold on one seat during
// interactive selection. It lives only in the lock store; a process
// restart losing every lock is safe because bookings remain the sole
// durable record of sold seats.
type SeatLock struct {
	TripID       string    `json:"trip_id"`
	SeatNumber   string    `json:"seat_number"`
	HolderID     string    `json:"holder_id"`
	ConnectionID string    `json:"connection_id"`
	AcquiredAt   time.Time `json:"acquired_at"`
}

// SeatLockEvent is broadcast to every other subscriber of a trip's
// channel whenever seats are locked, unlocked or booked.
type SeatLockEvent struct {
	Type        string    `json:"type"` // seats-locked, seats-unlocked, seats-booked
	TripID      string    `json:"trip_id"`
	SeatNumbers []string  `json:"seat_numbers"`
	HolderID    string    `json:"holder_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
