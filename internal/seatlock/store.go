package seatlock

import (
	"context"

	"bus-ticketing/internal/models"
)

// Store is the keyed-expiry backend behind the seat lock manager. A
// single-instance deployment can back it with a local map, a
// multi-instance deployment with Redis, without touching any caller.
//
// Locks are advisory and non-durable: losing every lock on restart is
// safe, bookings remain the only durable record of sold seats.
type Store interface {
	// Lock acquires every seat in the batch for the holder or none of
	// them. Seats already held by a different holder are returned as
	// conflicts with no lock taken.
	Lock(ctx context.Context, tripID string, seatNumbers []string, holderID, connectionID string) (conflicts []string, err error)

	// Unlock releases only locks owned by the holder and reports which
	// seats were actually released.
	Unlock(ctx context.Context, tripID string, seatNumbers []string, holderID string) (released []string, err error)

	// Snapshot returns the live locks for a trip, skipping expired ones.
	Snapshot(ctx context.Context, tripID string) ([]models.SeatLock, error)

	// ReleaseConnection drops every lock held by a connection,
	// returning released seat numbers grouped by trip.
	ReleaseConnection(ctx context.Context, connectionID string) (map[string][]string, error)
}
