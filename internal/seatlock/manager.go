package seatlock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bus-ticketing/internal/logger"
	"bus-ticketing/internal/models"
)

// Inventory is the slice of the trip aggregate the lock manager needs:
// a locked seat must not shadow a seat that is already sold.
type Inventory interface {
	BookedSeatNumbers(ctx context.Context, tripID string) ([]string, error)
}

// Broadcaster carries lock events to every other viewer of the trip.
// Publishing is fire-and-forget: a broken broker never blocks a lock.
type Broadcaster interface {
	PublishSeatsLocked(event models.SeatLockEvent) error
	PublishSeatsUnlocked(event models.SeatLockEvent) error
}

// Notifier pushes the same events to in-process subscribers (the
// seat-map SSE stream).
type Notifier interface {
	Emit(event models.SeatLockEvent)
}

// Manager arbitrates advisory seat holds during interactive selection.
// Holds are best-effort and time-limited; the booking orchestrator
// re-checks availability at commit time regardless.
type Manager struct {
	Store     Store
	Inventory Inventory
	Kafka     Broadcaster
	Hub       Notifier
	Logger    *logger.Logger
}

func NewManager(store Store, inventory Inventory, kafka Broadcaster, hub Notifier, log *logger.Logger) *Manager {
	return &Manager{Store: store, Inventory: inventory, Kafka: kafka, Hub: hub, Logger: log}
}

// LockSeats acquires the whole batch for the holder or nothing at all.
// The returned ConflictError names every seat that is booked or held
// by a different holder, so the user can re-pick in one round trip.
func (m *Manager) LockSeats(ctx context.Context, tripID string, seatNumbers []string, holderID, connectionID string) error {
	if len(seatNumbers) == 0 {
		return &models.ValidationError{Reason: "no seats requested"}
	}

	booked, err := m.Inventory.BookedSeatNumbers(ctx, tripID)
	if err != nil {
		return fmt.Errorf("failed to read booked seats for trip %s: %w", tripID, err)
	}
	bookedSet := map[string]bool{}
	for _, seat := range booked {
		bookedSet[seat] = true
	}

	conflicts := []string{}
	requested := []string{}
	for _, seat := range seatNumbers {
		if bookedSet[seat] {
			conflicts = append(conflicts, seat)
		} else {
			requested = append(requested, seat)
		}
	}
	if len(conflicts) == 0 {
		lockConflicts, err := m.Store.Lock(ctx, tripID, requested, holderID, connectionID)
		if err != nil {
			return fmt.Errorf("seat lock store error: %w", err)
		}
		conflicts = append(conflicts, lockConflicts...)
	}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		m.Logger.LogLock("LOCK-CONFLICT", tripID, fmt.Sprintf("holder=%s seats=%v", holderID, conflicts))
		return &models.ConflictError{TripID: tripID, Seats: conflicts}
	}

	m.Logger.LogLock("LOCK", tripID, fmt.Sprintf("holder=%s seats=%v", holderID, seatNumbers))
	m.broadcastLocked(tripID, seatNumbers, holderID)
	return nil
}

// UnlockSeats releases only locks owned by the holder.
func (m *Manager) UnlockSeats(ctx context.Context, tripID string, seatNumbers []string, holderID string) error {
	released, err := m.Store.Unlock(ctx, tripID, seatNumbers, holderID)
	if err != nil {
		return fmt.Errorf("seat unlock store error: %w", err)
	}
	if len(released) > 0 {
		m.Logger.LogLock("UNLOCK", tripID, fmt.Sprintf("holder=%s seats=%v", holderID, released))
		m.broadcastUnlocked(tripID, released, holderID)
	}
	return nil
}

// GetLockedSeats returns the current lock snapshot used to render the
// seat map for a new viewer.
func (m *Manager) GetLockedSeats(ctx context.Context, tripID string) ([]models.SeatLock, error) {
	return m.Store.Snapshot(ctx, tripID)
}

// ReleaseConnection drops every lock a dropped connection held, with
// no grace period, and tells the other viewers.
func (m *Manager) ReleaseConnection(ctx context.Context, connectionID string) error {
	releasedByTrip, err := m.Store.ReleaseConnection(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("connection release error: %w", err)
	}
	for tripID, seats := range releasedByTrip {
		m.Logger.LogLock("DISCONNECT", tripID, fmt.Sprintf("conn=%s seats=%v", connectionID, seats))
		m.broadcastUnlocked(tripID, seats, "")
	}
	return nil
}

// ReleaseAfterBooking destroys the holds for seats that were just
// committed. No unlock broadcast: the orchestrator publishes
// seats-booked for the same seats.
func (m *Manager) ReleaseAfterBooking(ctx context.Context, tripID string, seatNumbers []string, holderID string) {
	if _, err := m.Store.Unlock(ctx, tripID, seatNumbers, holderID); err != nil {
		m.Logger.Warn("SEATLOCK", fmt.Sprintf("failed to drop holds after booking on trip %s: %v", tripID, err))
	}
}

func (m *Manager) broadcastLocked(tripID string, seats []string, holderID string) {
	event := models.SeatLockEvent{
		Type:        "seats-locked",
		TripID:      tripID,
		SeatNumbers: seats,
		HolderID:    holderID,
		Timestamp:   time.Now(),
	}
	if m.Hub != nil {
		m.Hub.Emit(event)
	}
	if m.Kafka != nil {
		if err := m.Kafka.PublishSeatsLocked(event); err != nil {
			m.Logger.Warn("SEATLOCK", fmt.Sprintf("broadcast seats-locked failed: %v", err))
		}
	}
}

func (m *Manager) broadcastUnlocked(tripID string, seats []string, holderID string) {
	event := models.SeatLockEvent{
		Type:        "seats-unlocked",
		TripID:      tripID,
		SeatNumbers: seats,
		HolderID:    holderID,
		Timestamp:   time.Now(),
	}
	if m.Hub != nil {
		m.Hub.Emit(event)
	}
	if m.Kafka != nil {
		if err := m.Kafka.PublishSeatsUnlocked(event); err != nil {
			m.Logger.Warn("SEATLOCK", fmt.Sprintf("broadcast seats-unlocked failed: %v", err))
		}
	}
}
