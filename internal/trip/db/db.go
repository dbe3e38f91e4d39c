package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"bus-ticketing/internal/models"
)

// DB owns the authoritative booked-seat list of every trip. The
// composite primary key on booked_seats (trip_id, seat_number) is the
// linearization point for concurrent bookings: of two racing inserts
// for the same seat exactly one commits, the other gets a constraint
// violation mapped to ConflictError.
type DB struct {
	Bun *bun.DB
}

func (d *DB) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	var trip models.Trip
	err := d.Bun.NewSelect().
		Model(&trip).
		Where("trip_id = ?", tripID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "trip", ID: tripID}
	}
	if err != nil {
		return nil, err
	}
	return &trip, nil
}

// BookedSeatNumbers returns the seat numbers currently sold on a trip.
func (d *DB) BookedSeatNumbers(ctx context.Context, tripID string) ([]string, error) {
	var seats []string
	err := d.Bun.NewSelect().
		Column("seat_number").
		Table("booked_seats").
		Where("trip_id = ?", tripID).
		Scan(ctx, &seats)
	if err != nil {
		return nil, err
	}
	return seats, nil
}

func (d *DB) IsSeatAvailable(ctx context.Context, tripID, seatNumber string) (bool, error) {
	exists, err := d.Bun.NewSelect().
		Model((*models.BookedSeat)(nil)).
		Where("trip_id = ? AND seat_number = ?", tripID, seatNumber).
		Exists(ctx)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// SeatFares resolves seat type and fare for each requested seat from
// the layout's assignment table. Seat types are tagged once at
// layout-generation time, never parsed out of the seat number.
func (d *DB) SeatFares(ctx context.Context, tripID string, seatNumbers []string) (map[string]models.SeatAssignment, error) {
	var assignments []models.SeatAssignment
	err := d.Bun.NewSelect().
		Model(&assignments).
		Where("trip_id = ?", tripID).
		Where("seat_number IN (?)", bun.In(seatNumbers)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	bySeat := make(map[string]models.SeatAssignment, len(assignments))
	for _, a := range assignments {
		bySeat[a.SeatNumber] = a
	}
	for _, seat := range seatNumbers {
		if _, ok := bySeat[seat]; !ok {
			return nil, &models.ValidationError{Reason: fmt.Sprintf("seat %s does not exist on trip %s", seat, tripID)}
		}
	}
	return bySeat, nil
}

// BookSeats appends entries to the trip's booked-seat list and
// decrements the available count, all inside one transaction. Any
// precondition failure rejects before mutation; a lost race surfaces
// as ConflictError naming exactly the seats that were lost.
func (d *DB) BookSeats(ctx context.Context, tripID string, seatNumbers []string, passengers []models.Passenger, bookingID string) error {
	if len(seatNumbers) == 0 {
		return &models.ValidationError{Reason: "no seats requested"}
	}
	if len(passengers) != len(seatNumbers) {
		return &models.ValidationError{Reason: "passenger count must match seat count"}
	}
	for _, p := range passengers {
		if verr := p.Validate(); verr != nil {
			return verr
		}
	}
	if dup := firstDuplicate(seatNumbers); dup != "" {
		return &models.ValidationError{Reason: "duplicate seat number " + dup}
	}

	fares, err := d.SeatFares(ctx, tripID, seatNumbers)
	if err != nil {
		return err
	}

	err = d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		now := time.Now()
		rows := make([]models.BookedSeat, len(seatNumbers))
		for i, seat := range seatNumbers {
			assignment := fares[seat]
			rows[i] = models.BookedSeat{
				TripID:          tripID,
				SeatNumber:      seat,
				SeatType:        assignment.SeatType,
				Fare:            assignment.Fare,
				PassengerName:   passengers[i].Name,
				PassengerAge:    passengers[i].Age,
				PassengerGender: passengers[i].Gender,
				BookingID:       bookingID,
				BookedAt:        now,
			}
		}

		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model((*models.Trip)(nil)).
			Set("available_seat_count = available_seat_count - ?", len(rows)).
			Where("trip_id = ? AND available_seat_count >= ?", tripID, len(rows)).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return &models.ConflictError{TripID: tripID, Reason: "not enough seats left on trip " + tripID}
		}

		return d.checkInvariant(ctx, tx, tripID)
	})
	if err == nil {
		return nil
	}

	var conflictErr *models.ConflictError
	if errors.As(err, &conflictErr) {
		return conflictErr
	}
	if isUniqueViolation(err) {
		lost, lookupErr := d.conflictingSeats(ctx, tripID, seatNumbers, bookingID)
		if lookupErr != nil || len(lost) == 0 {
			lost = seatNumbers
		}
		return &models.ConflictError{TripID: tripID, Seats: lost}
	}
	return err
}

// ReleaseSeats removes every booked-seat entry referencing the booking
// and restores the available count by the same amount. Used by the
// cancellation flow and by compensating rollback in the orchestrator.
// Releasing an already-released booking is a no-op, so retries are safe.
func (d *DB) ReleaseSeats(ctx context.Context, bookingID string) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var rows []models.BookedSeat
		err := tx.NewSelect().
			Model(&rows).
			Where("booking_id = ?", bookingID).
			Scan(ctx)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		tripID := rows[0].TripID

		if _, err := tx.NewDelete().
			Model((*models.BookedSeat)(nil)).
			Where("booking_id = ?", bookingID).
			Exec(ctx); err != nil {
			return err
		}

		if _, err := tx.NewUpdate().
			Model((*models.Trip)(nil)).
			Set("available_seat_count = available_seat_count + ?", len(rows)).
			Where("trip_id = ?", tripID).
			Exec(ctx); err != nil {
			return err
		}

		return d.checkInvariant(ctx, tx, tripID)
	})
}

// ExpirePastTrips flips every still-active trip whose departure has
// passed to expired. Runs periodically from the sweeper.
func (d *DB) ExpirePastTrips(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Trip)(nil)).
		Set("status = ?", models.TripExpired).
		Where("departure_time < ?", now).
		Where("status IN (?)", bun.In([]models.TripStatus{models.TripScheduled, models.TripBoarding, models.TripDelayed})).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// checkInvariant verifies available + booked == total for the trip,
// inside the same transaction that mutated either side.
func (d *DB) checkInvariant(ctx context.Context, tx bun.Tx, tripID string) error {
	var trip models.Trip
	if err := tx.NewSelect().
		Model(&trip).
		Where("trip_id = ?", tripID).
		Limit(1).
		Scan(ctx); err != nil {
		return err
	}

	booked, err := tx.NewSelect().
		Model((*models.BookedSeat)(nil)).
		Where("trip_id = ?", tripID).
		Count(ctx)
	if err != nil {
		return err
	}

	if trip.AvailableSeatCount < 0 || trip.AvailableSeatCount+booked != trip.TotalSeats {
		return fmt.Errorf("seat invariant violated on trip %s: available=%d booked=%d total=%d",
			tripID, trip.AvailableSeatCount, booked, trip.TotalSeats)
	}
	return nil
}

// conflictingSeats reports which of the requested seats are booked by
// someone else, for the error message after a lost race.
func (d *DB) conflictingSeats(ctx context.Context, tripID string, seatNumbers []string, bookingID string) ([]string, error) {
	var seats []string
	err := d.Bun.NewSelect().
		Column("seat_number").
		Table("booked_seats").
		Where("trip_id = ?", tripID).
		Where("seat_number IN (?)", bun.In(seatNumbers)).
		Where("booking_id != ?", bookingID).
		Scan(ctx, &seats)
	if err != nil {
		return nil, err
	}
	sort.Strings(seats)
	return seats, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value") || // postgres
		strings.Contains(msg, "SQLSTATE=23505")
}

func firstDuplicate(seats []string) string {
	seen := make(map[string]bool, len(seats))
	for _, s := range seats {
		if seen[s] {
			return s
		}
		seen[s] = true
	}
	return ""
}
