package db

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"bus-ticketing/internal/models"
)

// Migrate creates the trip-side tables. The booked_seats composite
// primary key doubles as the uniqueness constraint that serializes
// concurrent bookings for the same seat.
func Migrate(bunDB *bun.DB) {
	ctx := context.Background()

	tables := []any{
		(*models.Trip)(nil),
		(*models.SeatAssignment)(nil),
		(*models.BookedSeat)(nil),
	}

	for _, model := range tables {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("create table failed: %v", err)
		}
	}

	log.Println("trip tables ready")
}
