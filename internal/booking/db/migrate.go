package db

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"bus-ticketing/internal/models"
)

// Migrate creates the booking-side tables and seeds the PNR counter.
func Migrate(bunDB *bun.DB) {
	ctx := context.Background()

	tables := []any{
		(*models.Booking)(nil),
		(*models.User)(nil),
		(*PNRCounter)(nil),
	}

	for _, model := range tables {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("create table failed: %v", err)
		}
	}

	exists, err := bunDB.NewSelect().Model((*PNRCounter)(nil)).Where("id = 1").Exists(ctx)
	if err != nil {
		log.Fatalf("pnr counter check failed: %v", err)
	}
	if !exists {
		if _, err := bunDB.NewInsert().Model(&PNRCounter{ID: 1, Value: 0}).Exec(ctx); err != nil {
			log.Fatalf("pnr counter seed failed: %v", err)
		}
	}

	log.Println("booking tables ready")
}
