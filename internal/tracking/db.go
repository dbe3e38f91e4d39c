package tracking

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/uptrace/bun"

	"bus-ticketing/internal/models"
)

// DB persists tracking state and the status audit log.
type DB struct {
	Bun *bun.DB
}

func Migrate(bunDB *bun.DB) {
	ctx := context.Background()
	for _, model := range []any{(*models.TripTracking)(nil), (*models.TripStatusLog)(nil)} {
		if _, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("create table failed: %v", err)
		}
	}
	log.Println("tracking tables ready")
}

// ListStartedIncomplete returns every trip flagged started but not yet
// completed, the population the evaluator reclassifies each tick.
func (d *DB) ListStartedIncomplete(ctx context.Context) ([]models.TripTracking, error) {
	var trips []models.TripTracking
	err := d.Bun.NewSelect().
		Model(&trips).
		Where("started = ?", true).
		Where("completed = ?", false).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return trips, nil
}

func (d *DB) SaveTracking(ctx context.Context, t *models.TripTracking) error {
	t.UpdatedAt = time.Now()
	_, err := d.Bun.NewUpdate().
		Model(t).
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) AppendStatusLog(ctx context.Context, entry *models.TripStatusLog) error {
	_, err := d.Bun.NewInsert().Model(entry).Exec(ctx)
	return err
}

// RecordPosition notes a position update from the vehicle, flagging
// the trip as started on first contact.
func (d *DB) RecordPosition(ctx context.Context, tripID string, at time.Time) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.TripTracking)(nil)).
		Set("last_position_update = ?", at).
		Set("started = ?", true).
		Set("updated_at = ?", time.Now()).
		Where("trip_id = ?", tripID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &models.NotFoundError{Resource: "trip tracking", ID: tripID}
	}
	return nil
}

func (d *DB) GetTracking(ctx context.Context, tripID string) (*models.TripTracking, error) {
	var t models.TripTracking
	err := d.Bun.NewSelect().
		Model(&t).
		Where("trip_id = ?", tripID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "trip tracking", ID: tripID}
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
