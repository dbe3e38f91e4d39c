package tracking

import (
	"context"
	"fmt"
	"time"

	"bus-ticketing/internal/logger"
	"bus-ticketing/internal/models"
)

// Store is the persistence boundary of the status machine.
type Store interface {
	ListStartedIncomplete(ctx context.Context) ([]models.TripTracking, error)
	SaveTracking(ctx context.Context, t *models.TripTracking) error
	AppendStatusLog(ctx context.Context, entry *models.TripStatusLog) error
}

// Publisher announces status transitions. Fire-and-forget.
type Publisher interface {
	PublishTripStatusChanged(entry models.TripStatusLog) error
}

// Evaluator reclassifies every started, incomplete trip from the age
// of its last position update: under the sleep threshold the trip is
// active, between the thresholds it sleeps, past the offline threshold
// it is offline with the connectivity flag set. Trips that never
// reported a position while flagged started fall back to not_started.
type Evaluator struct {
	Store            Store
	Kafka            Publisher
	Logger           *logger.Logger
	SleepThreshold   time.Duration
	OfflineThreshold time.Duration

	Now func() time.Time
}

func NewEvaluator(store Store, kafka Publisher, log *logger.Logger, sleep, offline time.Duration) *Evaluator {
	return &Evaluator{
		Store:            store,
		Kafka:            kafka,
		Logger:           log,
		SleepThreshold:   sleep,
		OfflineThreshold: offline,
		Now:              time.Now,
	}
}

// Classify computes the status band for one trip at the given time.
func (e *Evaluator) Classify(t models.TripTracking, now time.Time) models.TrackingStatus {
	if t.LastPositionUpdate.IsZero() {
		return models.TrackingNotStarted
	}
	elapsed := now.Sub(t.LastPositionUpdate)
	switch {
	case elapsed < e.SleepThreshold:
		return models.TrackingActive
	case elapsed <= e.OfflineThreshold:
		return models.TrackingSleep
	default:
		return models.TrackingOffline
	}
}

// EvaluateAll runs one reclassification pass. Every transition is
// persisted, appended to the audit log as actor "system" and published.
func (e *Evaluator) EvaluateAll(ctx context.Context) error {
	trips, err := e.Store.ListStartedIncomplete(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tracked trips: %w", err)
	}

	now := e.Now()
	for i := range trips {
		t := trips[i]
		next := e.Classify(t, now)
		if next == t.Status {
			continue
		}

		previous := t.Status
		t.Status = next
		t.ConnectivityIssue = next == models.TrackingOffline

		if err := e.Store.SaveTracking(ctx, &t); err != nil {
			e.Logger.Error("TRACKING", fmt.Sprintf("failed to save status of trip %s: %v", t.TripID, err))
			continue
		}

		entry := models.TripStatusLog{
			TripID:         t.TripID,
			PreviousStatus: previous,
			NewStatus:      next,
			Actor:          "system",
			Timestamp:      now,
		}
		if err := e.Store.AppendStatusLog(ctx, &entry); err != nil {
			e.Logger.Error("TRACKING", fmt.Sprintf("failed to append status log for trip %s: %v", t.TripID, err))
		}

		e.Logger.Info("TRACKING", fmt.Sprintf("trip %s: %s -> %s", t.TripID, previous, next))
		if e.Kafka != nil {
			if err := e.Kafka.PublishTripStatusChanged(entry); err != nil {
				e.Logger.Warn("TRACKING", fmt.Sprintf("trip-status publish failed: %v", err))
			}
		}
	}
	return nil
}

// Runner drives the evaluator on a fixed period.
type Runner struct {
	evaluator *Evaluator
	interval  time.Duration
	logger    *logger.Logger
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewRunner(evaluator *Evaluator, interval time.Duration, log *logger.Logger) *Runner {
	return &Runner{
		evaluator: evaluator,
		interval:  interval,
		logger:    log,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("TRACKING", fmt.Sprintf("status evaluator started (interval=%s)", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("TRACKING", "status evaluator stopped (context cancelled)")
			return
		case <-r.stopCh:
			r.logger.Info("TRACKING", "status evaluator stopped")
			return
		case <-ticker.C:
			if err := r.evaluator.EvaluateAll(ctx); err != nil {
				r.logger.Error("TRACKING", fmt.Sprintf("evaluation pass failed: %v", err))
			}
		}
	}
}

func (r *Runner) Stop() {
	close(r.stopCh)
	<-r.doneCh
}
