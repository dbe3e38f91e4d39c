package booking

import (
	"context"
	"fmt"
	"time"

	"bus-ticketing/internal/logger"
)

// Sweeper releases the seats of non-wallet bookings whose payment
// never arrived within the configured window, so abandoned carts
// cannot starve the inventory. It also flips past-departure trips to
// expired on the same tick.
type Sweeper struct {
	service  *Service
	interval time.Duration
	window   time.Duration
	logger   *logger.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewSweeper(service *Service, interval, window time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		service:  service,
		interval: interval,
		window:   window,
		logger:   log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (sw *Sweeper) Start(ctx context.Context) {
	sw.logger.Info("SWEEPER", fmt.Sprintf("pending-payment sweeper started (interval=%s window=%s)", sw.interval, sw.window))

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	defer close(sw.doneCh)

	for {
		select {
		case <-ctx.Done():
			sw.logger.Info("SWEEPER", "sweeper stopped (context cancelled)")
			return
		case <-sw.stopCh:
			sw.logger.Info("SWEEPER", "sweeper stopped")
			return
		case <-ticker.C:
			sw.sweep(ctx)
		}
	}
}

func (sw *Sweeper) Stop() {
	close(sw.stopCh)
	<-sw.doneCh
}

func (sw *Sweeper) sweep(ctx context.Context) {
	released, err := sw.service.ReleaseExpiredPending(ctx)
	if err != nil {
		sw.logger.Error("SWEEPER", fmt.Sprintf("pending sweep failed: %v", err))
	} else if released > 0 {
		sw.logger.Info("SWEEPER", fmt.Sprintf("released seats of %d abandoned bookings", released))
	}

	expired, err := sw.service.Trips.ExpirePastTrips(ctx, sw.service.Now())
	if err != nil {
		sw.logger.Error("SWEEPER", fmt.Sprintf("trip expiry sweep failed: %v", err))
	} else if expired > 0 {
		sw.logger.Info("SWEEPER", fmt.Sprintf("expired %d past-departure trips", expired))
	}
}

// ReleaseExpiredPending cancels every pending non-wallet booking older
// than the payment window and returns its seats to inventory. The
// conditional MarkPaymentFailed makes it safe against a verification
// callback racing the sweep: only one of them wins the flip.
func (s *Service) ReleaseExpiredPending(ctx context.Context) (int, error) {
	cutoff := s.Now().Add(-s.PendingPaymentWindow)
	stale, err := s.DB.ListExpiredPending(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, booking := range stale {
		flipped, err := s.DB.MarkPaymentFailed(ctx, booking.BookingID)
		if err != nil {
			s.Logger.Error("SWEEPER", fmt.Sprintf("failed to expire booking %s: %v", booking.BookingID, err))
			continue
		}
		if !flipped {
			continue // payment arrived after all
		}
		if err := s.Trips.ReleaseSeats(ctx, booking.BookingID); err != nil {
			s.Logger.Error("SWEEPER", fmt.Sprintf("failed to release seats of expired booking %s: %v", booking.BookingID, err))
			continue
		}
		s.Logger.LogBooking("EXPIRE", booking.BookingID, "payment window elapsed, seats returned to inventory")
		count++
	}
	return count, nil
}
