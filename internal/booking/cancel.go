package booking

import (
	"context"
	"fmt"

	"bus-ticketing/internal/models"
)

// CancelBooking reverses a booking: marks it cancelled with a
// time-tiered refund, releases its seats and credits the wallet if the
// original payment went through. Each step is conditional or a no-op
// on retry, so a partially-completed cancellation can be re-run until
// it converges instead of dropping the refund or double-releasing seats.
func (s *Service) CancelBooking(ctx context.Context, req models.CancelRequest) (*models.Booking, error) {
	if req.Reason == "" {
		return nil, &models.ValidationError{Reason: "cancellation reason is required"}
	}

	booking, err := s.DB.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != req.UserID {
		return nil, &models.StateError{Reason: fmt.Sprintf("booking %s does not belong to user %s", req.BookingID, req.UserID)}
	}
	if booking.BookingStatus == models.BookingCompleted {
		return nil, &models.StateError{Reason: "cannot cancel a completed booking"}
	}
	// A cancelled booking whose refund already settled is done; one
	// still carrying a successful payment resumes the refund sequence.
	if booking.BookingStatus == models.BookingCancelled && booking.PaymentStatus != models.PaymentSuccess {
		return nil, &models.StateError{Reason: fmt.Sprintf("booking %s is already cancelled", req.BookingID)}
	}

	trip, err := s.Trips.GetTrip(ctx, booking.TripID)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	if !trip.DepartureTime.After(now) {
		return nil, &models.StateError{Reason: fmt.Sprintf("trip %s has already departed, booking cannot be cancelled", trip.TripID)}
	}

	hoursLeft := trip.DepartureTime.Sub(now).Hours()
	refund := RefundAmount(booking.TotalAmount, hoursLeft)

	flipped, err := s.DB.MarkCancelled(ctx, booking.BookingID, now, refund, req.Reason)
	if err != nil {
		return nil, fmt.Errorf("failed to mark booking cancelled: %w", err)
	}
	if flipped {
		s.Logger.LogBooking("CANCEL", booking.BookingID, fmt.Sprintf("refund=%.2f (%.1fh before departure): %s", refund, hoursLeft, req.Reason))
	} else {
		// Retry of a partial cancellation; refund amount from the
		// first attempt stays authoritative.
		refund = booking.RefundAmount
	}

	if err := s.Trips.ReleaseSeats(ctx, booking.BookingID); err != nil {
		return nil, fmt.Errorf("failed to release seats for booking %s: %w", booking.BookingID, err)
	}

	if booking.PaymentStatus == models.PaymentSuccess {
		credited, err := s.DB.RefundToWallet(ctx, booking.BookingID, booking.UserID, refund)
		if err != nil {
			return nil, fmt.Errorf("failed to credit refund for booking %s: %w", booking.BookingID, err)
		}
		if credited {
			s.Logger.LogBooking("REFUND", booking.BookingID, fmt.Sprintf("%.2f credited to wallet of %s", refund, booking.UserID))
		}
	}

	cancelled, err := s.DB.GetBooking(ctx, booking.BookingID)
	if err != nil {
		return nil, err
	}

	if pubErr := s.Kafka.PublishBookingCancelled(*cancelled); pubErr != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("booking-cancelled publish failed: %v", pubErr))
	}
	return cancelled, nil
}
