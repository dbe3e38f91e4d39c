package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bus-ticketing/internal/models"
)

func (f *fixture) confirmedBooking() *models.Booking {
	return &models.Booking{
		BookingID: "booking-1",
		PNR:       "BT00000042",
		UserID:    "user-1",
		TripID:    "trip-1",
		Seats: []models.BookingSeat{
			{SeatNumber: "1A", Passenger: models.Passenger{Name: "Asha", Age: 28, Gender: "female"}},
		},
		TotalAmount:   1000,
		PaymentMethod: models.PayWallet,
		PaymentStatus: models.PaymentSuccess,
		BookingStatus: models.BookingConfirmed,
	}
}

func (f *fixture) cancelRequest() models.CancelRequest {
	return models.CancelRequest{BookingID: "booking-1", UserID: "user-1", Reason: "change of plans"}
}

// expectCancelFlow wires the happy-path cancellation mocks for a trip
// departing hoursLeft from now, returning the expected refund.
func (f *fixture) expectCancelFlow(t *testing.T, hoursLeft time.Duration, refund float64) {
	t.Helper()
	booking := f.confirmedBooking()
	trip := f.trip()
	trip.DepartureTime = f.now.Add(hoursLeft)

	cancelled := *booking
	cancelled.BookingStatus = models.BookingCancelled
	cancelled.PaymentStatus = models.PaymentRefunded
	cancelled.RefundAmount = refund

	f.db.On("GetBooking", "booking-1").Return(booking, nil).Once()
	f.trips.On("GetTrip", "trip-1").Return(trip, nil)
	f.db.On("MarkCancelled", "booking-1", f.now, refund, "change of plans").Return(true, nil)
	f.trips.On("ReleaseSeats", "booking-1").Return(nil)
	f.db.On("RefundToWallet", "booking-1", "user-1", refund).Return(true, nil)
	f.db.On("GetBooking", "booking-1").Return(&cancelled, nil).Once()
	f.kafka.On("PublishBookingCancelled", mock.AnythingOfType("models.Booking")).Return(nil)
}

func TestCancelBookingRefundTiers(t *testing.T) {
	cases := []struct {
		name      string
		hoursLeft time.Duration
		refund    float64
	}{
		{"under 2h before departure", 1 * time.Hour, 500},
		{"under 6h before departure", 4 * time.Hour, 700},
		{"more than 6h before departure", 24 * time.Hour, 800},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.expectCancelFlow(t, tc.hoursLeft, tc.refund)

			got, err := f.svc.CancelBooking(context.Background(), f.cancelRequest())
			require.NoError(t, err)
			assert.Equal(t, models.BookingCancelled, got.BookingStatus)
			assert.Equal(t, tc.refund, got.RefundAmount)
			f.db.AssertExpectations(t)
		})
	}
}

func TestCancelBookingRequiresReason(t *testing.T) {
	f := newFixture(t)

	req := f.cancelRequest()
	req.Reason = ""
	_, err := f.svc.CancelBooking(context.Background(), req)

	var verr *models.ValidationError
	assert.ErrorAs(t, err, &verr)
	f.db.AssertNotCalled(t, "GetBooking", mock.Anything)
}

func TestCancelBookingWrongUser(t *testing.T) {
	f := newFixture(t)
	f.db.On("GetBooking", "booking-1").Return(f.confirmedBooking(), nil)

	req := f.cancelRequest()
	req.UserID = "someone-else"
	_, err := f.svc.CancelBooking(context.Background(), req)

	var serr *models.StateError
	assert.ErrorAs(t, err, &serr)
	f.db.AssertNotCalled(t, "MarkCancelled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelBookingCompleted(t *testing.T) {
	f := newFixture(t)
	booking := f.confirmedBooking()
	booking.BookingStatus = models.BookingCompleted
	f.db.On("GetBooking", "booking-1").Return(booking, nil)

	_, err := f.svc.CancelBooking(context.Background(), f.cancelRequest())

	var serr *models.StateError
	assert.ErrorAs(t, err, &serr)
}

func TestCancelBookingAlreadySettled(t *testing.T) {
	f := newFixture(t)
	booking := f.confirmedBooking()
	booking.BookingStatus = models.BookingCancelled
	booking.PaymentStatus = models.PaymentRefunded
	f.db.On("GetBooking", "booking-1").Return(booking, nil)

	_, err := f.svc.CancelBooking(context.Background(), f.cancelRequest())

	var serr *models.StateError
	assert.ErrorAs(t, err, &serr)
	f.trips.AssertNotCalled(t, "ReleaseSeats", mock.Anything)
}

func TestCancelBookingAfterDeparture(t *testing.T) {
	f := newFixture(t)
	trip := f.trip()
	trip.DepartureTime = f.now.Add(-1 * time.Hour)

	f.db.On("GetBooking", "booking-1").Return(f.confirmedBooking(), nil)
	f.trips.On("GetTrip", "trip-1").Return(trip, nil)

	_, err := f.svc.CancelBooking(context.Background(), f.cancelRequest())

	var serr *models.StateError
	require.ErrorAs(t, err, &serr)
	f.db.AssertNotCalled(t, "MarkCancelled", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.trips.AssertNotCalled(t, "ReleaseSeats", mock.Anything)
}

func TestCancelBookingResumesPartialCancellation(t *testing.T) {
	f := newFixture(t)
	// A previous attempt flipped the booking but crashed before the
	// refund landed: cancelled, payment still success.
	booking := f.confirmedBooking()
	booking.BookingStatus = models.BookingCancelled
	booking.RefundAmount = 800

	settled := *booking
	settled.PaymentStatus = models.PaymentRefunded

	f.db.On("GetBooking", "booking-1").Return(booking, nil).Once()
	f.trips.On("GetTrip", "trip-1").Return(f.trip(), nil)
	// The flip already happened, so this attempt loses it.
	f.db.On("MarkCancelled", "booking-1", f.now, mock.AnythingOfType("float64"), "change of plans").Return(false, nil)
	f.trips.On("ReleaseSeats", "booking-1").Return(nil)
	// The first attempt's recorded refund stays authoritative.
	f.db.On("RefundToWallet", "booking-1", "user-1", 800.0).Return(true, nil)
	f.db.On("GetBooking", "booking-1").Return(&settled, nil).Once()
	f.kafka.On("PublishBookingCancelled", mock.AnythingOfType("models.Booking")).Return(nil)

	got, err := f.svc.CancelBooking(context.Background(), f.cancelRequest())
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, got.PaymentStatus)
	f.db.AssertExpectations(t)
}

func TestCancelBookingPendingPaymentNoRefund(t *testing.T) {
	f := newFixture(t)
	booking := f.confirmedBooking()
	booking.PaymentMethod = models.PayCard
	booking.PaymentStatus = models.PaymentPending
	booking.BookingStatus = models.BookingPending

	cancelled := *booking
	cancelled.BookingStatus = models.BookingCancelled

	f.db.On("GetBooking", "booking-1").Return(booking, nil).Once()
	f.trips.On("GetTrip", "trip-1").Return(f.trip(), nil)
	f.db.On("MarkCancelled", "booking-1", f.now, 800.0, "change of plans").Return(true, nil)
	f.trips.On("ReleaseSeats", "booking-1").Return(nil)
	f.db.On("GetBooking", "booking-1").Return(&cancelled, nil).Once()
	f.kafka.On("PublishBookingCancelled", mock.AnythingOfType("models.Booking")).Return(nil)

	_, err := f.svc.CancelBooking(context.Background(), f.cancelRequest())
	require.NoError(t, err)

	// No money moved, so no wallet credit.
	f.db.AssertNotCalled(t, "RefundToWallet", mock.Anything, mock.Anything, mock.Anything)
}
