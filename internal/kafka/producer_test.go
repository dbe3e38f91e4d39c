package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bus-ticketing/internal/models"
)

func TestDisabledProducerIsNoOp(t *testing.T) {
	// When Kafka is off, main hands the services a nil producer. Every
	// publish must be a silent no-op, not a panic.
	var p *Producer

	event := models.SeatLockEvent{TripID: "trip-1", SeatNumbers: []string{"1A"}}
	booking := models.Booking{BookingID: "booking-1"}
	entry := models.TripStatusLog{TripID: "trip-1"}

	assert.NoError(t, p.PublishSeatsLocked(event))
	assert.NoError(t, p.PublishSeatsUnlocked(event))
	assert.NoError(t, p.PublishSeatsBooked(event))
	assert.NoError(t, p.PublishBookingConfirmed(booking))
	assert.NoError(t, p.PublishBookingCancelled(booking))
	assert.NoError(t, p.PublishTripStatusChanged(entry))
	assert.NoError(t, p.Close())
}
