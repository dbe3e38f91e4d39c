package qr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-ticketing/internal/models"
)

func sampleBooking() models.Booking {
	return models.Booking{
		BookingID: "booking-1",
		PNR:       "BT00000042",
		TripID:    "trip-1",
		Seats: []models.BookingSeat{
			{SeatNumber: "1A", Passenger: models.Passenger{Name: "Asha", Age: 28, Gender: "female"}},
			{SeatNumber: "2A", Passenger: models.Passenger{Name: "Ravi", Age: 31, Gender: "male"}},
		},
	}
}

func TestGenerateBoardingQR(t *testing.T) {
	gen := NewGenerator("test-secret")

	png, err := gen.GenerateBoardingQR(sampleBooking())
	require.NoError(t, err)
	require.NotEmpty(t, png)

	// PNG magic bytes: the QR is a real image.
	assert.True(t, bytes.HasPrefix(png, []byte{0x89, 'P', 'N', 'G'}))
}

func TestGenerateBoardingQRPayloadIsEncrypted(t *testing.T) {
	gen := NewGenerator("test-secret")

	// Two renders of the same booking use fresh IVs, so the ciphertext
	// (and hence the QR matrix) differs while both stay decodable.
	png1, err := gen.GenerateBoardingQR(sampleBooking())
	require.NoError(t, err)
	png2, err := gen.GenerateBoardingQR(sampleBooking())
	require.NoError(t, err)
	assert.NotEqual(t, png1, png2)
}

func TestGeneratorSecretNormalization(t *testing.T) {
	// Any secret length works; it is hashed down to a valid AES key.
	for _, secret := range []string{"", "x", "a-much-longer-secret-than-thirty-two-bytes-for-sure"} {
		gen := NewGenerator(secret)
		png, err := gen.GenerateBoardingQR(sampleBooking())
		require.NoError(t, err)
		assert.NotEmpty(t, png)
	}
}
