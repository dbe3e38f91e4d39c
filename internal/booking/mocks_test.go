package booking

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"bus-ticketing/internal/models"
	"bus-ticketing/internal/promo"
)

// Mock implementations of the service collaborators.

type MockBookingStore struct {
	mock.Mock
}

func (m *MockBookingStore) CreateBooking(ctx context.Context, booking *models.Booking) error {
	args := m.Called(booking)
	return args.Error(0)
}

func (m *MockBookingStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingStore) GetBookingByPaymentOrder(ctx context.Context, orderID string) (*models.Booking, error) {
	args := m.Called(orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockBookingStore) GetBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockBookingStore) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	args := m.Called(booking)
	return args.Error(0)
}

func (m *MockBookingStore) DeleteBooking(ctx context.Context, id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockBookingStore) MarkCancelled(ctx context.Context, bookingID string, cancelledAt time.Time, refundAmount float64, reason string) (bool, error) {
	args := m.Called(bookingID, cancelledAt, refundAmount, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockBookingStore) DebitAndConfirm(ctx context.Context, bookingID, userID string, amount float64) error {
	args := m.Called(bookingID, userID, amount)
	return args.Error(0)
}

func (m *MockBookingStore) ConfirmByPaymentOrder(ctx context.Context, orderID string) (bool, error) {
	args := m.Called(orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingStore) RefundToWallet(ctx context.Context, bookingID, userID string, amount float64) (bool, error) {
	args := m.Called(bookingID, userID, amount)
	return args.Bool(0), args.Error(1)
}

func (m *MockBookingStore) NextPNR(ctx context.Context) (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *MockBookingStore) ListExpiredPending(ctx context.Context, olderThan time.Time) ([]models.Booking, error) {
	args := m.Called(olderThan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockBookingStore) MarkPaymentFailed(ctx context.Context, bookingID string) (bool, error) {
	args := m.Called(bookingID)
	return args.Bool(0), args.Error(1)
}

type MockTripInventory struct {
	mock.Mock
}

func (m *MockTripInventory) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	args := m.Called(tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Trip), args.Error(1)
}

func (m *MockTripInventory) BookedSeatNumbers(ctx context.Context, tripID string) ([]string, error) {
	args := m.Called(tripID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockTripInventory) SeatFares(ctx context.Context, tripID string, seatNumbers []string) (map[string]models.SeatAssignment, error) {
	args := m.Called(tripID, seatNumbers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]models.SeatAssignment), args.Error(1)
}

func (m *MockTripInventory) BookSeats(ctx context.Context, tripID string, seatNumbers []string, passengers []models.Passenger, bookingID string) error {
	args := m.Called(tripID, seatNumbers, passengers, bookingID)
	return args.Error(0)
}

func (m *MockTripInventory) ReleaseSeats(ctx context.Context, bookingID string) error {
	args := m.Called(bookingID)
	return args.Error(0)
}

func (m *MockTripInventory) ExpirePastTrips(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(now)
	return args.Get(0).(int64), args.Error(1)
}

type MockSeatLocker struct {
	mock.Mock
}

func (m *MockSeatLocker) ReleaseAfterBooking(ctx context.Context, tripID string, seatNumbers []string, holderID string) {
	m.Called(tripID, seatNumbers, holderID)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishSeatsBooked(event models.SeatLockEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

func (m *MockPublisher) PublishBookingConfirmed(booking models.Booking) error {
	args := m.Called(booking)
	return args.Error(0)
}

func (m *MockPublisher) PublishBookingCancelled(booking models.Booking) error {
	args := m.Called(booking)
	return args.Error(0)
}

type MockPromoValidator struct {
	mock.Mock
}

func (m *MockPromoValidator) Validate(ctx context.Context, code string, amount float64, userID, routeID string) (promo.Result, error) {
	args := m.Called(code, amount, userID, routeID)
	return args.Get(0).(promo.Result), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, amount float64, currency, reference string) (string, error) {
	args := m.Called(amount, currency, reference)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	args := m.Called(orderID, paymentID, signature)
	return args.Bool(0)
}

type MockQRGenerator struct {
	mock.Mock
}

func (m *MockQRGenerator) GenerateBoardingQR(booking models.Booking) ([]byte, error) {
	args := m.Called(booking)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
