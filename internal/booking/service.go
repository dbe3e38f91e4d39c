package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"bus-ticketing/internal/config"
	"bus-ticketing/internal/logger"
	"bus-ticketing/internal/models"
	"bus-ticketing/internal/payment"
	"bus-ticketing/internal/promo"
)

// BookingStore is the durable booking/wallet/PNR layer.
type BookingStore interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	GetBookingByPaymentOrder(ctx context.Context, orderID string) (*models.Booking, error)
	GetBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	DeleteBooking(ctx context.Context, id string) error
	MarkCancelled(ctx context.Context, bookingID string, cancelledAt time.Time, refundAmount float64, reason string) (bool, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	DebitAndConfirm(ctx context.Context, bookingID, userID string, amount float64) error
	ConfirmByPaymentOrder(ctx context.Context, orderID string) (bool, error)
	RefundToWallet(ctx context.Context, bookingID, userID string, amount float64) (bool, error)
	NextPNR(ctx context.Context) (string, error)
	ListExpiredPending(ctx context.Context, olderThan time.Time) ([]models.Booking, error)
	MarkPaymentFailed(ctx context.Context, bookingID string) (bool, error)
}

// TripInventory is the seat-inventory aggregate boundary.
type TripInventory interface {
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)
	BookedSeatNumbers(ctx context.Context, tripID string) ([]string, error)
	SeatFares(ctx context.Context, tripID string, seatNumbers []string) (map[string]models.SeatAssignment, error)
	BookSeats(ctx context.Context, tripID string, seatNumbers []string, passengers []models.Passenger, bookingID string) error
	ReleaseSeats(ctx context.Context, bookingID string) error
	ExpirePastTrips(ctx context.Context, now time.Time) (int64, error)
}

// SeatLocker drops the advisory holds once their seats are durably booked.
type SeatLocker interface {
	ReleaseAfterBooking(ctx context.Context, tripID string, seatNumbers []string, holderID string)
}

// Publisher carries fire-and-forget notifications. A publish failure
// is logged and never rolls a booking back.
type Publisher interface {
	PublishSeatsBooked(event models.SeatLockEvent) error
	PublishBookingConfirmed(booking models.Booking) error
	PublishBookingCancelled(booking models.Booking) error
}

// QRGenerator renders the boarding pass for a confirmed booking.
type QRGenerator interface {
	GenerateBoardingQR(booking models.Booking) ([]byte, error)
}

// Service is the transactional core: it validates preconditions,
// computes the fare, reserves seats, settles payment and compensates
// on partial failure so no booking is ever left holding seats with an
// unresolved payment outcome.
type Service struct {
	DB       BookingStore
	Trips    TripInventory
	Locks    SeatLocker
	Kafka    Publisher
	Promo    promo.Validator
	Gateway  payment.Gateway
	QR       QRGenerator
	Fare     config.FareConfig
	Currency string
	MaxSeats int
	Logger   *logger.Logger

	// PendingPaymentWindow bounds how long a pending non-wallet
	// booking may hold its seats before the sweeper reclaims them.
	PendingPaymentWindow time.Duration

	// Now is swappable for deterministic refund-tier tests.
	Now func() time.Time
}

func NewService(db BookingStore, trips TripInventory, locks SeatLocker, kafka Publisher,
	promoValidator promo.Validator, gateway payment.Gateway, qrGen QRGenerator,
	fare config.FareConfig, bookingCfg config.BookingConfig, currency string, log *logger.Logger) *Service {
	return &Service{
		DB:                   db,
		Trips:                trips,
		Locks:                locks,
		Kafka:                kafka,
		Promo:                promoValidator,
		Gateway:              gateway,
		QR:                   qrGen,
		Fare:                 fare,
		Currency:             currency,
		MaxSeats:             bookingCfg.MaxSeatsPerBooking,
		PendingPaymentWindow: bookingCfg.PendingPaymentWindow,
		Logger:               log,
		Now:                  time.Now,
	}
}

func (s *Service) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.DB.GetBooking(ctx, id)
}

func (s *Service) GetBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return s.DB.GetBookingsByUser(ctx, userID)
}

// PlaceBooking runs the full precondition chain and commit sequence of
// a booking request. Precondition failures return with zero side
// effects; failures after the pending booking exists trigger the
// matching compensating actions before the error surfaces.
func (s *Service) PlaceBooking(ctx context.Context, req models.BookingRequest) (*models.BookingResponse, error) {
	now := s.Now()

	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	// Precondition 1: trip exists, active, departure in the future.
	trip, err := s.Trips.GetTrip(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	if !trip.Status.Active() {
		return nil, &models.StateError{Reason: fmt.Sprintf("trip %s is %s and not accepting bookings", trip.TripID, trip.Status)}
	}
	if !trip.DepartureTime.After(now) {
		return nil, &models.StateError{Reason: fmt.Sprintf("trip %s has already departed", trip.TripID)}
	}

	// Precondition 2: requested seats currently available. Advisory
	// only; BookSeats re-checks under the uniqueness constraint at
	// commit time.
	booked, err := s.Trips.BookedSeatNumbers(ctx, req.TripID)
	if err != nil {
		return nil, err
	}
	bookedSet := map[string]bool{}
	for _, seat := range booked {
		bookedSet[seat] = true
	}
	var taken []string
	for _, seat := range req.SeatNumbers {
		if bookedSet[seat] {
			taken = append(taken, seat)
		}
	}
	if len(taken) > 0 {
		return nil, &models.ConflictError{TripID: req.TripID, Seats: taken}
	}

	// Precondition 4: requesting user exists.
	user, err := s.DB.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	fare, err := s.computeFare(ctx, trip, req)
	if err != nil {
		return nil, err
	}

	// Precondition 5: wallet covers the total. Re-checked atomically
	// at debit time; this early check just fails fast.
	if req.PaymentMethod == models.PayWallet && user.WalletBalance < fare.Total {
		return nil, &models.InsufficientFundsError{Required: fare.Total, Available: user.WalletBalance}
	}

	// Commit step 1: pending booking with a fresh sequential PNR.
	pnr, err := s.DB.NextPNR(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate PNR: %w", err)
	}

	seats := make([]models.BookingSeat, len(req.SeatNumbers))
	for i, seat := range req.SeatNumbers {
		seats[i] = models.BookingSeat{SeatNumber: seat, Passenger: req.Passengers[i]}
	}

	booking := &models.Booking{
		BookingID:      uuid.NewString(),
		PNR:            pnr,
		UserID:         req.UserID,
		TripID:         req.TripID,
		Seats:          seats,
		TotalAmount:    fare.Total,
		PaymentMethod:  req.PaymentMethod,
		PaymentStatus:  models.PaymentPending,
		BookingStatus:  models.BookingPending,
		PromoCode:      req.PromoCode,
		DiscountAmount: fare.Discount,
		BoardingPoint:  trip.BoardingPoint,
		DroppingPoint:  trip.DroppingPoint,
		CreatedAt:      now,
	}
	if err := s.DB.CreateBooking(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	s.Logger.LogBooking("CREATE", booking.BookingID, fmt.Sprintf("pnr=%s trip=%s seats=%v total=%.2f", pnr, req.TripID, req.SeatNumbers, fare.Total))

	// Commit step 2: reserve seats. A lost race deletes the pending
	// booking and names the seats that were lost.
	if err := s.Trips.BookSeats(ctx, req.TripID, req.SeatNumbers, req.Passengers, booking.BookingID); err != nil {
		s.compensateDeleteBooking(ctx, booking.BookingID)
		return nil, err
	}

	// Commit step 3/4: settle payment.
	switch req.PaymentMethod {
	case models.PayWallet:
		if err := s.DB.DebitAndConfirm(ctx, booking.BookingID, req.UserID, fare.Total); err != nil {
			s.compensateReleaseSeats(ctx, booking.BookingID)
			s.compensateDeleteBooking(ctx, booking.BookingID)
			return nil, err
		}
		booking.PaymentStatus = models.PaymentSuccess
		booking.BookingStatus = models.BookingConfirmed
		s.attachBoardingQR(ctx, booking)
		s.Logger.LogBooking("CONFIRM", booking.BookingID, "wallet payment settled")
		if err := s.Kafka.PublishBookingConfirmed(*booking); err != nil {
			s.Logger.Warn("BOOKING", fmt.Sprintf("booking-confirmed publish failed: %v", err))
		}

	default:
		orderID, err := s.Gateway.CreateOrder(ctx, fare.Total, s.Currency, pnr)
		if err != nil {
			s.compensateReleaseSeats(ctx, booking.BookingID)
			s.compensateDeleteBooking(ctx, booking.BookingID)
			return nil, err
		}
		booking.PaymentOrderID = orderID
		if err := s.DB.UpdateBooking(ctx, booking); err != nil {
			s.compensateReleaseSeats(ctx, booking.BookingID)
			s.compensateDeleteBooking(ctx, booking.BookingID)
			return nil, fmt.Errorf("failed to attach payment order: %w", err)
		}
		s.Logger.LogBooking("PENDING-PAYMENT", booking.BookingID, fmt.Sprintf("gateway order %s", orderID))
	}

	// The advisory holds served their purpose: the seats are durably
	// reserved now. Broadcasts are fire-and-forget.
	s.Locks.ReleaseAfterBooking(ctx, req.TripID, req.SeatNumbers, req.UserID)
	if err := s.Kafka.PublishSeatsBooked(models.SeatLockEvent{
		Type:        "seats-booked",
		TripID:      req.TripID,
		SeatNumbers: req.SeatNumbers,
		Timestamp:   s.Now(),
	}); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("seats-booked publish failed: %v", err))
	}

	return &models.BookingResponse{
		Booking:       *booking,
		RouteID:       trip.RouteID,
		BusID:         trip.BusID,
		DepartureTime: trip.DepartureTime,
		ArrivalTime:   trip.ArrivalTime,
	}, nil
}

// VerifyPayment settles a non-wallet booking from the gateway
// callback. Replays are harmless: the confirm is a conditional update
// that fires exactly once.
func (s *Service) VerifyPayment(ctx context.Context, req models.VerifyPaymentRequest) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByPaymentOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	if !s.Gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature) {
		s.Logger.Warn("PAYMENT", fmt.Sprintf("signature mismatch for order %s", req.OrderID))
		return nil, &models.ExternalPaymentError{Reason: "payment signature verification failed"}
	}

	confirmed, err := s.DB.ConfirmByPaymentOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		// Zero rows means the booking left the pending state before
		// this callback: either an earlier callback settled it, or the
		// sweeper reclaimed it. Only the former is a harmless replay.
		current, err := s.DB.GetBooking(ctx, booking.BookingID)
		if err != nil {
			return nil, err
		}
		if current.PaymentStatus == models.PaymentSuccess {
			s.Logger.LogBooking("VERIFY", booking.BookingID, "replayed verification ignored")
			return current, nil
		}
		s.Logger.Warn("PAYMENT", fmt.Sprintf("captured payment %s landed on %s booking %s", req.PaymentID, current.BookingStatus, booking.BookingID))
		return nil, &models.StateError{Reason: fmt.Sprintf("booking %s is no longer pending; the captured payment needs a gateway refund", booking.BookingID)}
	}

	booking.PaymentStatus = models.PaymentSuccess
	booking.BookingStatus = models.BookingConfirmed
	s.attachBoardingQR(ctx, booking)
	s.Logger.LogBooking("CONFIRM", booking.BookingID, fmt.Sprintf("gateway payment %s verified", req.PaymentID))

	if err := s.Kafka.PublishBookingConfirmed(*booking); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("booking-confirmed publish failed: %v", err))
	}
	return booking, nil
}

func (s *Service) validateRequest(req models.BookingRequest) error {
	if req.TripID == "" {
		return &models.ValidationError{Reason: "trip id is required"}
	}
	if req.UserID == "" {
		return &models.ValidationError{Reason: "user id is required"}
	}
	if len(req.SeatNumbers) < 1 || len(req.SeatNumbers) > s.MaxSeats {
		return &models.ValidationError{Reason: fmt.Sprintf("seat count must be between 1 and %d", s.MaxSeats)}
	}
	seen := map[string]bool{}
	for _, seat := range req.SeatNumbers {
		if seat == "" {
			return &models.ValidationError{Reason: "seat number is required"}
		}
		if seen[seat] {
			return &models.ValidationError{Reason: "duplicate seat number " + seat}
		}
		seen[seat] = true
	}
	if len(req.Passengers) != len(req.SeatNumbers) {
		return &models.ValidationError{Reason: "exactly one passenger per seat is required"}
	}
	for _, p := range req.Passengers {
		if verr := p.Validate(); verr != nil {
			return verr
		}
	}
	if !req.PaymentMethod.Valid() {
		return &models.ValidationError{Reason: "unknown payment method " + string(req.PaymentMethod)}
	}
	return nil
}

func (s *Service) attachBoardingQR(ctx context.Context, booking *models.Booking) {
	if s.QR == nil {
		return
	}
	qrBytes, err := s.QR.GenerateBoardingQR(*booking)
	if err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("boarding QR generation failed for %s: %v", booking.BookingID, err))
		return
	}
	booking.BoardingQR = qrBytes
	if err := s.DB.UpdateBooking(ctx, booking); err != nil {
		s.Logger.Warn("BOOKING", fmt.Sprintf("failed to store boarding QR for %s: %v", booking.BookingID, err))
	}
}

func (s *Service) compensateDeleteBooking(ctx context.Context, bookingID string) {
	if err := s.DB.DeleteBooking(ctx, bookingID); err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("compensating delete of booking %s failed: %v", bookingID, err))
	}
}

func (s *Service) compensateReleaseSeats(ctx context.Context, bookingID string) {
	if err := s.Trips.ReleaseSeats(ctx, bookingID); err != nil {
		s.Logger.Error("BOOKING", fmt.Sprintf("compensating seat release for booking %s failed: %v", bookingID, err))
	}
}
