package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentMethod string

const (
	PayWallet     PaymentMethod = "wallet"
	PayCard       PaymentMethod = "card"
	PayUPI        PaymentMethod = "upi"
	PayNetbanking PaymentMethod = "netbanking"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PayWallet, PayCard, PayUPI, PayNetbanking:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentSuccess  PaymentStatus = "success"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Passenger travels on exactly one seat of a booking.
type Passenger struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// Validate enforces the passenger rules shared by the seat inventory
// and the booking orchestrator.
func (p Passenger) Validate() *ValidationError {
	if p.Name == "" {
		return &ValidationError{Reason: "passenger name is required"}
	}
	if p.Age < 1 || p.Age > 120 {
		return &ValidationError{Reason: "passenger age must be between 1 and 120"}
	}
	switch p.Gender {
	case "male", "female", "other":
	default:
		return &ValidationError{Reason: "passenger gender must be male, female or other"}
	}
	return nil
}

// BookingSeat pairs one seat number with its passenger inside a booking.
type BookingSeat struct {
	SeatNumber string `json:"seat_number"`
	Passenger
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	BookingID     string        `bun:"booking_id,pk" json:"booking_id"`
	PNR           string        `bun:"pnr" json:"pnr"`
	UserID        string        `bun:"user_id" json:"user_id"`
	TripID        string        `bun:"trip_id" json:"trip_id"`
	Seats         []BookingSeat `bun:"seats,type:jsonb" json:"seats"`
	TotalAmount   float64       `bun:"total_amount" json:"total_amount"`
	PaymentMethod PaymentMethod `bun:"payment_method" json:"payment_method"`
	PaymentStatus PaymentStatus `bun:"payment_status" json:"payment_status"`
	BookingStatus BookingStatus `bun:"booking_status" json:"booking_status"`

	// Gateway order reference for non-wallet payments, empty otherwise.
	PaymentOrderID string `bun:"payment_order_id,nullzero" json:"payment_order_id,omitempty"`

	PromoCode      string  `bun:"promo_code,nullzero" json:"promo_code,omitempty"`
	DiscountAmount float64 `bun:"discount_amount" json:"discount_amount"`

	// Point snapshots taken at creation time, immutable thereafter.
	BoardingPoint string `bun:"boarding_point" json:"boarding_point"`
	DroppingPoint string `bun:"dropping_point" json:"dropping_point"`

	CancelledAt  time.Time `bun:"cancelled_at,nullzero" json:"cancelled_at,omitempty"`
	RefundAmount float64   `bun:"refund_amount" json:"refund_amount"`
	CancelReason string    `bun:"cancel_reason,nullzero" json:"cancel_reason,omitempty"`

	BoardingQR []byte `bun:"boarding_qr,nullzero" json:"boarding_qr,omitempty"`

	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}

// SeatNumbers returns the seat numbers of the booking in order.
func (b *Booking) SeatNumbers() []string {
	nums := make([]string, len(b.Seats))
	for i, s := range b.Seats {
		nums[i] = s.SeatNumber
	}
	return nums
}

type BookingRequest struct {
	TripID        string        `json:"trip_id"`
	SeatNumbers   []string      `json:"seat_numbers"`
	Passengers    []Passenger   `json:"passengers"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PromoCode     string        `json:"promo_code,omitempty"`
	UserID        string        `json:"user_id"`
}

// BookingResponse enriches the persisted booking with trip context for display.
type BookingResponse struct {
	Booking       Booking   `json:"booking"`
	RouteID       string    `json:"route_id"`
	BusID         string    `json:"bus_id"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
}

// FareBreakdown is the canonical fare computation result:
// total = subtotal - discount + tax + fee.
type FareBreakdown struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Tax      float64 `json:"tax"`
	Fee      float64 `json:"fee"`
	Total    float64 `json:"total"`
}

type CancelRequest struct {
	BookingID string `json:"booking_id"`
	UserID    string `json:"user_id"`
	Reason    string `json:"reason"`
}

type VerifyPaymentRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}
