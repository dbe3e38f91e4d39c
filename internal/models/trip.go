package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TripStatus string

const (
	TripScheduled TripStatus = "scheduled"
	TripBoarding  TripStatus = "boarding"
	TripDeparted  TripStatus = "departed"
	TripArrived   TripStatus = "arrived"
	TripCancelled TripStatus = "cancelled"
	TripDelayed   TripStatus = "delayed"
	TripExpired   TripStatus = "expired"
)

// Active reports whether the trip can still accept bookings.
func (s TripStatus) Active() bool {
	switch s {
	case TripScheduled, TripBoarding, TripDelayed:
		return true
	}
	return false
}

type Trip struct {
	bun.BaseModel `bun:"table:trips"`

	TripID             string     `bun:"trip_id,pk" json:"trip_id"`
	BusID              string     `bun:"bus_id" json:"bus_id"`
	RouteID            string     `bun:"route_id" json:"route_id"`
	DepartureTime      time.Time  `bun:"departure_time" json:"departure_time"`
	ArrivalTime        time.Time  `bun:"arrival_time" json:"arrival_time"`
	BaseFare           float64    `bun:"base_fare" json:"base_fare"`
	TotalSeats         int        `bun:"total_seats" json:"total_seats"`
	AvailableSeatCount int        `bun:"available_seat_count" json:"available_seat_count"`
	Status             TripStatus `bun:"status" json:"status"`
	BoardingPoint      string     `bun:"boarding_point" json:"boarding_point"`
	DroppingPoint      string     `bun:"dropping_point" json:"dropping_point"`
	CreatedAt          time.Time  `bun:"created_at" json:"created_at"`
}

// SeatAssignment is the bus layout's seat-type tag for one seat,
// assigned once at layout-generation time. Fare resolution goes
// through this table, never through parsing the seat number.
type SeatAssignment struct {
	bun.BaseModel `bun:"table:seat_assignments"`

	TripID     string  `bun:"trip_id,pk" json:"trip_id"`
	SeatNumber string  `bun:"seat_number,pk" json:"seat_number"`
	SeatType   string  `bun:"seat_type" json:"seat_type"`
	Fare       float64 `bun:"fare" json:"fare"`
}

// BookedSeat is one row of a trip's authoritative booked-seat list.
// The unique (trip_id, seat_number) index is what makes two racing
// bookings for the same seat impossible: the losing insert is rejected
// by the store.
type BookedSeat struct {
	bun.BaseModel `bun:"table:booked_seats"`

	TripID          string    `bun:"trip_id,pk" json:"trip_id"`
	SeatNumber      string    `bun:"seat_number,pk" json:"seat_number"`
	SeatType        string    `bun:"seat_type" json:"seat_type"`
	Fare            float64   `bun:"fare" json:"fare"`
	PassengerName   string    `bun:"passenger_name" json:"passenger_name"`
	PassengerAge    int       `bun:"passenger_age" json:"passenger_age"`
	PassengerGender string    `bun:"passenger_gender" json:"passenger_gender"`
	BookingID       string    `bun:"booking_id" json:"booking_id"`
	BookedAt        time.Time `bun:"booked_at" json:"booked_at"`
}
