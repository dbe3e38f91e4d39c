package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TrackingStatus string

const (
	TrackingNotStarted TrackingStatus = "not_started"
	TrackingActive     TrackingStatus = "active"
	TrackingSleep      TrackingStatus = "sleep"
	TrackingOffline    TrackingStatus = "offline"
)

// TripTracking is the live-tracking state of one trip, reclassified
// periodically from the age of the last position update. Independent
// of seat inventory.
type TripTracking struct {
	bun.BaseModel `bun:"table:trip_tracking"`

	TripID             string         `bun:"trip_id,pk" json:"trip_id"`
	Status             TrackingStatus `bun:"status" json:"status"`
	Started            bool           `bun:"started" json:"started"`
	Completed          bool           `bun:"completed" json:"completed"`
	ConnectivityIssue  bool           `bun:"connectivity_issue" json:"connectivity_issue"`
	LastPositionUpdate time.Time      `bun:"last_position_update,nullzero" json:"last_position_update,omitempty"`
	UpdatedAt          time.Time      `bun:"updated_at" json:"updated_at"`
}

// TripStatusLog is one audit entry per tracking-status transition.
type TripStatusLog struct {
	bun.BaseModel `bun:"table:trip_status_logs"`

	ID             int64          `bun:"id,pk,autoincrement" json:"id"`
	TripID         string         `bun:"trip_id" json:"trip_id"`
	PreviousStatus TrackingStatus `bun:"previous_status" json:"previous_status"`
	NewStatus      TrackingStatus `bun:"new_status" json:"new_status"`
	Actor          string         `bun:"actor" json:"actor"`
	Timestamp      time.Time      `bun:"timestamp" json:"timestamp"`
}
