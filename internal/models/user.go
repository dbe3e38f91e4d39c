package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	UserID string `bun:"user_id,pk" json:"user_id"`
	Name   string `bun:"name" json:"name"`
	Email  string `bun:"email" json:"email"`

	// Mutated only by the booking orchestrator (debit) and the
	// cancellation flow (credit), always via a conditional update.
	WalletBalance float64 `bun:"wallet_balance" json:"wallet_balance"`

	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}
