package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"bus-ticketing/internal/models"
)

// DB persists bookings, wallet balances and the PNR sequence. Wallet
// mutations always re-validate the balance in the same statement that
// writes it.
type DB struct {
	Bun *bun.DB
}

// PNRCounter backs the sequential, human-referenceable PNR numbers.
type PNRCounter struct {
	bun.BaseModel `bun:"table:pnr_counters"`

	ID    int   `bun:"id,pk"`
	Value int64 `bun:"value"`
}

// ---------------- BOOKINGS ----------------

func (d *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	_, err := d.Bun.NewInsert().Model(booking).Exec(ctx)
	return err
}

func (d *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("booking_id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "booking", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (d *DB) GetBookingByPaymentOrder(ctx context.Context, orderID string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("payment_order_id = ?", orderID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "booking", ID: orderID}
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (d *DB) GetBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (d *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	_, err := d.Bun.NewUpdate().
		Model(booking).
		WherePK().
		Exec(ctx)
	return err
}

// DeleteBooking removes a pending booking. Compensating action only:
// confirmed bookings are cancelled, never deleted.
func (d *DB) DeleteBooking(ctx context.Context, id string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Booking)(nil)).
		Where("booking_id = ? AND booking_status = ?", id, models.BookingPending).
		Exec(ctx)
	return err
}

// MarkCancelled flips a booking to cancelled with its refund record.
// Returns false when the booking was already cancelled.
func (d *DB) MarkCancelled(ctx context.Context, bookingID string, cancelledAt time.Time, refundAmount float64, reason string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("booking_status = ?", models.BookingCancelled).
		Set("cancelled_at = ?", cancelledAt).
		Set("refund_amount = ?", refundAmount).
		Set("cancel_reason = ?", reason).
		Where("booking_id = ? AND booking_status != ?", bookingID, models.BookingCancelled).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected == 1, err
}

// ---------------- WALLET ----------------

func (d *DB) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "user", ID: userID}
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// DebitAndConfirm re-verifies the wallet balance, debits it and
// confirms the pending booking in one transaction. A failed balance
// check surfaces as InsufficientFundsError with nothing written.
func (d *DB) DebitAndConfirm(ctx context.Context, bookingID, userID string, amount float64) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.User)(nil)).
			Set("wallet_balance = wallet_balance - ?", amount).
			Where("user_id = ? AND wallet_balance >= ?", userID, amount).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			var user models.User
			if err := tx.NewSelect().Model(&user).Where("user_id = ?", userID).Limit(1).Scan(ctx); err != nil {
				return fmt.Errorf("wallet debit failed and balance lookup failed: %w", err)
			}
			return &models.InsufficientFundsError{Required: amount, Available: user.WalletBalance}
		}

		res, err = tx.NewUpdate().
			Model((*models.Booking)(nil)).
			Set("payment_status = ?", models.PaymentSuccess).
			Set("booking_status = ?", models.BookingConfirmed).
			Where("booking_id = ? AND booking_status = ?", bookingID, models.BookingPending).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return &models.StateError{Reason: "booking " + bookingID + " is not pending"}
		}
		return nil
	})
}

// ConfirmByPaymentOrder confirms the booking tied to a gateway order.
// Idempotent: the conditional update makes the second verification of
// the same order a no-op, reported via the confirmed flag.
func (d *DB) ConfirmByPaymentOrder(ctx context.Context, orderID string) (confirmed bool, err error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("payment_status = ?", models.PaymentSuccess).
		Set("booking_status = ?", models.BookingConfirmed).
		Where("payment_order_id = ? AND payment_status = ?", orderID, models.PaymentPending).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected == 1, err
}

// RefundToWallet marks the payment refunded and credits the wallet in
// one transaction. Returns false when the payment was not in success
// state, which makes refund retries safe: the flip happens only once.
func (d *DB) RefundToWallet(ctx context.Context, bookingID, userID string, amount float64) (bool, error) {
	var credited bool
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Booking)(nil)).
			Set("payment_status = ?", models.PaymentRefunded).
			Where("booking_id = ? AND payment_status = ?", bookingID, models.PaymentSuccess).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return nil
		}

		if _, err := tx.NewUpdate().
			Model((*models.User)(nil)).
			Set("wallet_balance = wallet_balance + ?", amount).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return err
		}
		credited = true
		return nil
	})
	return credited, err
}

// ---------------- PNR SEQUENCE ----------------

// NextPNR allocates the next sequential PNR.
func (d *DB) NextPNR(ctx context.Context) (string, error) {
	var value int64
	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().
			Model((*PNRCounter)(nil)).
			Set("value = value + 1").
			Where("id = 1").
			Exec(ctx); err != nil {
			return err
		}
		return tx.NewSelect().
			Column("value").
			Table("pnr_counters").
			Where("id = 1").
			Scan(ctx, &value)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("BT%08d", value), nil
}

// ---------------- SWEEPER ----------------

// ListExpiredPending returns non-wallet bookings that have been
// pending longer than the payment window and still hold seats.
func (d *DB) ListExpiredPending(ctx context.Context, olderThan time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("booking_status = ?", models.BookingPending).
		Where("payment_status = ?", models.PaymentPending).
		Where("payment_method != ?", models.PayWallet).
		Where("created_at < ?", olderThan).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// MarkPaymentFailed cancels an abandoned pending booking. Conditional
// on it still being pending so it cannot race a late confirmation.
func (d *DB) MarkPaymentFailed(ctx context.Context, bookingID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("payment_status = ?", models.PaymentFailed).
		Set("booking_status = ?", models.BookingCancelled).
		Set("cancelled_at = ?", time.Now()).
		Set("cancel_reason = ?", "payment window expired").
		Where("booking_id = ? AND payment_status = ?", bookingID, models.PaymentPending).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	return affected == 1, err
}
