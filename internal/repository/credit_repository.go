package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/dripleopard-backend/internal/errors"
	"github.com/unclebandit/dripleopard-backend/internal/model"
)

type CreditRepositoryInterface interface {
	GetBalance() (*model.CreditBalance, error)
	Reserve(amountCents int64) (string, error)
	Commit(reservationID string) error
	Release(reservationID string) error
	Purchase(amountCents int64, packageID string) (*model.CreditTransaction, error)
	Refund(transactionID int, reason string) (*model.CreditTransaction, error)
	ListTransactions() ([]*model.CreditTransaction, error)
}

// CreditRepository keeps one mutable balance row plus an append-only
// transaction log. Every mutation locks the balance row for the duration of
// its transaction so concurrent reservations cannot lose updates.
type CreditRepository struct {
	DB *sql.DB
}

func (r *CreditRepository) GetBalance() (*model.CreditBalance, error) {
	var b model.CreditBalance
	err := r.DB.QueryRow(`
        SELECT id, balance_cents, reserved_cents, lifetime_purchased_cents, lifetime_used_cents, updated_at
        FROM credit_balance WHERE id=1
    `).Scan(&b.ID, &b.BalanceCents, &b.ReservedCents, &b.LifetimePurchasedCents, &b.LifetimeUsedCents, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *CreditRepository) lockBalance(tx *sql.Tx) (*model.CreditBalance, error) {
	var b model.CreditBalance
	err := tx.QueryRow(`
        SELECT id, balance_cents, reserved_cents, lifetime_purchased_cents, lifetime_used_cents, updated_at
        FROM credit_balance WHERE id=1 FOR UPDATE
    `).Scan(&b.ID, &b.BalanceCents, &b.ReservedCents, &b.LifetimePurchasedCents, &b.LifetimeUsedCents, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *CreditRepository) writeBalance(tx *sql.Tx, b *model.CreditBalance) error {
	_, err := tx.Exec(`
        UPDATE credit_balance
        SET balance_cents=$1, reserved_cents=$2, lifetime_purchased_cents=$3, lifetime_used_cents=$4, updated_at=NOW()
        WHERE id=1
    `, b.BalanceCents, b.ReservedCents, b.LifetimePurchasedCents, b.LifetimeUsedCents)
	return err
}

func (r *CreditRepository) appendTransaction(tx *sql.Tx, t *model.CreditTransaction) error {
	t.CreatedAt = time.Now()
	return tx.QueryRow(`
        INSERT INTO credit_transactions (type, amount_cents, balance_after_cents, reservation_id, package_id, reason, refund_of, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `, t.Type, t.AmountCents, t.BalanceAfterCents, t.ReservationID, t.PackageID, t.Reason, t.RefundOf, t.CreatedAt).Scan(&t.ID)
}

// Reserve escrows amountCents for an in-flight direct-mail touch.
func (r *CreditRepository) Reserve(amountCents int64) (string, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	b, err := r.lockBalance(tx)
	if err != nil {
		return "", err
	}
	if b.BalanceCents < amountCents {
		return "", &appErrors.InsufficientBalanceError{NeededCents: amountCents, AvailableCents: b.BalanceCents}
	}

	reservationID := uuid.NewString()
	b.BalanceCents -= amountCents
	b.ReservedCents += amountCents
	if err := r.writeBalance(tx, b); err != nil {
		return "", err
	}

	if _, err := tx.Exec(`
        INSERT INTO credit_reservations (id, amount_cents, status, created_at, updated_at)
        VALUES ($1, $2, 'held', NOW(), NOW())
    `, reservationID, amountCents); err != nil {
		return "", err
	}

	if err := r.appendTransaction(tx, &model.CreditTransaction{
		Type:              model.TxReserve,
		AmountCents:       -amountCents,
		BalanceAfterCents: b.BalanceCents,
		ReservationID:     reservationID,
	}); err != nil {
		return "", err
	}

	return reservationID, tx.Commit()
}

func (r *CreditRepository) settleReservation(reservationID, fromStatus, toStatus string, settle func(b *model.CreditBalance, amount int64)) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	b, err := r.lockBalance(tx)
	if err != nil {
		return err
	}

	var amount int64
	err = tx.QueryRow(`
        UPDATE credit_reservations SET status=$1, updated_at=NOW()
        WHERE id=$2 AND status=$3
        RETURNING amount_cents
    `, toStatus, reservationID, fromStatus).Scan(&amount)
	if err == sql.ErrNoRows {
		// already settled: idempotent no-op
		return nil
	}
	if err != nil {
		return err
	}

	settle(b, amount)
	if err := r.writeBalance(tx, b); err != nil {
		return err
	}

	txType := model.TxCommit
	var delta int64
	if toStatus == model.ReservationReleased {
		txType = model.TxRelease
		delta = amount
	}
	if err := r.appendTransaction(tx, &model.CreditTransaction{
		Type:              txType,
		AmountCents:       delta,
		BalanceAfterCents: b.BalanceCents,
		ReservationID:     reservationID,
	}); err != nil {
		return err
	}

	return tx.Commit()
}

// Commit converts a held reservation into used credit (successful send).
func (r *CreditRepository) Commit(reservationID string) error {
	return r.settleReservation(reservationID, model.ReservationHeld, model.ReservationCommitted,
		func(b *model.CreditBalance, amount int64) {
			b.ReservedCents -= amount
			b.LifetimeUsedCents += amount
		})
}

// Release returns a held reservation to the balance (failed send).
func (r *CreditRepository) Release(reservationID string) error {
	return r.settleReservation(reservationID, model.ReservationHeld, model.ReservationReleased,
		func(b *model.CreditBalance, amount int64) {
			b.ReservedCents -= amount
			b.BalanceCents += amount
		})
}

func (r *CreditRepository) Purchase(amountCents int64, packageID string) (*model.CreditTransaction, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	b, err := r.lockBalance(tx)
	if err != nil {
		return nil, err
	}
	b.BalanceCents += amountCents
	b.LifetimePurchasedCents += amountCents
	if err := r.writeBalance(tx, b); err != nil {
		return nil, err
	}

	record := &model.CreditTransaction{
		Type:              model.TxPurchase,
		AmountCents:       amountCents,
		BalanceAfterCents: b.BalanceCents,
		PackageID:         packageID,
	}
	if err := r.appendTransaction(tx, record); err != nil {
		return nil, err
	}

	return record, tx.Commit()
}

func (r *CreditRepository) Refund(transactionID int, reason string) (*model.CreditTransaction, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var amount int64
	var txType string
	err = tx.QueryRow(`SELECT type, amount_cents FROM credit_transactions WHERE id=$1`, transactionID).
		Scan(&txType, &amount)
	if err != nil {
		return nil, err
	}
	if txType != model.TxPurchase {
		return nil, appErrors.NewValidation("transaction_id", "only purchases can be refunded")
	}

	// a purchase refunds at most once
	var refunded bool
	if err := tx.QueryRow(`
        SELECT EXISTS (SELECT 1 FROM credit_transactions WHERE type=$1 AND refund_of=$2)
    `, model.TxRefund, transactionID).Scan(&refunded); err != nil {
		return nil, err
	}
	if refunded {
		return nil, appErrors.NewValidation("transaction_id", "already refunded")
	}

	b, err := r.lockBalance(tx)
	if err != nil {
		return nil, err
	}
	b.BalanceCents -= amount
	b.LifetimePurchasedCents -= amount
	if err := r.writeBalance(tx, b); err != nil {
		return nil, err
	}

	record := &model.CreditTransaction{
		Type:              model.TxRefund,
		AmountCents:       -amount,
		BalanceAfterCents: b.BalanceCents,
		Reason:            reason,
		RefundOf:          transactionID,
	}
	if err := r.appendTransaction(tx, record); err != nil {
		return nil, err
	}

	return record, tx.Commit()
}

func (r *CreditRepository) ListTransactions() ([]*model.CreditTransaction, error) {
	rows, err := r.DB.Query(`
        SELECT id, type, amount_cents, balance_after_cents, reservation_id, package_id, reason, refund_of, created_at
        FROM credit_transactions ORDER BY id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.CreditTransaction{}
	for rows.Next() {
		var t model.CreditTransaction
		if err := rows.Scan(&t.ID, &t.Type, &t.AmountCents, &t.BalanceAfterCents,
			&t.ReservationID, &t.PackageID, &t.Reason, &t.RefundOf, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, nil
}

var _ CreditRepositoryInterface = (*CreditRepository)(nil)
