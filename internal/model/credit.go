// internal/model/credit.go
package model

import "time"

// Credit transaction types. Amount is the signed delta against the available
// balance, so the running sum of AmountCents always equals the balance:
// purchase/release/refund are positive, reserve is negative, commit is zero
// (it moves escrowed credit from reserved to used without touching balance).
const (
	TxPurchase = "purchase"
	TxReserve  = "reserve"
	TxCommit   = "commit"
	TxRelease  = "release"
	TxRefund   = "refund"
)

type CreditBalance struct {
	ID                     int       `db:"id" json:"id"`
	BalanceCents           int64     `db:"balance_cents" json:"balance_cents"`
	ReservedCents          int64     `db:"reserved_cents" json:"reserved_cents"`
	LifetimePurchasedCents int64     `db:"lifetime_purchased_cents" json:"lifetime_purchased_cents"`
	LifetimeUsedCents      int64     `db:"lifetime_used_cents" json:"lifetime_used_cents"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// CreditTransaction rows are append-only; BalanceAfterCents snapshots the
// available balance right after the mutation for auditability.
type CreditTransaction struct {
	ID                int       `db:"id" json:"id"`
	Type              string    `db:"type" json:"type"`
	AmountCents       int64     `db:"amount_cents" json:"amount_cents"`
	BalanceAfterCents int64     `db:"balance_after_cents" json:"balance_after_cents"`
	ReservationID     string    `db:"reservation_id" json:"reservation_id,omitempty"`
	PackageID         string    `db:"package_id" json:"package_id,omitempty"`
	Reason            string    `db:"reason" json:"reason,omitempty"`
	RefundOf          int       `db:"refund_of" json:"refund_of,omitempty"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// Reservation statuses
const (
	ReservationHeld      = "held"
	ReservationCommitted = "committed"
	ReservationReleased  = "released"
)

type CreditReservation struct {
	ID          string    `db:"id" json:"id"` // uuid
	AmountCents int64     `db:"amount_cents" json:"amount_cents"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
