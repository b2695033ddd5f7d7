// internal/model/touch.go
package model

import "time"

// Touch statuses. pending and sending are the only in-flight states; at most
// one touch per (enrollment, step_number) may ever be in-flight at a time.
const (
	TouchPending   = "pending"
	TouchSending   = "sending"
	TouchSent      = "sent"
	TouchDelivered = "delivered"
	TouchFailed    = "failed"
	TouchBounced   = "bounced"
	TouchSkipped   = "skipped"
	TouchCanceled  = "canceled"
)

func TouchInFlight(status string) bool {
	return status == TouchPending || status == TouchSending
}

// TouchExecuted reports whether the touch already ran against the provider
// (successfully or not). An executed (enrollment, step) key must never get a
// second send, no matter what the enrollment row says.
func TouchExecuted(status string) bool {
	switch status {
	case TouchSent, TouchDelivered, TouchFailed, TouchBounced:
		return true
	}
	return false
}

// Touch is the append-only execution log: one row per attempt lifecycle of a
// step for an enrollment.
type Touch struct {
	ID                int        `db:"id" json:"id"`
	EnrollmentID      int        `db:"enrollment_id" json:"enrollment_id"`
	StepNumber        int        `db:"step_number" json:"step_number"`
	Channel           string     `db:"channel" json:"channel"`
	Status            string     `db:"status" json:"status"`
	ScheduledAt       time.Time  `db:"scheduled_at" json:"scheduled_at"`
	SentAt            *time.Time `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt       *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
	FailedAt          *time.Time `db:"failed_at" json:"failed_at,omitempty"`
	ProviderMessageID string     `db:"provider_message_id" json:"provider_message_id,omitempty"`
	RetryCount        int        `db:"retry_count" json:"retry_count"`
	LastRetryAt       *time.Time `db:"last_retry_at" json:"last_retry_at,omitempty"`
	ResponseReceived  bool       `db:"response_received" json:"response_received"`
	ResponseAt        *time.Time `db:"response_at" json:"response_at,omitempty"`
	ResponseBody      string     `db:"response_body" json:"response_body,omitempty"`
	ErrorMessage      string     `db:"error_message" json:"error_message,omitempty"`
	RenderedContent   string     `db:"rendered_content" json:"rendered_content,omitempty"`

	// direct mail only
	PieceType      string `db:"piece_type" json:"piece_type,omitempty"`
	CostCents      int64  `db:"cost_cents" json:"cost_cents,omitempty"`
	TrackingNumber string `db:"tracking_number" json:"tracking_number,omitempty"`
	ReservationID  string `db:"reservation_id" json:"-"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
