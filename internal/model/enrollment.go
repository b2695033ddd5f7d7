// internal/model/enrollment.go
package model

import "time"

// Enrollment statuses. See Transitions for the legal moves between them.
const (
	EnrollmentActive    = "active"
	EnrollmentPaused    = "paused"
	EnrollmentCompleted = "completed"
	EnrollmentResponded = "responded"
	EnrollmentConverted = "converted"
	EnrollmentOptedOut  = "opted_out"
	EnrollmentBounced   = "bounced"
	EnrollmentExpired   = "expired"
)

// Transitions enumerates every legal outgoing transition per enrollment
// status. Statuses absent from a set are rejected with an
// InvalidTransitionError, never silently ignored. Resume (paused -> active)
// only ever happens through an explicit command; the event ingestor moves
// enrollments toward paused or a terminal state only.
var Transitions = map[string]map[string]bool{
	EnrollmentActive: {
		EnrollmentPaused:    true,
		EnrollmentCompleted: true,
		EnrollmentResponded: true,
		EnrollmentConverted: true,
		EnrollmentOptedOut:  true,
		EnrollmentBounced:   true,
		EnrollmentExpired:   true,
	},
	EnrollmentPaused: {
		EnrollmentActive:    true,
		EnrollmentResponded: true,
		EnrollmentConverted: true,
		EnrollmentOptedOut:  true,
		EnrollmentExpired:   true,
	},
	EnrollmentResponded: {
		EnrollmentConverted: true,
		EnrollmentOptedOut:  true,
		EnrollmentExpired:   true,
	},
	EnrollmentBounced: {
		EnrollmentExpired: true,
	},
	EnrollmentCompleted: {},
	EnrollmentConverted: {},
	EnrollmentOptedOut:  {},
	EnrollmentExpired:   {},
}

func CanTransition(from, to string) bool {
	return Transitions[from][to]
}

// TerminalEnrollment reports whether no outgoing transitions remain.
func TerminalEnrollment(status string) bool {
	return len(Transitions[status]) == 0
}

type Enrollment struct {
	ID               int        `db:"id" json:"id"`
	CampaignID       int        `db:"campaign_id" json:"campaign_id"`
	ContactID        int        `db:"contact_id" json:"contact_id"`
	DealID           *int       `db:"deal_id" json:"deal_id,omitempty"`
	Status           string     `db:"status" json:"status"`
	CurrentStep      int        `db:"current_step" json:"current_step"`
	NextTouchAt      *time.Time `db:"next_touch_at" json:"next_touch_at,omitempty"`
	ClaimedUntil     *time.Time `db:"claimed_until" json:"-"` // scheduler lease, nil when unclaimed
	EnrolledAt       time.Time  `db:"enrolled_at" json:"enrolled_at"`
	EnrolledBy       string     `db:"enrolled_by" json:"enrolled_by"`
	TouchesSent      int        `db:"touches_sent" json:"touches_sent"`
	TouchesDelivered int        `db:"touches_delivered" json:"touches_delivered"`
	TouchesFailed    int        `db:"touches_failed" json:"touches_failed"`
	LastTouchAt      *time.Time `db:"last_touch_at" json:"last_touch_at,omitempty"`
	LastTouchChannel string     `db:"last_touch_channel" json:"last_touch_channel,omitempty"`
	RespondedAt      *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	ResponseChannel  string     `db:"response_channel" json:"response_channel,omitempty"`
	ResponseBody     string     `db:"response_body" json:"response_body,omitempty"`
	ConvertedAt      *time.Time `db:"converted_at" json:"converted_at,omitempty"`
	PausedAt         *time.Time `db:"paused_at" json:"paused_at,omitempty"`
	PauseReason      string     `db:"pause_reason" json:"pause_reason,omitempty"`
	LowBalanceFlag   bool       `db:"low_balance_flag" json:"low_balance_flag"`
	Context          map[string]string `db:"-" json:"context,omitempty"` // template interpolation values
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}
