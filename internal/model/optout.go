// internal/model/optout.go
package model

import "time"

// OptOut rows are append/flip only: registering an opt-out deactivates prior
// rows for the pair and inserts an active one; opting back in inserts an
// inactive row with OptedInAt set instead of deleting history.
type OptOut struct {
	ID               int        `db:"id" json:"id"`
	ContactID        int        `db:"contact_id" json:"contact_id"`
	Channel          string     `db:"channel" json:"channel"`
	Active           bool       `db:"active" json:"active"`
	Reason           string     `db:"reason" json:"reason,omitempty"`
	SourceCampaignID *int       `db:"source_campaign_id" json:"source_campaign_id,omitempty"`
	SourceTouchID    *int       `db:"source_touch_id" json:"source_touch_id,omitempty"`
	OptedOutAt       *time.Time `db:"opted_out_at" json:"opted_out_at,omitempty"`
	OptedInAt        *time.Time `db:"opted_in_at" json:"opted_in_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}
