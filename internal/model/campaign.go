// internal/model/campaign.go
package model

import "time"

// Campaign lifecycle statuses
const (
	CampaignDraft     = "draft"
	CampaignActive    = "active"
	CampaignPaused    = "paused"
	CampaignCompleted = "completed"
)

// Bounce policies: what a hard bounce does to the enrollment.
const (
	BouncePolicyChannel    = "channel"    // only the bounced channel becomes unusable
	BouncePolicyEnrollment = "enrollment" // whole enrollment goes to bounced
)

// Opt-out scopes: which opt-out halts an active enrollment.
const (
	OptOutScopeLastChannel = "last_channel"
	OptOutScopeAnyChannel  = "any_channel"
)

type Campaign struct {
	ID                    int        `db:"id" json:"id"`
	Name                  string     `db:"name" json:"name"`
	Status                string     `db:"status" json:"status"`
	LeadType              string     `db:"lead_type" json:"lead_type"`
	OwnerID               string     `db:"owner_id" json:"owner_id"`
	QuietHoursStart       string     `db:"quiet_hours_start" json:"quiet_hours_start"` // "HH:MM", empty means none
	QuietHoursEnd         string     `db:"quiet_hours_end" json:"quiet_hours_end"`
	Timezone              string     `db:"timezone" json:"timezone"` // fallback when the contact has none
	SkipWeekends          bool       `db:"skip_weekends" json:"skip_weekends"`
	AutoPauseOnResponse   bool       `db:"auto_pause_on_response" json:"auto_pause_on_response"`
	AutoConvertOnResponse bool       `db:"auto_convert_on_response" json:"auto_convert_on_response"`
	BouncePolicy          string     `db:"bounce_policy" json:"bounce_policy"`
	OptOutScope           string     `db:"opt_out_scope" json:"opt_out_scope"`
	EnrolledCount         int        `db:"enrolled_count" json:"enrolled_count"`
	RespondedCount        int        `db:"responded_count" json:"responded_count"`
	ConvertedCount        int        `db:"converted_count" json:"converted_count"`
	OptedOutCount         int        `db:"opted_out_count" json:"opted_out_count"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             *time.Time `db:"updated_at" json:"updated_at,omitempty"`

	Steps []Step `json:"steps,omitempty"`
}

// Channels a step can send on
const (
	ChannelSMS           = "sms"
	ChannelEmail         = "email"
	ChannelDirectMail    = "direct_mail"
	ChannelSocialDM      = "social_dm"
	ChannelPhoneReminder = "phone_reminder"
)

var Channels = []string{ChannelSMS, ChannelEmail, ChannelDirectMail, ChannelSocialDM, ChannelPhoneReminder}

func ValidChannel(ch string) bool {
	for _, c := range Channels {
		if c == ch {
			return true
		}
	}
	return false
}

type Step struct {
	ID                  int        `db:"id" json:"id"`
	CampaignID          int        `db:"campaign_id" json:"campaign_id"`
	StepNumber          int        `db:"step_number" json:"step_number"`
	DelayDays           int        `db:"delay_days" json:"delay_days"`
	DelayFromEnrollment bool       `db:"delay_from_enrollment" json:"delay_from_enrollment"`
	Channel             string     `db:"channel" json:"channel"`
	Subject             string     `db:"subject" json:"subject"`
	BodyTemplate        string     `db:"body_template" json:"body_template"`
	PieceType           string     `db:"piece_type" json:"piece_type,omitempty"` // direct_mail only
	PieceCostCents      int64      `db:"piece_cost_cents" json:"piece_cost_cents,omitempty"`
	SkipIfResponded     bool       `db:"skip_if_responded" json:"skip_if_responded"`
	SkipIfConverted     bool       `db:"skip_if_converted" json:"skip_if_converted"`
	Active              bool       `db:"active" json:"active"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}
