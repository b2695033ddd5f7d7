package sender

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/dripleopard-backend/internal/errors"
	"github.com/unclebandit/dripleopard-backend/internal/model"
)

// OutboundTouch is everything a channel provider needs to deliver one touch.
type OutboundTouch struct {
	Channel        string
	ToPhone        string
	ToEmail        string
	ToHandle       string
	MailingAddress string
	Subject        string
	Body           string
	PieceType      string
}

// Result from a dispatch. Delivered is true when the provider confirms
// synchronously (direct mail vendors and phone reminders do; carriers
// confirm later via webhook).
type Result struct {
	ProviderMessageID string
	Delivered         bool
	TrackingNumber    string
}

// ChannelSender is the contract this engine expects from messaging providers.
// Provider-internal retries and rate limits are their own business; a
// returned SendFailure tells the executor whether to retry.
type ChannelSender interface {
	Send(ctx context.Context, touch OutboundTouch) (*Result, error)
}

// MockSender simulates providers for local runs and tests.
type MockSender struct {
	// FailFor marks recipients that hard-bounce (keyed by phone or email).
	FailFor map[string]bool
}

func (s *MockSender) Send(ctx context.Context, touch OutboundTouch) (*Result, error) {
	recipient := touch.ToPhone
	if touch.Channel == model.ChannelEmail {
		recipient = touch.ToEmail
	}
	if s.FailFor[recipient] {
		return nil, &appErrors.SendFailure{Permanent: true, Channel: touch.Channel, Err: errors.New("recipient rejected")}
	}

	res := &Result{ProviderMessageID: uuid.NewString()}
	switch touch.Channel {
	case model.ChannelDirectMail:
		res.Delivered = true
		res.TrackingNumber = "TRK-" + strings.ToUpper(uuid.NewString()[:8])
	case model.ChannelPhoneReminder:
		res.Delivered = true
	}
	return res, nil
}
