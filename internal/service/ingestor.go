// internal/service/ingestor.go
package service

import (
	"log"
	"strings"
	"time"

	"github.com/unclebandit/dripleopard-backend/internal/model"
	"github.com/unclebandit/dripleopard-backend/internal/repository"
)

// Ingestor applies asynchronous provider signals (delivery receipts, bounces,
// inbound replies, opt-out registrations) to touches and enrollments. Every
// handler is idempotent: the same external event applied twice is a no-op the
// second time. The ingestor only moves enrollments toward paused or a more
// terminal state, never back to active.
type Ingestor struct {
	CampaignRepo   repository.CampaignRepositoryInterface
	ContactRepo    repository.ContactRepositoryInterface
	EnrollmentRepo repository.EnrollmentRepositoryInterface
	TouchRepo      repository.TouchRepositoryInterface
	OptOutRepo     repository.OptOutRepositoryInterface

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (i *Ingestor) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// Delivery event kinds from carrier webhooks.
const (
	EventDelivered = "delivered"
	EventBounced   = "bounced"
	EventFailed    = "failed"
)

// HandleDeliveryEvent applies a carrier delivery callback keyed by the
// provider message id. Unknown ids are tolerated (the touch may belong to
// another system or have been removed).
func (i *Ingestor) HandleDeliveryEvent(providerMessageID, event string, at time.Time) error {
	touch, err := i.TouchRepo.GetByProviderMessageID(providerMessageID)
	if err != nil {
		return err
	}
	if touch == nil {
		log.Println("⚠️ ingestor: unknown provider message id:", providerMessageID)
		return nil
	}

	switch event {
	case EventDelivered:
		if touch.DeliveredAt != nil {
			return nil // duplicate callback
		}
		touch.DeliveredAt = &at
		if touch.Status == model.TouchSent {
			touch.Status = model.TouchDelivered
		}
		if err := i.TouchRepo.Update(touch); err != nil {
			return err
		}
		return i.bumpDelivered(touch.EnrollmentID)

	case EventBounced, EventFailed:
		if touch.Status == model.TouchBounced || touch.FailedAt != nil {
			return nil // duplicate callback
		}
		touch.Status = model.TouchBounced
		touch.FailedAt = &at
		touch.ErrorMessage = "delivery " + event
		if err := i.TouchRepo.Update(touch); err != nil {
			return err
		}
		return i.applyBounce(touch)
	}

	log.Println("⚠️ ingestor: unknown delivery event:", event)
	return nil
}

func (i *Ingestor) bumpDelivered(enrollmentID int) error {
	return i.EnrollmentRepo.IncrementTouchCounter(enrollmentID, "delivered")
}

func (i *Ingestor) applyBounce(touch *model.Touch) error {
	if err := i.EnrollmentRepo.IncrementTouchCounter(touch.EnrollmentID, "failed"); err != nil {
		return err
	}

	e, err := i.EnrollmentRepo.GetByID(touch.EnrollmentID)
	if err != nil {
		return err
	}
	campaign, err := i.CampaignRepo.GetByID(e.CampaignID)
	if err != nil {
		return err
	}

	if campaign.BouncePolicy == model.BouncePolicyEnrollment {
		if model.CanTransition(e.Status, model.EnrollmentBounced) {
			if _, err := i.EnrollmentRepo.TransitionStatus(e.ID, e.Status, model.EnrollmentBounced); err != nil {
				return err
			}
		}
		return nil
	}

	// channel policy: block the channel everywhere; the scheduler skips it on
	// its next pass
	return i.OptOutRepo.RegisterOptOut(&model.OptOut{
		ContactID:        e.ContactID,
		Channel:          touch.Channel,
		Reason:           "hard bounce",
		SourceCampaignID: &campaign.ID,
		SourceTouchID:    &touch.ID,
	})
}

// stopWords end the conversation entirely: opt the contact out of the channel
// and the enrollment.
var stopWords = []string{"stop", "unsubscribe", "stop all", "cancel", "quit"}

// conversionWords are the business signal that a reply is a conversion when
// the campaign has auto_convert_on_response set.
var conversionWords = []string{"yes", "interested", "sign me up", "let's talk", "call me"}

func matchesAny(body string, words []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(body))
	for _, w := range words {
		if normalized == w || strings.HasPrefix(normalized, w+" ") || strings.HasPrefix(normalized, w+".") || strings.HasPrefix(normalized, w+"!") {
			return true
		}
	}
	return false
}

// HandleInboundResponse applies an inbound reply to the touch it answers.
// Response metadata is recorded once; campaign flags then decide whether the
// enrollment converts, pauses, or keeps stepping with responded metadata set
// (steps with skip_if_responded will be skipped, and the sequence settles as
// responded instead of completed).
func (i *Ingestor) HandleInboundResponse(providerMessageID, body string, at time.Time) error {
	touch, err := i.TouchRepo.GetByProviderMessageID(providerMessageID)
	if err != nil {
		return err
	}
	if touch == nil {
		log.Println("⚠️ ingestor: response for unknown provider message id:", providerMessageID)
		return nil
	}
	if touch.ResponseReceived {
		return nil // duplicate callback
	}

	touch.ResponseReceived = true
	touch.ResponseAt = &at
	touch.ResponseBody = body
	if err := i.TouchRepo.Update(touch); err != nil {
		return err
	}

	e, err := i.EnrollmentRepo.GetByID(touch.EnrollmentID)
	if err != nil {
		return err
	}
	campaign, err := i.CampaignRepo.GetByID(e.CampaignID)
	if err != nil {
		return err
	}

	if matchesAny(body, stopWords) {
		if err := i.OptOutRepo.RegisterOptOut(&model.OptOut{
			ContactID:        e.ContactID,
			Channel:          touch.Channel,
			Reason:           "stop reply",
			SourceCampaignID: &campaign.ID,
			SourceTouchID:    &touch.ID,
		}); err != nil {
			return err
		}
		if model.CanTransition(e.Status, model.EnrollmentOptedOut) {
			applied, err := i.EnrollmentRepo.TransitionStatus(e.ID, e.Status, model.EnrollmentOptedOut)
			if err != nil {
				return err
			}
			if applied {
				return i.CampaignRepo.IncrementCounter(e.CampaignID, "opted_out")
			}
		}
		return nil
	}

	firstResponse, err := i.EnrollmentRepo.RecordResponse(e.ID, at, touch.Channel, body)
	if err != nil {
		return err
	}

	switch {
	case campaign.AutoConvertOnResponse && matchesAny(body, conversionWords) && model.CanTransition(e.Status, model.EnrollmentConverted):
		applied, err := i.EnrollmentRepo.MarkConverted(e.ID, e.Status, at)
		if err != nil {
			return err
		}
		if applied {
			if err := i.CampaignRepo.IncrementCounter(e.CampaignID, "converted"); err != nil {
				return err
			}
		}
	case campaign.AutoPauseOnResponse && e.Status == model.EnrollmentActive:
		if _, err := i.EnrollmentRepo.MarkAutoPaused(e.ID, i.now(), "auto-paused on response"); err != nil {
			return err
		}
	}

	if firstResponse {
		return i.CampaignRepo.IncrementCounter(e.CampaignID, "responded")
	}
	return nil
}

// RegisterOptOut handles an opt-out registration from the source of truth and
// halts the contact's enrollments per each campaign's opt-out scope.
func (i *Ingestor) RegisterOptOut(contactID int, channel, reason string, sourceCampaignID, sourceTouchID *int) error {
	if err := i.OptOutRepo.RegisterOptOut(&model.OptOut{
		ContactID:        contactID,
		Channel:          channel,
		Reason:           reason,
		SourceCampaignID: sourceCampaignID,
		SourceTouchID:    sourceTouchID,
	}); err != nil {
		return err
	}

	enrollments, err := i.EnrollmentRepo.ListActiveByContact(contactID)
	if err != nil {
		return err
	}
	for _, e := range enrollments {
		campaign, err := i.CampaignRepo.GetByID(e.CampaignID)
		if err != nil {
			log.Println("⚠️ ingestor: fetch campaign", e.CampaignID, ":", err)
			continue
		}
		if campaign.OptOutScope == model.OptOutScopeLastChannel && e.LastTouchChannel != channel {
			continue
		}
		if !model.CanTransition(e.Status, model.EnrollmentOptedOut) {
			continue
		}
		applied, err := i.EnrollmentRepo.TransitionStatus(e.ID, e.Status, model.EnrollmentOptedOut)
		if err != nil {
			log.Println("⚠️ ingestor: opt out enrollment", e.ID, ":", err)
			continue
		}
		if !applied {
			continue
		}
		if err := i.CampaignRepo.IncrementCounter(e.CampaignID, "opted_out"); err != nil {
			log.Println("⚠️ ingestor: bump counter:", err)
		}
	}
	return nil
}

// RegisterOptIn reverses an opt-out; enrollments stay wherever they are.
func (i *Ingestor) RegisterOptIn(contactID int, channel, reason string) error {
	return i.OptOutRepo.RegisterOptIn(contactID, channel, reason)
}
