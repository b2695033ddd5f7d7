// internal/service/executor.go
package service

import (
	"context"
	"errors"
	"log"
	"time"

	appErrors "github.com/unclebandit/dripleopard-backend/internal/errors"
	"github.com/unclebandit/dripleopard-backend/internal/model"
	"github.com/unclebandit/dripleopard-backend/internal/repository"
	"github.com/unclebandit/dripleopard-backend/internal/sender"
)

// Executor performs one touch send and records the outcome. It is keyed by
// (enrollment, step): re-invocation after a crash or queue re-delivery never
// produces a second external send for a touch that already left pending.
type Executor struct {
	CampaignRepo   repository.CampaignRepositoryInterface
	ContactRepo    repository.ContactRepositoryInterface
	EnrollmentRepo repository.EnrollmentRepositoryInterface
	TouchRepo      repository.TouchRepositoryInterface
	OptOutRepo     repository.OptOutRepositoryInterface
	CreditRepo     repository.CreditRepositoryInterface
	Sender         sender.ChannelSender

	MaxAttempts int

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (x *Executor) now() time.Time {
	if x.Now != nil {
		return x.Now()
	}
	return time.Now()
}

// ExecuteTouch runs the send for the touch keyed by (enrollmentID,
// stepNumber). A returned error means "transient, requeue me"; all other
// outcomes are settled here.
func (x *Executor) ExecuteTouch(ctx context.Context, enrollmentID, stepNumber int) error {
	touch, err := x.TouchRepo.GetByKey(enrollmentID, stepNumber)
	if err != nil {
		return err
	}
	if touch == nil {
		log.Println("⚠️ executor: no touch for enrollment", enrollmentID, "step", stepNumber)
		return nil
	}
	if !model.TouchInFlight(touch.Status) {
		// already settled: idempotent no-op on re-delivery
		return nil
	}

	e, err := x.EnrollmentRepo.GetByID(enrollmentID)
	if err != nil {
		if appErrors.NotFound(err) {
			return x.cancelTouch(touch)
		}
		return err
	}
	if e.Status != model.EnrollmentActive {
		// paused or removed mid-flight: no further execution
		return x.cancelTouch(touch)
	}

	if touch.Status == model.TouchPending {
		claimed, err := x.TouchRepo.MarkSending(touch.ID)
		if err != nil {
			return err
		}
		if !claimed {
			// lost the race to another worker
			return nil
		}
		touch.Status = model.TouchSending
	}

	campaign, err := x.CampaignRepo.GetByID(e.CampaignID)
	if err != nil {
		return err
	}
	steps, err := x.CampaignRepo.ListSteps(e.CampaignID)
	if err != nil {
		return err
	}
	step := stepByNumber(steps, stepNumber)
	if step == nil {
		return x.cancelTouch(touch)
	}
	contact, err := x.ContactRepo.GetByID(e.ContactID)
	if err != nil {
		return err
	}
	if contact == nil {
		return x.cancelTouch(touch)
	}

	touch.RenderedContent = RenderTemplate(step.BodyTemplate, TemplateData(contact, e))

	result, sendErr := x.Sender.Send(ctx, sender.OutboundTouch{
		Channel:        step.Channel,
		ToPhone:        contact.Phone,
		ToEmail:        contact.Email,
		ToHandle:       contact.SocialHandle,
		MailingAddress: contact.MailingAddress,
		Subject:        RenderTemplate(step.Subject, TemplateData(contact, e)),
		Body:           touch.RenderedContent,
		PieceType:      step.PieceType,
	})
	if sendErr != nil {
		return x.recordFailure(e, campaign, steps, step, touch, sendErr)
	}

	return x.recordSuccess(e, campaign, contact, steps, step, touch, result)
}

func (x *Executor) recordSuccess(e *model.Enrollment, campaign *model.Campaign, contact *model.Contact, steps []model.Step, step *model.Step, touch *model.Touch, result *sender.Result) error {
	now := x.now()
	touch.SentAt = &now
	touch.Status = model.TouchSent
	touch.ProviderMessageID = result.ProviderMessageID
	touch.TrackingNumber = result.TrackingNumber
	if result.Delivered {
		touch.Status = model.TouchDelivered
		touch.DeliveredAt = &now
	}
	if err := x.TouchRepo.Update(touch); err != nil {
		return err
	}

	if touch.ReservationID != "" {
		if err := x.CreditRepo.Commit(touch.ReservationID); err != nil {
			log.Println("⚠️ executor: commit reservation", touch.ReservationID, ":", err)
		}
	}

	e.TouchesSent++
	if result.Delivered {
		e.TouchesDelivered++
	}
	e.LastTouchAt = &now
	e.LastTouchChannel = step.Channel
	return x.advance(e, campaign, contact, steps, step.StepNumber)
}

// recordFailure settles permanent failures and exhausted retries; transient
// failures under the attempt cap bubble up so the queue redelivers with
// backoff.
func (x *Executor) recordFailure(e *model.Enrollment, campaign *model.Campaign, steps []model.Step, step *model.Step, touch *model.Touch, sendErr error) error {
	now := x.now()

	var failure *appErrors.SendFailure
	permanent := errors.As(sendErr, &failure) && failure.Permanent

	if permanent {
		touch.Status = model.TouchBounced
		touch.FailedAt = &now
		touch.ErrorMessage = sendErr.Error()
		if err := x.TouchRepo.Update(touch); err != nil {
			return err
		}
		if touch.ReservationID != "" {
			if err := x.CreditRepo.Release(touch.ReservationID); err != nil {
				log.Println("⚠️ executor: release reservation:", err)
			}
		}
		e.TouchesFailed++
		return x.applyBouncePolicy(e, campaign, steps, step, touch)
	}

	touch.RetryCount++
	touch.LastRetryAt = &now
	touch.ErrorMessage = sendErr.Error()

	if touch.RetryCount < x.MaxAttempts {
		// back to pending; the queue retries with backoff
		touch.Status = model.TouchPending
		if err := x.TouchRepo.Update(touch); err != nil {
			return err
		}
		return sendErr
	}

	// retries exhausted: failed touch, but a single failed step does not kill
	// the sequence
	touch.Status = model.TouchFailed
	touch.FailedAt = &now
	if err := x.TouchRepo.Update(touch); err != nil {
		return err
	}
	if touch.ReservationID != "" {
		if err := x.CreditRepo.Release(touch.ReservationID); err != nil {
			log.Println("⚠️ executor: release reservation:", err)
		}
	}
	e.TouchesFailed++

	contact, err := x.ContactRepo.GetByID(e.ContactID)
	if err != nil {
		return err
	}
	return x.advance(e, campaign, contact, steps, step.StepNumber)
}

// applyBouncePolicy handles a hard bounce per the campaign's policy: block
// just the channel (and keep stepping on others) or bounce the enrollment.
func (x *Executor) applyBouncePolicy(e *model.Enrollment, campaign *model.Campaign, steps []model.Step, step *model.Step, touch *model.Touch) error {
	if campaign.BouncePolicy == model.BouncePolicyEnrollment {
		if !model.CanTransition(e.Status, model.EnrollmentBounced) {
			return &appErrors.InvalidTransitionError{From: e.Status, To: model.EnrollmentBounced}
		}
		e.Status = model.EnrollmentBounced
		e.NextTouchAt = nil
		e.ClaimedUntil = nil
		return x.EnrollmentRepo.Update(e)
	}

	// channel policy: the address is undeliverable everywhere, register an
	// opt-out so every campaign skips this channel for the contact
	if err := x.OptOutRepo.RegisterOptOut(&model.OptOut{
		ContactID:        e.ContactID,
		Channel:          step.Channel,
		Reason:           "hard bounce",
		SourceCampaignID: &campaign.ID,
		SourceTouchID:    &touch.ID,
	}); err != nil {
		return err
	}

	contact, err := x.ContactRepo.GetByID(e.ContactID)
	if err != nil {
		return err
	}
	return x.advance(e, campaign, contact, steps, step.StepNumber)
}

// advance moves the enrollment past fromStep: schedules the next remaining
// active step or settles the enrollment when none remain.
func (x *Executor) advance(e *model.Enrollment, campaign *model.Campaign, contact *model.Contact, steps []model.Step, fromStep int) error {
	e.CurrentStep = fromStep + 1
	e.ClaimedUntil = nil

	next := firstActiveStep(steps, e.CurrentStep)
	if next == nil {
		target := model.EnrollmentCompleted
		counter := ""
		if e.ConvertedAt != nil {
			target = model.EnrollmentConverted
			counter = "converted"
		} else if e.RespondedAt != nil {
			target = model.EnrollmentResponded
		}
		if !model.CanTransition(e.Status, target) {
			return &appErrors.InvalidTransitionError{From: e.Status, To: target}
		}
		e.Status = target
		e.NextTouchAt = nil
		if err := x.EnrollmentRepo.Update(e); err != nil {
			return err
		}
		if counter != "" {
			if err := x.CampaignRepo.IncrementCounter(e.CampaignID, counter); err != nil {
				log.Println("⚠️ executor: bump counter:", err)
			}
		}
		return nil
	}

	e.CurrentStep = next.StepNumber
	loc := ContactLocation(contact, campaign)
	nextAt := NextAllowed(CandidateSendTime(*next, e.EnrolledAt, e.LastTouchAt), campaign, loc)
	e.NextTouchAt = &nextAt
	return x.EnrollmentRepo.Update(e)
}

func (x *Executor) cancelTouch(touch *model.Touch) error {
	touch.Status = model.TouchCanceled
	if err := x.TouchRepo.Update(touch); err != nil {
		return err
	}
	if touch.ReservationID != "" {
		if err := x.CreditRepo.Release(touch.ReservationID); err != nil {
			log.Println("⚠️ executor: release reservation:", err)
		}
	}
	return nil
}

func stepByNumber(steps []model.Step, n int) *model.Step {
	for i := range steps {
		if steps[i].StepNumber == n {
			return &steps[i]
		}
	}
	return nil
}
