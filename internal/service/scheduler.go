// internal/service/scheduler.go
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	appErrors "github.com/unclebandit/dripleopard-backend/internal/errors"
	"github.com/unclebandit/dripleopard-backend/internal/model"
	"github.com/unclebandit/dripleopard-backend/internal/queue"
	"github.com/unclebandit/dripleopard-backend/internal/repository"
)

// Scheduler finds due enrollments, resolves the concrete step to run next and
// hands exactly one touch-execution request per enrollment to the queue.
// Multiple scheduler processes can run the same pass concurrently: the
// ClaimDue lease plus the per-touch MarkSending claim keep every
// (enrollment, step) at most once in flight.
type Scheduler struct {
	CampaignRepo   repository.CampaignRepositoryInterface
	ContactRepo    repository.ContactRepositoryInterface
	EnrollmentRepo repository.EnrollmentRepositoryInterface
	TouchRepo      repository.TouchRepositoryInterface
	OptOutRepo     repository.OptOutRepositoryInterface
	CreditRepo     repository.CreditRepositoryInterface
	Queue          queue.Queue

	Lease    time.Duration // claim lease per enrollment
	Batch    int           // max claims per pass
	Workers  int           // concurrent enrollment processors
	MaxStale time.Duration // expiry window for orphaned enrollments

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RunPass executes one scheduling pass: expire orphans, claim due
// enrollments, process each. Individual enrollment failures are logged and
// retried next pass, never fatal to the pass.
func (s *Scheduler) RunPass(ctx context.Context) error {
	now := s.now()

	if s.MaxStale > 0 {
		s.expireStale(now)
	}

	claimed, err := s.EnrollmentRepo.ClaimDue(now, s.Lease, s.Batch)
	if err != nil {
		return err
	}
	if len(claimed) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Workers)
	for _, e := range claimed {
		e := e
		g.Go(func() error {
			if err := s.processEnrollment(ctx, e); err != nil {
				if !errors.Is(err, appErrors.ErrConcurrencyConflict) {
					log.Println("⚠️ scheduler: enrollment", e.ID, ":", err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// expireStale moves non-terminal enrollments with no touch activity inside
// the staleness window to expired. Detects orphans left behind by deleted or
// corrupted steps.
func (s *Scheduler) expireStale(now time.Time) {
	stale, err := s.EnrollmentRepo.ListStaleNonTerminal(now.Add(-s.MaxStale))
	if err != nil {
		log.Println("⚠️ scheduler: stale sweep:", err)
		return
	}
	for _, e := range stale {
		if !model.CanTransition(e.Status, model.EnrollmentExpired) {
			continue
		}
		e.Status = model.EnrollmentExpired
		e.NextTouchAt = nil
		e.ClaimedUntil = nil
		if err := s.EnrollmentRepo.Update(e); err != nil {
			log.Println("⚠️ scheduler: expire enrollment", e.ID, ":", err)
		}
	}
}

// processEnrollment decides the next step for one claimed enrollment.
// Skipped steps (predicates, opt-outs, inactive) advance immediately without
// waiting; at most one execution request is emitted per pass.
func (s *Scheduler) processEnrollment(ctx context.Context, e *model.Enrollment) error {
	campaign, err := s.CampaignRepo.GetByID(e.CampaignID)
	if err != nil {
		return err
	}
	steps, err := s.CampaignRepo.ListSteps(e.CampaignID)
	if err != nil {
		return err
	}
	contact, err := s.ContactRepo.GetByID(e.ContactID)
	if err != nil {
		return err
	}
	loc := ContactLocation(contact, campaign)
	now := s.now()

	for {
		step := firstActiveStep(steps, e.CurrentStep)
		if step == nil {
			return s.finalize(e)
		}
		e.CurrentStep = step.StepNumber

		// Never send the same (enrollment, step) twice: if a touch for this
		// key already ran, the enrollment row is stale (a concurrent write
		// walked current_step back) and we step over it instead.
		prior, err := s.TouchRepo.GetByKey(e.ID, step.StepNumber)
		if err != nil {
			return err
		}
		if prior != nil && model.TouchExecuted(prior.Status) {
			e.CurrentStep = step.StepNumber + 1
			continue
		}

		if (step.SkipIfResponded && e.RespondedAt != nil) || (step.SkipIfConverted && e.ConvertedAt != nil) {
			if err := s.recordSkip(e, step, now, "skip predicate matched"); err != nil {
				return err
			}
			e.CurrentStep = step.StepNumber + 1
			continue
		}

		optedOut, err := s.OptOutRepo.IsOptedOut(e.ContactID, step.Channel)
		if err != nil {
			return err
		}
		if optedOut {
			if err := s.recordSkip(e, step, now, "channel opted out"); err != nil {
				return err
			}
			if !s.anyAllowedChannelAfter(e.ContactID, steps, step.StepNumber+1) {
				return s.transitionOptedOut(e)
			}
			e.CurrentStep = step.StepNumber + 1
			continue
		}

		candidate := NextAllowed(CandidateSendTime(*step, e.EnrolledAt, e.LastTouchAt), campaign, loc)
		if candidate.After(now) {
			e.NextTouchAt = &candidate
			e.ClaimedUntil = nil
			return s.EnrollmentRepo.Update(e)
		}

		return s.emitTouch(ctx, e, step, candidate)
	}
}

// emitTouch creates (or reuses) the pending touch for the step and publishes
// the execution request. Credit for direct mail is reserved first; an
// insufficient balance leaves the touch pending for the next pass.
func (s *Scheduler) emitTouch(ctx context.Context, e *model.Enrollment, step *model.Step, scheduledAt time.Time) error {
	touch, err := s.TouchRepo.GetInFlight(e.ID, step.StepNumber)
	if err != nil {
		return err
	}
	if touch != nil && touch.Status == model.TouchSending {
		// executor mid-flight; nothing to emit
		e.ClaimedUntil = nil
		if err := s.EnrollmentRepo.Update(e); err != nil {
			return err
		}
		return appErrors.ErrConcurrencyConflict
	}

	if touch == nil {
		touch = &model.Touch{
			EnrollmentID: e.ID,
			StepNumber:   step.StepNumber,
			Channel:      step.Channel,
			Status:       model.TouchPending,
			ScheduledAt:  scheduledAt,
			PieceType:    step.PieceType,
			CostCents:    step.PieceCostCents,
		}
		if err := s.TouchRepo.Create(touch); err != nil {
			return err
		}
	}

	if step.Channel == model.ChannelDirectMail && touch.ReservationID == "" {
		reservationID, err := s.CreditRepo.Reserve(step.PieceCostCents)
		if err != nil {
			var insufficient *appErrors.InsufficientBalanceError
			if errors.As(err, &insufficient) {
				// flag for low-balance notification, retry next pass
				e.LowBalanceFlag = true
				e.ClaimedUntil = nil
				if uerr := s.EnrollmentRepo.Update(e); uerr != nil {
					return uerr
				}
				return nil
			}
			return err
		}
		touch.ReservationID = reservationID
		if err := s.TouchRepo.Update(touch); err != nil {
			return err
		}
	}

	if e.LowBalanceFlag {
		e.LowBalanceFlag = false
	}
	e.CurrentStep = step.StepNumber
	if err := s.EnrollmentRepo.Update(e); err != nil {
		return err
	}

	return s.Queue.Publish(queue.TouchSendsTopic, queue.TouchJob{
		EnrollmentID: e.ID,
		StepNumber:   step.StepNumber,
	})
}

func (s *Scheduler) recordSkip(e *model.Enrollment, step *model.Step, now time.Time, reason string) error {
	return s.TouchRepo.Create(&model.Touch{
		EnrollmentID: e.ID,
		StepNumber:   step.StepNumber,
		Channel:      step.Channel,
		Status:       model.TouchSkipped,
		ScheduledAt:  now,
		ErrorMessage: reason,
	})
}

// anyAllowedChannelAfter reports whether any remaining active step uses a
// channel the contact has not opted out of.
func (s *Scheduler) anyAllowedChannelAfter(contactID int, steps []model.Step, fromStep int) bool {
	for i := range steps {
		if steps[i].StepNumber < fromStep || !steps[i].Active {
			continue
		}
		optedOut, err := s.OptOutRepo.IsOptedOut(contactID, steps[i].Channel)
		if err == nil && !optedOut {
			return true
		}
	}
	return false
}

// finalize settles an enrollment whose steps are exhausted: converted or
// responded when the ingestor recorded those signals mid-sequence, completed
// otherwise.
func (s *Scheduler) finalize(e *model.Enrollment) error {
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
	e.ClaimedUntil = nil
	if err := s.EnrollmentRepo.Update(e); err != nil {
		return err
	}
	if counter != "" {
		if err := s.CampaignRepo.IncrementCounter(e.CampaignID, counter); err != nil {
			log.Println("⚠️ scheduler: bump counter:", err)
		}
	}
	return nil
}

func (s *Scheduler) transitionOptedOut(e *model.Enrollment) error {
	if !model.CanTransition(e.Status, model.EnrollmentOptedOut) {
		return &appErrors.InvalidTransitionError{From: e.Status, To: model.EnrollmentOptedOut}
	}
	e.Status = model.EnrollmentOptedOut
	e.NextTouchAt = nil
	e.ClaimedUntil = nil
	if err := s.EnrollmentRepo.Update(e); err != nil {
		return err
	}
	if err := s.CampaignRepo.IncrementCounter(e.CampaignID, "opted_out"); err != nil {
		log.Println("⚠️ scheduler: bump counter:", err)
	}
	return nil
}

// Run drives recurring passes until the context is canceled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Println("🗓️ Scheduler running, pass every", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunPass(ctx); err != nil {
				log.Println("⚠️ scheduler pass failed:", err)
			}
		}
	}
}
