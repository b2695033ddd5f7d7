// internal/service/enrollment_service.go
package service

import (
	"log"
	"time"

	appErrors "github.com/unclebandit/dripleopard-backend/internal/errors"
	"github.com/unclebandit/dripleopard-backend/internal/model"
	"github.com/unclebandit/dripleopard-backend/internal/repository"
)

// resumeBuffer keeps a resumed enrollment from firing immediately, avoiding a
// burst right after resume. The original schedule has already passed.
const resumeBuffer = 5 * time.Minute

type EnrollmentService struct {
	CampaignRepo   repository.CampaignRepositoryInterface
	ContactRepo    repository.ContactRepositoryInterface
	EnrollmentRepo repository.EnrollmentRepositoryInterface
	TouchRepo      repository.TouchRepositoryInterface

	// Now is overridable for tests; nil means time.Now.
	Now func() time.Time
}

func (s *EnrollmentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Result struct for EnrollContacts
type EnrollResult struct {
	CampaignID    int   `json:"campaign_id"`
	Enrolled      int   `json:"enrolled"`
	Skipped       int   `json:"skipped"`
	EnrollmentIDs []int `json:"enrollment_ids"`
}

// EnrollContacts enrolls each contact into the campaign, skipping (not
// failing) individual contacts that are already enrolled or missing.
// Re-enrollment of an existing pair is rejected unless allowReEnrollment.
func (s *EnrollmentService) EnrollContacts(campaignID int, contactIDs []int, context map[string]string, allowReEnrollment bool, actorID string) (*EnrollResult, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.OwnerID != "" && campaign.OwnerID != actorID {
		return nil, &appErrors.AuthorizationError{Actor: actorID, Resource: "campaign"}
	}
	if campaign.Status != model.CampaignActive {
		return nil, appErrors.NewValidation("campaign", "can only enroll into an active campaign")
	}

	steps, err := s.CampaignRepo.ListSteps(campaignID)
	if err != nil {
		return nil, err
	}
	first := firstActiveStep(steps, 1)
	if first == nil {
		return nil, appErrors.NewValidation("campaign", "campaign has no active steps")
	}

	result := &EnrollResult{CampaignID: campaignID, EnrollmentIDs: []int{}}
	now := s.now()

	for _, contactID := range contactIDs {
		contact, err := s.ContactRepo.GetByID(contactID)
		if err != nil {
			log.Println("⚠️ failed to fetch contact", contactID, ":", err)
			result.Skipped++
			continue
		}
		if contact == nil {
			log.Println("⚠️ contact not found:", contactID)
			result.Skipped++
			continue
		}

		existing, err := s.EnrollmentRepo.GetByPair(campaignID, contactID)
		if err != nil {
			result.Skipped++
			continue
		}
		if existing != nil {
			if !allowReEnrollment {
				log.Println("⚠️ contact", contactID, "already enrolled in campaign", campaignID)
				result.Skipped++
				continue
			}
			if err := s.EnrollmentRepo.Delete(existing.ID); err != nil {
				result.Skipped++
				continue
			}
		}

		loc := ContactLocation(contact, campaign)
		firstTouch := NextAllowed(CandidateSendTime(*first, now, nil), campaign, loc)

		e := &model.Enrollment{
			CampaignID:  campaignID,
			ContactID:   contactID,
			Status:      model.EnrollmentActive,
			CurrentStep: first.StepNumber,
			NextTouchAt: &firstTouch,
			EnrolledAt:  now,
			EnrolledBy:  actorID,
			Context:     context,
		}
		if err := s.EnrollmentRepo.Create(e); err != nil {
			log.Println("⚠️ failed to enroll contact", contactID, ":", err)
			result.Skipped++
			continue
		}
		if err := s.CampaignRepo.IncrementCounter(campaignID, "enrolled"); err != nil {
			log.Println("⚠️ failed to bump enrolled counter:", err)
		}

		result.EnrollmentIDs = append(result.EnrollmentIDs, e.ID)
		result.Enrolled++
	}

	return result, nil
}

// PauseEnrollment clears next_touch_at but preserves current_step.
func (s *EnrollmentService) PauseEnrollment(id int, reason, actorID string) (*model.Enrollment, error) {
	e, err := s.authorize(id, actorID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(e.Status, model.EnrollmentPaused) {
		return nil, &appErrors.InvalidTransitionError{From: e.Status, To: model.EnrollmentPaused}
	}

	now := s.now()
	e.Status = model.EnrollmentPaused
	e.NextTouchAt = nil
	e.PausedAt = &now
	e.PauseReason = reason
	if err := s.EnrollmentRepo.Update(e); err != nil {
		return nil, err
	}
	return e, nil
}

// ResumeEnrollment reactivates a paused enrollment. next_touch_at becomes
// now + buffer rather than the stale original schedule.
func (s *EnrollmentService) ResumeEnrollment(id int, actorID string) (*model.Enrollment, error) {
	e, err := s.authorize(id, actorID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EnrollmentPaused {
		return nil, &appErrors.InvalidTransitionError{From: e.Status, To: model.EnrollmentActive}
	}

	next := s.now().Add(resumeBuffer)
	e.Status = model.EnrollmentActive
	e.NextTouchAt = &next
	e.PausedAt = nil
	e.PauseReason = ""
	if err := s.EnrollmentRepo.Update(e); err != nil {
		return nil, err
	}
	return e, nil
}

// RemoveFromCampaign hard-deletes the enrollment from any state and cancels
// its in-flight touches. Already-dispatched sends are not aborted.
func (s *EnrollmentService) RemoveFromCampaign(id int, actorID string) error {
	if _, err := s.authorize(id, actorID); err != nil {
		return err
	}
	if err := s.TouchRepo.CancelPending(id); err != nil {
		return err
	}
	return s.EnrollmentRepo.Delete(id)
}

func (s *EnrollmentService) GetEnrollment(id int) (*model.Enrollment, error) {
	return s.EnrollmentRepo.GetByID(id)
}

func (s *EnrollmentService) ListByCampaign(campaignID int, status string) ([]*model.Enrollment, error) {
	return s.EnrollmentRepo.ListByCampaign(campaignID, status)
}

func (s *EnrollmentService) authorize(enrollmentID int, actorID string) (*model.Enrollment, error) {
	e, err := s.EnrollmentRepo.GetByID(enrollmentID)
	if err != nil {
		return nil, err
	}
	campaign, err := s.CampaignRepo.GetByID(e.CampaignID)
	if err != nil {
		return nil, err
	}
	if campaign.OwnerID != "" && campaign.OwnerID != actorID {
		return nil, &appErrors.AuthorizationError{Actor: actorID, Resource: "enrollment"}
	}
	return e, nil
}

// firstActiveStep returns the first active step at or after stepNumber.
func firstActiveStep(steps []model.Step, stepNumber int) *model.Step {
	for i := range steps {
		if steps[i].StepNumber >= stepNumber && steps[i].Active {
			return &steps[i]
		}
	}
	return nil
}
