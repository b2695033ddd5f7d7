// internal/service/campaign_service.go
package service

import (
	"time"

	appErrors "github.com/unclebandit/dripleopard-backend/internal/errors"
	"github.com/unclebandit/dripleopard-backend/internal/model"
	"github.com/unclebandit/dripleopard-backend/internal/repository"
)

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
}

type CampaignDetails struct {
	Campaign *model.Campaign `json:"campaign"`
	Stats    map[string]int  `json:"stats"`
}

// CreateCampaign validates the definition and persists it in draft status.
func (s *CampaignService) CreateCampaign(c *model.Campaign, actorID string) (*model.Campaign, error) {
	if err := validateCampaign(c); err != nil {
		return nil, err
	}
	c.OwnerID = actorID
	c.Status = model.CampaignDraft
	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CampaignService) UpdateCampaign(id int, patch *model.Campaign, actorID string) (*model.Campaign, error) {
	existing, err := s.authorize(id, actorID)
	if err != nil {
		return nil, err
	}

	if patch.Name != "" {
		existing.Name = patch.Name
	}
	if patch.Status != "" {
		existing.Status = patch.Status
	}
	if patch.LeadType != "" {
		existing.LeadType = patch.LeadType
	}
	existing.QuietHoursStart = patch.QuietHoursStart
	existing.QuietHoursEnd = patch.QuietHoursEnd
	if patch.Timezone != "" {
		existing.Timezone = patch.Timezone
	}
	existing.SkipWeekends = patch.SkipWeekends
	existing.AutoPauseOnResponse = patch.AutoPauseOnResponse
	existing.AutoConvertOnResponse = patch.AutoConvertOnResponse
	if patch.BouncePolicy != "" {
		existing.BouncePolicy = patch.BouncePolicy
	}
	if patch.OptOutScope != "" {
		existing.OptOutScope = patch.OptOutScope
	}

	if err := validateCampaign(existing); err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.Update(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

func (s *CampaignService) DeleteCampaign(id int, actorID string) error {
	if _, err := s.authorize(id, actorID); err != nil {
		return err
	}
	return s.CampaignRepo.Delete(id)
}

func (s *CampaignService) GetCampaignDetails(id int) (*CampaignDetails, error) {
	campaign, err := s.CampaignRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	steps, err := s.CampaignRepo.ListSteps(id)
	if err != nil {
		return nil, err
	}
	campaign.Steps = steps

	stats, err := s.CampaignRepo.GetCampaignStats(id)
	if err != nil {
		return nil, err
	}
	return &CampaignDetails{Campaign: campaign, Stats: stats}, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, leadType, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, leadType, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

// ====================== Steps ======================

// CreateStep appends a step at the next contiguous step_number.
func (s *CampaignService) CreateStep(campaignID int, step *model.Step, actorID string) (*model.Step, error) {
	if _, err := s.authorize(campaignID, actorID); err != nil {
		return nil, err
	}
	if err := validateStep(step); err != nil {
		return nil, err
	}

	existing, err := s.CampaignRepo.ListSteps(campaignID)
	if err != nil {
		return nil, err
	}
	step.CampaignID = campaignID
	step.StepNumber = len(existing) + 1
	step.Active = true
	if err := s.CampaignRepo.CreateStep(step); err != nil {
		return nil, err
	}
	return step, nil
}

func (s *CampaignService) UpdateStep(campaignID, stepNumber int, patch *model.Step, actorID string) (*model.Step, error) {
	if _, err := s.authorize(campaignID, actorID); err != nil {
		return nil, err
	}
	step, err := s.CampaignRepo.GetStep(campaignID, stepNumber)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, appErrors.NewValidation("step_number", "step does not exist")
	}

	if patch.DelayDays >= 0 {
		step.DelayDays = patch.DelayDays
	}
	if patch.Channel != "" {
		step.Channel = patch.Channel
	}
	if patch.BodyTemplate != "" {
		step.BodyTemplate = patch.BodyTemplate
	}
	if patch.Subject != "" {
		step.Subject = patch.Subject
	}
	step.DelayFromEnrollment = patch.DelayFromEnrollment
	step.SkipIfResponded = patch.SkipIfResponded
	step.SkipIfConverted = patch.SkipIfConverted
	step.Active = patch.Active
	if patch.PieceType != "" {
		step.PieceType = patch.PieceType
	}
	if patch.PieceCostCents > 0 {
		step.PieceCostCents = patch.PieceCostCents
	}

	if err := validateStep(step); err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.UpdateStep(step); err != nil {
		return nil, err
	}
	return step, nil
}

// DeleteStep removes a step; the repository renumbers the remaining steps in
// the same transaction so step_number stays contiguous.
func (s *CampaignService) DeleteStep(campaignID, stepNumber int, actorID string) error {
	if _, err := s.authorize(campaignID, actorID); err != nil {
		return err
	}
	return s.CampaignRepo.DeleteStep(campaignID, stepNumber)
}

// ====================== Validation ======================

func validateCampaign(c *model.Campaign) error {
	if c.Name == "" {
		return appErrors.NewValidation("name", "must not be empty")
	}
	if (c.QuietHoursStart == "") != (c.QuietHoursEnd == "") {
		return appErrors.NewValidation("quiet_hours", "start and end must both be set or both be empty")
	}
	if c.QuietHoursStart != "" {
		if _, ok := parseClock(c.QuietHoursStart); !ok {
			return appErrors.NewValidation("quiet_hours_start", "must be HH:MM")
		}
		if _, ok := parseClock(c.QuietHoursEnd); !ok {
			return appErrors.NewValidation("quiet_hours_end", "must be HH:MM")
		}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return appErrors.NewValidation("timezone", "unknown IANA timezone")
		}
	}
	if c.BouncePolicy != "" && c.BouncePolicy != model.BouncePolicyChannel && c.BouncePolicy != model.BouncePolicyEnrollment {
		return appErrors.NewValidation("bounce_policy", "must be channel or enrollment")
	}
	if c.OptOutScope != "" && c.OptOutScope != model.OptOutScopeLastChannel && c.OptOutScope != model.OptOutScopeAnyChannel {
		return appErrors.NewValidation("opt_out_scope", "must be last_channel or any_channel")
	}
	return nil
}

func validateStep(s *model.Step) error {
	if !model.ValidChannel(s.Channel) {
		return appErrors.NewValidation("channel", "unknown channel")
	}
	if s.DelayDays < 0 {
		return appErrors.NewValidation("delay_days", "must not be negative")
	}
	if s.BodyTemplate == "" && s.Channel != model.ChannelPhoneReminder {
		return appErrors.NewValidation("body_template", "must not be empty")
	}
	if s.Channel == model.ChannelDirectMail {
		if s.PieceType == "" {
			return appErrors.NewValidation("piece_type", "required for direct mail")
		}
		if s.PieceCostCents <= 0 {
			return appErrors.NewValidation("piece_cost_cents", "must be positive for direct mail")
		}
	}
	return nil
}

func (s *CampaignService) authorize(campaignID int, actorID string) (*model.Campaign, error) {
	campaign, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if campaign.OwnerID != "" && campaign.OwnerID != actorID {
		return nil, &appErrors.AuthorizationError{Actor: actorID, Resource: "campaign"}
	}
	return campaign, nil
}
