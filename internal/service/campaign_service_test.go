package service_test

import (
	"errors"
	"testing"

	appErrors "github.com/unclebandit/dripleopard-backend/internal/errors"
	"github.com/unclebandit/dripleopard-backend/internal/model"
	"github.com/unclebandit/dripleopard-backend/internal/service"
)

func TestCreateCampaignValidation(t *testing.T) {
	svc := &service.CampaignService{CampaignRepo: newMemCampaignRepo()}

	cases := []struct {
		name     string
		campaign model.Campaign
	}{
		{"empty name", model.Campaign{}},
		{"half quiet window", model.Campaign{Name: "C", QuietHoursStart: "21:00"}},
		{"bad clock", model.Campaign{Name: "C", QuietHoursStart: "25:00", QuietHoursEnd: "08:00"}},
		{"bad timezone", model.Campaign{Name: "C", Timezone: "Mars/Olympus"}},
		{"bad bounce policy", model.Campaign{Name: "C", BouncePolicy: "shrug"}},
		{"bad opt-out scope", model.Campaign{Name: "C", OptOutScope: "sometimes"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateCampaign(&tc.campaign, "agent-1")
			var ve *appErrors.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreateCampaignDefaults(t *testing.T) {
	repo := newMemCampaignRepo()
	svc := &service.CampaignService{CampaignRepo: repo}

	c, err := svc.CreateCampaign(&model.Campaign{
		Name:            "Expired Listings",
		QuietHoursStart: "21:00",
		QuietHoursEnd:   "08:00",
		Timezone:        "America/Chicago",
	}, "agent-1")
	if err != nil {
		t.Fatal(err)
	}
	if c.Status != model.CampaignDraft {
		t.Errorf("new campaigns start in draft, got %s", c.Status)
	}
	if c.OwnerID != "agent-1" {
		t.Errorf("owner = %s", c.OwnerID)
	}

	stored, _ := repo.GetByID(c.ID)
	if stored.BouncePolicy != model.BouncePolicyChannel {
		t.Errorf("default bounce policy = %s", stored.BouncePolicy)
	}
	if stored.OptOutScope != model.OptOutScopeLastChannel {
		t.Errorf("default opt-out scope = %s", stored.OptOutScope)
	}
}

func TestUpdateCampaignAuthorization(t *testing.T) {
	repo := newMemCampaignRepo()
	svc := &service.CampaignService{CampaignRepo: repo}

	c, err := svc.CreateCampaign(&model.Campaign{Name: "Mine"}, "agent-1")
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.UpdateCampaign(c.ID, &model.Campaign{Name: "Yours"}, "agent-2")
	var ae *appErrors.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestCreateStepAppendsContiguously(t *testing.T) {
	repo := newMemCampaignRepo()
	svc := &service.CampaignService{CampaignRepo: repo}

	c, err := svc.CreateCampaign(&model.Campaign{Name: "Seq"}, "agent-1")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		s, err := svc.CreateStep(c.ID, &model.Step{Channel: model.ChannelSMS, BodyTemplate: "hi"}, "agent-1")
		if err != nil {
			t.Fatal(err)
		}
		if s.StepNumber != i+1 {
			t.Errorf("step_number = %d, want %d", s.StepNumber, i+1)
		}
		if !s.Active {
			t.Error("new steps start active")
		}
	}
}

func TestCreateStepValidation(t *testing.T) {
	repo := newMemCampaignRepo()
	svc := &service.CampaignService{CampaignRepo: repo}
	c, err := svc.CreateCampaign(&model.Campaign{Name: "Seq"}, "agent-1")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		step model.Step
	}{
		{"unknown channel", model.Step{Channel: "pigeon", BodyTemplate: "hi"}},
		{"negative delay", model.Step{Channel: model.ChannelSMS, BodyTemplate: "hi", DelayDays: -1}},
		{"empty body", model.Step{Channel: model.ChannelSMS}},
		{"direct mail without piece type", model.Step{Channel: model.ChannelDirectMail, BodyTemplate: "card", PieceCostCents: 100}},
		{"direct mail without cost", model.Step{Channel: model.ChannelDirectMail, BodyTemplate: "card", PieceType: "postcard"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateStep(c.ID, &tc.step, "agent-1")
			var ve *appErrors.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	// phone reminders carry no body
	if _, err := svc.CreateStep(c.ID, &model.Step{Channel: model.ChannelPhoneReminder}, "agent-1"); err != nil {
		t.Errorf("phone reminder without body should pass, got %v", err)
	}
}

func TestDeleteStepRenumbers(t *testing.T) {
	repo := newMemCampaignRepo()
	svc := &service.CampaignService{CampaignRepo: repo}
	c, err := svc.CreateCampaign(&model.Campaign{Name: "Seq"}, "agent-1")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.CreateStep(c.ID, &model.Step{Channel: model.ChannelSMS, BodyTemplate: "hi"}, "agent-1"); err != nil {
			t.Fatal(err)
		}
	}

	if err := svc.DeleteStep(c.ID, 2, "agent-1"); err != nil {
		t.Fatal(err)
	}

	steps, _ := repo.ListSteps(c.ID)
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	for i, s := range steps {
		if s.StepNumber != i+1 {
			t.Errorf("step %d has number %d, numbering must stay contiguous", i, s.StepNumber)
		}
	}
}

func TestListCampaignsPagination(t *testing.T) {
	repo := newMemCampaignRepo()
	svc := &service.CampaignService{CampaignRepo: repo}
	for i := 0; i < 25; i++ {
		if _, err := svc.CreateCampaign(&model.Campaign{Name: "C", LeadType: "probate"}, "agent-1"); err != nil {
			t.Fatal(err)
		}
	}

	seen := map[int]bool{}
	for page := 1; page <= 3; page++ {
		campaigns, pagination, err := svc.ListCampaigns(page, 10, "probate", "")
		if err != nil {
			t.Fatal(err)
		}
		if pagination["total_count"] != 25 {
			t.Errorf("total_count = %d", pagination["total_count"])
		}
		if pagination["total_pages"] != 3 {
			t.Errorf("total_pages = %d", pagination["total_pages"])
		}
		for _, c := range campaigns {
			if seen[c.ID] {
				t.Errorf("campaign %d repeated across pages", c.ID)
			}
			seen[c.ID] = true
		}
	}
	if len(seen) != 25 {
		t.Errorf("saw %d unique campaigns, want 25", len(seen))
	}
}
