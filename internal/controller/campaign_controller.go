// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/dripleopard-backend/internal/middleware"
	"github.com/unclebandit/dripleopard-backend/internal/model"
	"github.com/unclebandit/dripleopard-backend/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

type campaignBody struct {
	Name                  string `json:"name"`
	LeadType              string `json:"lead_type"`
	Status                string `json:"status"`
	QuietHoursStart       string `json:"quiet_hours_start"`
	QuietHoursEnd         string `json:"quiet_hours_end"`
	Timezone              string `json:"timezone"`
	SkipWeekends          bool   `json:"skip_weekends"`
	AutoPauseOnResponse   bool   `json:"auto_pause_on_response"`
	AutoConvertOnResponse bool   `json:"auto_convert_on_response"`
	BouncePolicy          string `json:"bounce_policy"`
	OptOutScope           string `json:"opt_out_scope"`
}

func (b campaignBody) toModel() *model.Campaign {
	return &model.Campaign{
		Name:                  b.Name,
		LeadType:              b.LeadType,
		Status:                b.Status,
		QuietHoursStart:       b.QuietHoursStart,
		QuietHoursEnd:         b.QuietHoursEnd,
		Timezone:              b.Timezone,
		SkipWeekends:          b.SkipWeekends,
		AutoPauseOnResponse:   b.AutoPauseOnResponse,
		AutoConvertOnResponse: b.AutoConvertOnResponse,
		BouncePolicy:          b.BouncePolicy,
		OptOutScope:           b.OptOutScope,
	}
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body campaignBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(body.toModel(), middleware.ActorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	var body campaignBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.UpdateCampaign(id, body.toModel(), middleware.ActorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))
	if err := c.CampaignService.DeleteCampaign(id, middleware.ActorID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	leadType := r.URL.Query().Get("lead_type")
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, leadType, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":       campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	details, err := c.CampaignService.GetCampaignDetails(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// ====================== Steps ======================

type stepBody struct {
	DelayDays           int    `json:"delay_days"`
	DelayFromEnrollment bool   `json:"delay_from_enrollment"`
	Channel             string `json:"channel"`
	Subject             string `json:"subject"`
	BodyTemplate        string `json:"body_template"`
	PieceType           string `json:"piece_type"`
	PieceCostCents      int64  `json:"piece_cost_cents"`
	SkipIfResponded     bool   `json:"skip_if_responded"`
	SkipIfConverted     bool   `json:"skip_if_converted"`
	Active              *bool  `json:"active"`
}

func (b stepBody) toModel() *model.Step {
	active := true
	if b.Active != nil {
		active = *b.Active
	}
	return &model.Step{
		DelayDays:           b.DelayDays,
		DelayFromEnrollment: b.DelayFromEnrollment,
		Channel:             b.Channel,
		Subject:             b.Subject,
		BodyTemplate:        b.BodyTemplate,
		PieceType:           b.PieceType,
		PieceCostCents:      b.PieceCostCents,
		SkipIfResponded:     b.SkipIfResponded,
		SkipIfConverted:     b.SkipIfConverted,
		Active:              active,
	}
}

func (c *CampaignController) CreateStep(w http.ResponseWriter, r *http.Request) {
	campaignID, _ := strconv.Atoi(chi.URLParam(r, "id"))
	var body stepBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	step, err := c.CampaignService.CreateStep(campaignID, body.toModel(), middleware.ActorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, step)
}

func (c *CampaignController) UpdateStep(w http.ResponseWriter, r *http.Request) {
	campaignID, _ := strconv.Atoi(chi.URLParam(r, "id"))
	stepNumber, _ := strconv.Atoi(chi.URLParam(r, "step"))
	var body stepBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	step, err := c.CampaignService.UpdateStep(campaignID, stepNumber, body.toModel(), middleware.ActorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (c *CampaignController) DeleteStep(w http.ResponseWriter, r *http.Request) {
	campaignID, _ := strconv.Atoi(chi.URLParam(r, "id"))
	stepNumber, _ := strconv.Atoi(chi.URLParam(r, "step"))

	if err := c.CampaignService.DeleteStep(campaignID, stepNumber, middleware.ActorID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
