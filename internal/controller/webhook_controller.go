// internal/controller/webhook_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/unclebandit/dripleopard-backend/internal/service"
)

// WebhookController receives the asynchronous callbacks from channel
// providers and the opt-out source of truth. These endpoints are unauthenticated
// from the actor's point of view (providers sign requests out of band) and
// always answer 200 on accepted-but-unknown ids so providers stop retrying.
type WebhookController struct {
	Ingestor *service.Ingestor
}

func (c *WebhookController) DeliveryWebhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProviderMessageID string     `json:"provider_message_id"`
		Event             string     `json:"event"`
		At                *time.Time `json:"at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProviderMessageID == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	at := time.Now()
	if body.At != nil {
		at = *body.At
	}

	if err := c.Ingestor.HandleDeliveryEvent(body.ProviderMessageID, body.Event, at); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (c *WebhookController) InboundWebhook(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProviderMessageID string     `json:"provider_message_id"`
		Body              string     `json:"body"`
		At                *time.Time `json:"at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ProviderMessageID == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	at := time.Now()
	if body.At != nil {
		at = *body.At
	}

	if err := c.Ingestor.HandleInboundResponse(body.ProviderMessageID, body.Body, at); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (c *WebhookController) RegisterOptOut(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ContactID        int    `json:"contact_id"`
		Channel          string `json:"channel"`
		Reason           string `json:"reason"`
		SourceCampaignID *int   `json:"source_campaign_id"`
		SourceTouchID    *int   `json:"source_touch_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ContactID == 0 || body.Channel == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := c.Ingestor.RegisterOptOut(body.ContactID, body.Channel, body.Reason, body.SourceCampaignID, body.SourceTouchID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

func (c *WebhookController) RegisterOptIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ContactID int    `json:"contact_id"`
		Channel   string `json:"channel"`
		Reason    string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ContactID == 0 || body.Channel == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if err := c.Ingestor.RegisterOptIn(body.ContactID, body.Channel, body.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}
