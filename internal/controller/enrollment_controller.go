// internal/controller/enrollment_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/dripleopard-backend/internal/middleware"
	"github.com/unclebandit/dripleopard-backend/internal/service"
)

type EnrollmentController struct {
	EnrollmentService *service.EnrollmentService
}

func (c *EnrollmentController) EnrollContacts(w http.ResponseWriter, r *http.Request) {
	campaignID, _ := strconv.Atoi(chi.URLParam(r, "id"))

	var body struct {
		ContactIDs        []int             `json:"contact_ids"`
		Context           map[string]string `json:"context"`
		AllowReEnrollment bool              `json:"allow_re_enrollment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if len(body.ContactIDs) == 0 {
		http.Error(w, "contact_ids must not be empty", http.StatusBadRequest)
		return
	}

	result, err := c.EnrollmentService.EnrollContacts(campaignID, body.ContactIDs, body.Context, body.AllowReEnrollment, middleware.ActorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (c *EnrollmentController) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	campaignID, _ := strconv.Atoi(chi.URLParam(r, "id"))
	status := r.URL.Query().Get("status")

	enrollments, err := c.EnrollmentService.ListByCampaign(campaignID, status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"data": enrollments})
}

func (c *EnrollmentController) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	e, err := c.EnrollmentService.GetEnrollment(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (c *EnrollmentController) PauseEnrollment(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	var body struct {
		Reason string `json:"reason"`
	}
	// body is optional on pause
	_ = json.NewDecoder(r.Body).Decode(&body)

	e, err := c.EnrollmentService.PauseEnrollment(id, body.Reason, middleware.ActorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (c *EnrollmentController) ResumeEnrollment(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	e, err := c.EnrollmentService.ResumeEnrollment(id, middleware.ActorID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (c *EnrollmentController) RemoveEnrollment(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(chi.URLParam(r, "id"))

	if err := c.EnrollmentService.RemoveFromCampaign(id, middleware.ActorID(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
