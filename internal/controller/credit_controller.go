// internal/controller/credit_controller.go
package controller

import (
	"encoding/json"
	"net/http"

	"github.com/unclebandit/dripleopard-backend/internal/service"
)

type CreditController struct {
	CreditService *service.CreditService
}

func (c *CreditController) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := c.CreditService.GetBalance()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balance)
}

func (c *CreditController) ListPackages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, service.Packages)
}

func (c *CreditController) PurchaseCredits(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PackageID string `json:"package_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	tx, err := c.CreditService.Purchase(body.PackageID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (c *CreditController) RefundCredits(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TransactionID int    `json:"transaction_id"`
		Reason        string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	tx, err := c.CreditService.Refund(body.TransactionID, body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}
