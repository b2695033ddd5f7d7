// internal/service/credit_service.go
package service

import (
	appErrors "github.com/unclebandit/dripleopard-backend/internal/errors"
	"github.com/unclebandit/dripleopard-backend/internal/model"
	"github.com/unclebandit/dripleopard-backend/internal/repository"
)

// CreditPackage is a purchasable bundle of mail credits.
type CreditPackage struct {
	ID          string `json:"id"`
	Credits     int64  `json:"credits"` // in cents of a credit
	PriceCents  int64  `json:"price_cents"`
	Description string `json:"description"`
}

// Packages available for purchase. Payment processing itself is external;
// purchase here records the resulting credit grant.
var Packages = map[string]CreditPackage{
	"starter":  {ID: "starter", Credits: 2500, PriceCents: 2500, Description: "25 mail credits"},
	"standard": {ID: "standard", Credits: 10000, PriceCents: 9000, Description: "100 mail credits"},
	"bulk":     {ID: "bulk", Credits: 50000, PriceCents: 40000, Description: "500 mail credits"},
}

type CreditService struct {
	CreditRepo repository.CreditRepositoryInterface
}

func (s *CreditService) GetBalance() (*model.CreditBalance, error) {
	return s.CreditRepo.GetBalance()
}

func (s *CreditService) Reserve(amountCents int64) (string, error) {
	if amountCents <= 0 {
		return "", appErrors.NewValidation("amount", "must be positive")
	}
	return s.CreditRepo.Reserve(amountCents)
}

func (s *CreditService) Commit(reservationID string) error {
	return s.CreditRepo.Commit(reservationID)
}

func (s *CreditService) Release(reservationID string) error {
	return s.CreditRepo.Release(reservationID)
}

func (s *CreditService) Purchase(packageID string) (*model.CreditTransaction, error) {
	pkg, ok := Packages[packageID]
	if !ok {
		return nil, appErrors.NewValidation("package_id", "unknown credit package")
	}
	return s.CreditRepo.Purchase(pkg.Credits, pkg.ID)
}

func (s *CreditService) Refund(transactionID int, reason string) (*model.CreditTransaction, error) {
	if reason == "" {
		return nil, appErrors.NewValidation("reason", "must not be empty")
	}
	return s.CreditRepo.Refund(transactionID, reason)
}
