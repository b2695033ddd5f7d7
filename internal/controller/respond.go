package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	appErrors "github.com/unclebandit/dripleopard-backend/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the engine's error taxonomy onto HTTP statuses. Background
// failures never reach here; only command-level outcomes do.
func writeError(w http.ResponseWriter, err error) {
	var validation *appErrors.ValidationError
	var authz *appErrors.AuthorizationError
	var balance *appErrors.InsufficientBalanceError
	var transition *appErrors.InvalidTransitionError

	switch {
	case errors.As(err, &validation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &transition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, appErrors.ErrDuplicateEnrollment):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.As(err, &authz):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.As(err, &balance):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case appErrors.NotFound(err):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
