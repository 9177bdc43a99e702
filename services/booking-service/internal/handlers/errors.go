package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/petcare-labs/clinibook/services/booking-service/internal/booking"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/lifecycle"
	"github.com/petcare-labs/clinibook/services/booking-service/internal/rules"
)

// errorStatus maps a domain error to an HTTP status and a stable error code
// clients can branch on.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, rules.ErrInvalidSchedule):
		return http.StatusUnprocessableEntity, "invalid_schedule"
	case errors.Is(err, rules.ErrProfileMismatch):
		return http.StatusUnprocessableEntity, "profile_mismatch"
	case errors.Is(err, booking.ErrSlotConflict):
		return http.StatusConflict, "slot_conflict"
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, booking.ErrAccountInactive):
		return http.StatusForbidden, "account_inactive"
	case errors.Is(err, booking.ErrUnauthorized):
		return http.StatusForbidden, "not_allowed"
	case errors.Is(err, booking.ErrNotFound):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	body := map[string]string{"error": code}
	if status != http.StatusInternalServerError {
		body["message"] = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
