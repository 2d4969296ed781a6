package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"go.uber.org/zap"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{model.ErrNotFound, http.StatusNotFound},
	{model.ErrUnauthorized, http.StatusForbidden},
	{model.ErrSignatureInvalid, http.StatusBadRequest},
	{model.ErrInvalidInput, http.StatusBadRequest},
	{model.ErrSlotUnavailable, http.StatusConflict},
	{model.ErrInvalidStatus, http.StatusConflict},
	{model.ErrOrderClosed, http.StatusConflict},
	{model.ErrNotEligible, http.StatusUnprocessableEntity},
	{model.ErrInvalidReason, http.StatusUnprocessableEntity},
	{model.ErrTooLate, http.StatusUnprocessableEntity},
	{model.ErrLimitExceeded, http.StatusUnprocessableEntity},
	{model.ErrPaymentDeclined, http.StatusPaymentRequired},
}

// statusFor подбирает HTTP-статус для ошибки сервиса
func statusFor(err error) int {
	for _, s := range errorStatuses {
		if errors.Is(err, s.err) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("Request failed", zap.Error(err))
		writeError(w, status, "Internal server error", "internal", nil)
		return
	}

	var remaining *int
	var rerr *model.RescheduleError
	if errors.As(err, &rerr) {
		remaining = rerr.RemainingChanges
	}

	writeError(w, status, err.Error(), model.ErrorCode(err), remaining)
}

func writeError(w http.ResponseWriter, status int, message, code string, remaining *int) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, RemainingChanges: remaining})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
