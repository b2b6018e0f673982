package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iho/commissions/internal/adapter/http/dto"
	"github.com/iho/commissions/internal/domain"
)

// maxBodyBytes bounds request bodies; statements carry a few thousand rows at most.
const maxBodyBytes = 32 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error:   message,
		Message: details,
	})
}

// writeDomainError writes err with the status mapDomainError picks.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, mapDomainError(err), message, err.Error())
}

// decodeJSON decodes a size-limited body into v and runs its validate tags.
// Numbers decode as json.Number so amounts keep their precision.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	if err := dto.Validate(v); err != nil {
		writeError(w, http.StatusBadRequest, "validation failed", dto.ValidationDetails(err))
		return false
	}
	return true
}

// mapDomainError maps domain errors to HTTP status codes.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidPeriod),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrEmptyStatement):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrStatementNotFound),
		errors.Is(err, domain.ErrRoleGroupNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrStatementNotActive),
		errors.Is(err, domain.ErrDuplicateSubmission):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPeriodLocked):
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}
