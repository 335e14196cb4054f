package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/engclin/melwatch/internal/mel"
	"github.com/engclin/melwatch/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// RespondJSON writes data as a JSON response with the given status code.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			zap.L().Warn("failed to encode JSON response", zap.Error(err))
		}
	}
}

// RespondError writes a standard error response.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondErrorWithCode writes an error response with a machine-readable code.
func RespondErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// RespondValidationError writes field-level validation errors as a 422 response.
func RespondValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	RespondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Validation failed",
		Code:    "validation_error",
		Details: fieldErrors,
	})
}

// RespondNoContent writes a 204 No Content response with no body.
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RespondServiceError maps a service error onto the HTTP error envelope:
//
//	*mel.ValidationError       422 validation_error
//	mel.ErrNotFound            404 not_found
//	mel.ErrConflict            409 conflict
//	*services.PassError        503 reconcile_aborted
//	mel.ErrTransientExternal   502 source_unavailable
//	anything else              500 internal_error
func RespondServiceError(w http.ResponseWriter, err error) {
	var verr *mel.ValidationError
	var passErr *services.PassError
	switch {
	case errors.As(err, &verr):
		RespondValidationError(w, verr.Fields)
	case errors.Is(err, mel.ErrNotFound):
		RespondErrorWithCode(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, mel.ErrConflict):
		RespondErrorWithCode(w, http.StatusConflict, "conflict", err.Error())
	case errors.As(err, &passErr):
		RespondErrorWithCode(w, http.StatusServiceUnavailable, "reconcile_aborted", err.Error())
	case errors.Is(err, mel.ErrTransientExternal):
		RespondErrorWithCode(w, http.StatusBadGateway, "source_unavailable", err.Error())
	default:
		zap.L().Error("request failed", zap.Error(err))
		RespondErrorWithCode(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
