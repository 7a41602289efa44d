package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/navikt/benchroom/internal/logging"
	"github.com/navikt/benchroom/internal/repository"
	"github.com/navikt/benchroom/internal/service"
	"github.com/navikt/benchroom/internal/validation"
)

// maxBodySize limits request bodies
const maxBodySize = 1 << 20

// ErrorResponse is the JSON body of every failed API request
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Error encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// decodeJSON reads a size-limited JSON body into v
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(v); err != nil {
		logging.Debug().Err(err).Str("path", r.URL.Path).Msg("Error decoding request body")
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return false
	}
	return true
}

// writeServiceError maps service and store errors to HTTP responses
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		apiErr := verr.ToAPIError()
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: apiErr.Code, Message: apiErr.Message, Details: apiErr.Details})
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
	case errors.Is(err, service.ErrAlreadyCheckedOut):
		writeError(w, http.StatusConflict, "ALREADY_CHECKED_OUT", "Check-in is already checked out")
	default:
		logging.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
