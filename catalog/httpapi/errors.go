// Package httpapi exposes a catalog.Store as a JSON REST API.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hupe1980/agentbridge/catalog"
)

// Error codes written in the "error" field of the envelope.
const (
	CodeInvalidJSON          = "invalid_json"
	CodeValidation           = "validation_error"
	CodeNotFound             = "not_found"
	CodeUnsupportedMediaType = "unsupported_media_type"
	CodeInvalidQuery         = "invalid_query"
	CodeInternal             = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// WriteJSONError writes a JSON error payload with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeStoreError maps store errors onto the envelope.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		WriteJSONError(w, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.Is(err, catalog.ErrInvalid):
		WriteJSONError(w, http.StatusBadRequest, CodeValidation, err.Error())
	default:
		WriteJSONError(w, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}
