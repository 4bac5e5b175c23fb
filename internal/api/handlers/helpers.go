// Handler helper functions shared by the auth, chat and knowledge handlers.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/matiasleandrokruk/aiweb/internal/infra/llm"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"
	mimeText          = "text/plain; charset=utf-8"

	errInvalidBody        = "invalid request body"
	errMissingUserContext = "missing user context"
)

// writeJSON writes v as a JSON body with the given status.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		http.Error(w, `{"error":"failed to encode error response"}`, http.StatusInternalServerError)
	}
}

// statusForError maps the gateway error taxonomy to an HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, llm.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, llm.ErrProviderCallFailed), errors.Is(err, llm.ErrUploadFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError writes err using statusForError. Caller errors keep their
// message; upstream and internal failures get a fixed one so provider
// details are not echoed to clients.
func writeDomainError(w http.ResponseWriter, err error, internalMessage string) {
	status := statusForError(err)
	switch {
	case status == http.StatusBadRequest:
		writeError(w, status, err.Error())
	case errors.Is(err, llm.ErrUploadFailed):
		writeError(w, status, "upload failed")
	case status == http.StatusBadGateway:
		writeError(w, status, "provider call failed")
	default:
		writeError(w, status, internalMessage)
	}
}
