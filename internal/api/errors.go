package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-irbridge/internal/bridges/irbridge"
)

// Error is the body of every error response:
//
//	{"error": {"code": "not_found", "message": "unknown entity: ..."}}
type Error struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine-readable code and a human message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest      = "bad_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternal        = "internal_error"
	ErrCodeValidation      = "validation_error"
	ErrCodeNotSupported    = "not_supported"
	ErrCodeTransportFailed = "transport_failed"
	ErrCodeUnavailable     = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{Error: ErrorDetail{Code: code, Message: message}})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeBridgeError maps an error from Bridge.Execute to a status and code.
func writeBridgeError(w http.ResponseWriter, err error) {
	switch irbridge.ErrorCode(err) {
	case irbridge.ErrCodeUnknownDevice:
		writeNotFound(w, err.Error())
	case irbridge.ErrCodeInvalidCommand:
		writeBadRequest(w, err.Error())
	case irbridge.ErrCodeInvalidParameters:
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case irbridge.ErrCodeNotSupported:
		writeError(w, http.StatusUnprocessableEntity, ErrCodeNotSupported, err.Error())
	case irbridge.ErrCodeTransportFailed:
		writeError(w, http.StatusBadGateway, ErrCodeTransportFailed, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
