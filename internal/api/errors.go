package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/smart-fridge/internal/fridge"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`

	// Lock carries the confirmed latch state for failed latch commands.
	Lock fridge.LockState `json:"lock,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeBusy           = "busy"
	ErrCodeActuatorFault  = "actuator_fault"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeInternal       = "internal_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
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
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
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

// writeActuatorFault writes a 503 for a latch command that failed. lock is
// the state the controller rolled back to.
func writeActuatorFault(w http.ResponseWriter, err error, lock fridge.LockState) {
	writeJSON(w, http.StatusServiceUnavailable, Error{
		Status:  http.StatusServiceUnavailable,
		Code:    ErrCodeActuatorFault,
		Message: err.Error(),
		Lock:    lock,
	})
}

// writeControllerError maps a controller request error to a response.
func writeControllerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fridge.ErrBusy):
		writeError(w, http.StatusConflict, ErrCodeBusy, "a lock or unlock is already in progress")
	case errors.Is(err, fridge.ErrInvalidTarget):
		writeBadRequest(w, err.Error())
	case errors.Is(err, fridge.ErrStopped),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "controller unavailable")
	default:
		writeInternalError(w, err.Error())
	}
}
