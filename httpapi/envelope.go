package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	secretroom "github.com/internos-labs/secretroom"
)

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps engine errors onto the wire envelope. Backend failures and
// anything unrecognized collapse into a generic internal error so no
// dependency detail leaks to callers.
func writeError(w http.ResponseWriter, err error) {
	var lockErr *secretroom.LockoutError

	switch {
	case errors.As(err, &lockErr):
		sec := lockErr.RetryAfterSec()
		w.Header().Set("Retry-After", strconv.Itoa(sec))
		writeJSON(w, http.StatusLocked, errorEnvelope{Error: errorBody{
			Code:    "LOCKED",
			Message: "too many failed attempts",
			Details: map[string]any{"retryAfterSec": sec},
		}})
	case errors.Is(err, secretroom.ErrLocked):
		writeJSON(w, http.StatusLocked, errorEnvelope{Error: errorBody{
			Code:    "LOCKED",
			Message: "too many failed attempts",
		}})
	case errors.Is(err, secretroom.ErrGone):
		writeJSON(w, http.StatusGone, errorEnvelope{Error: errorBody{
			Code:    "GONE",
			Message: "room no longer available",
		}})
	case errors.Is(err, secretroom.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorEnvelope{Error: errorBody{
			Code:    "NOT_FOUND",
			Message: "room not found",
		}})
	case errors.Is(err, secretroom.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorEnvelope{Error: errorBody{
			Code:    "FORBIDDEN",
			Message: "not authorized",
		}})
	case errors.Is(err, secretroom.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errorBody{
			Code:    "VALIDATION_ERROR",
			Message: err.Error(),
		}})
	default:
		log.Printf("secretroom: request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
			Code:    "INTERNAL_ERROR",
			Message: "internal error",
		}})
	}
}
