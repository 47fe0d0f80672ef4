package server

import (
	"encoding/json"
	"errors"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/storage"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrInvalidAppID),
		errors.Is(err, goGuard.ErrUnknownResult),
		errors.Is(err, goGuard.ErrUnknownScreenEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, goGuard.ErrTicketInvalid):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, goGuard.ErrSessionStale):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, goGuard.ErrEngineStopped),
		errors.Is(err, storage.ErrUnavailable),
		errors.Is(err, goGuard.ErrGrantStore):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
