package http

import (
	"encoding/json"
	"net/http"

	"github.com/AtoyanMikhail/tasks-auth/internal/models"
	"github.com/AtoyanMikhail/tasks-auth/internal/session"
)

const (
	msgInternal   = "Internal server error"
	msgNoToken    = "No token provided. Please log in."
	msgBadSession = "Invalid or expired token. Please log in again."
	msgReuse      = "Security alert: Reused token detected. Please log in again."
	msgThrottled  = "Too many refresh attempts. Please try again later."
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, models.MessageRes{Message: msg})
}

// writeSessionError maps a session error to its response. Expired and invalid
// tokens share one message so callers cannot tell them apart.
func writeSessionError(w http.ResponseWriter, err error) {
	switch session.KindOf(err) {
	case session.KindNoToken:
		writeMessage(w, http.StatusUnauthorized, msgNoToken)
	case session.KindExpired, session.KindInvalid, session.KindUnknownSubject:
		writeMessage(w, http.StatusUnauthorized, msgBadSession)
	case session.KindReuse:
		writeMessage(w, http.StatusForbidden, msgReuse)
	case session.KindRateLimited:
		writeMessage(w, http.StatusTooManyRequests, msgThrottled)
	default:
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}
