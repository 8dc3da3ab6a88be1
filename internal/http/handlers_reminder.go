package http

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
}

// handleSendReminders triggers a reminder pass. Callers authenticate with a
// shared bearer secret, not a user session.
func (s *Server) handleSendReminders(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if !s.authorizedJobCall(r) {
		writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := s.reminders.Run(r.Context(), time.Now())
	if err != nil {
		slog.ErrorContext(r.Context(), "Reminder pass failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Processed %d reminders.", result.Processed),
	})
}

func (s *Server) authorizedJobCall(r *http.Request) bool {
	if s.secret == "" {
		return false
	}
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) == 1
}
