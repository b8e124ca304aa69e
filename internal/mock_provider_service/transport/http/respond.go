package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Warn("Failed to write JSON response", "error", err)
	}
}

func jsonError(w http.ResponseWriter, logger *slog.Logger, message string, status int) {
	writeJSON(w, logger, status, map[string]string{"error": message})
}

func writeTwilioError(w http.ResponseWriter, logger *slog.Logger, status, code int, message string) {
	twilioErrorsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
	writeJSON(w, logger, status, TwilioErrorResponse{
		Code:     code,
		Message:  message,
		MoreInfo: fmt.Sprintf("https://www.twilio.com/docs/errors/%d", code),
		Status:   status,
	})
}
