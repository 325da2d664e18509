package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/event"
	"github.com/teemow/calview/internal/logging"
	"github.com/teemow/calview/internal/view"
)

// errBadRequest marks malformed client input
var errBadRequest = errors.New("bad request")

// retryableMessage replaces upstream errors in responses; their details stay in the logs
const retryableMessage = "the calendar service is unavailable, please try again"

// ErrorResponse is the JSON body of every failed API request
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// classify maps err to an HTTP status and the body sent to the client
func classify(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated),
		errors.Is(err, auth.ErrTokenNotFound),
		errors.Is(err, view.ErrNoSource):
		return http.StatusUnauthorized, ErrorResponse{Error: "not_authenticated", Message: "sign in required"}
	case errors.Is(err, auth.ErrInteractionRequired):
		return http.StatusUnauthorized, ErrorResponse{Error: "interaction_required", Message: "sign in again to continue"}
	case errors.Is(err, errBadRequest),
		errors.Is(err, event.ErrInvalidDraft),
		errors.Is(err, view.ErrUnknownKind),
		errors.Is(err, view.ErrUnknownAction):
		return http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()}
	case errors.Is(err, ErrShutdown):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "shutting_down", Message: err.Error(), Retryable: true}
	default:
		return http.StatusBadGateway, ErrorResponse{Error: "upstream_error", Message: retryableMessage, Retryable: true}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to encode response", logging.Err(err))
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Warn("request failed", slog.Int("status", status), logging.Err(err))
	} else {
		logger.Debug("request rejected", slog.Int("status", status), logging.Err(err))
	}
	writeJSON(w, status, body)
}
