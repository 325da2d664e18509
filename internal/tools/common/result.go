package common

import (
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/event"
	"github.com/teemow/calview/internal/logging"
	"github.com/teemow/calview/internal/view"
)

const (
	msgNotSignedIn   = "Not signed in. Run `calview login` to authorize calendar access, then retry."
	msgSignInExpired = "The sign-in has expired and could not be renewed silently. Run `calview login` again, then retry."
	msgUnavailable   = "The calendar service is unavailable. Please retry later."
)

// ErrorResult converts err into a tool error result. Input errors are
// reported as is; upstream failures are reported as a retryable error and
// their details only go to the log.
func ErrorResult(logger *slog.Logger, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated),
		errors.Is(err, auth.ErrNotInitialized),
		errors.Is(err, auth.ErrTokenNotFound):
		return mcp.NewToolResultError(msgNotSignedIn)
	case errors.Is(err, auth.ErrInteractionRequired):
		return mcp.NewToolResultError(msgSignInExpired)
	case errors.Is(err, event.ErrInvalidDraft),
		errors.Is(err, event.ErrInvalidTime),
		errors.Is(err, view.ErrUnknownKind):
		return mcp.NewToolResultError(err.Error())
	default:
		logger.Warn("tool call failed", logging.Err(err))
		return mcp.NewToolResultError(msgUnavailable)
	}
}
