package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Attribute keys shared by every calview log line
const (
	KeyComponent = "component"
	KeyUserHash  = "user_hash"
	KeyBackend   = "backend"
	KeyView      = "view"
	KeyRange     = "range"
	KeyCount     = "count"
	KeyDuration  = "duration"
	KeyError     = "error"
)

// WithComponent scopes logger to a part of the process such as "http" or "auth".
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

// WithBackend scopes logger to a calendar backend.
func WithBackend(logger *slog.Logger, backend string) *slog.Logger {
	return logger.With(Backend(backend))
}

func Backend(name string) slog.Attr {
	return slog.String(KeyBackend, name)
}

// View records the kind of page (day, week, month) being built.
func View(kind string) slog.Attr {
	return slog.String(KeyView, kind)
}

// Range records a queried time window, usually an event.Range.
func Range(r fmt.Stringer) slog.Attr {
	return slog.String(KeyRange, r.String())
}

func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}

// Duration records how long an operation took, rounded to the millisecond.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration(KeyDuration, d.Round(time.Millisecond))
}

// Err returns the error attribute. A nil error yields an empty group, which
// slog leaves out of the output, so Err(maybeNil) is always safe to pass.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail hashes an e-mail so log lines of one user can be correlated
// without recording the address. Case is ignored, matching account IDs.
func AnonymizeEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(email))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns the anonymized user attribute.
//
//	logger.Info("token refreshed", logging.UserHash(account.Email))
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}
