// Package observability provides structured logging setup for the client.
package observability

import (
	"io"
	"log/slog"
	"strings"
)

const (
	// LogFieldSessionID is the field name for the session id.
	LogFieldSessionID = "session_id"
	// LogFieldUserID is the field name for user ID.
	LogFieldUserID = "user_id"
	// LogFieldMessageID is the field name for a chat message id.
	LogFieldMessageID = "message_id"
	// LogFieldState is the field name for a state machine state.
	LogFieldState = "state"
	// LogFieldRange is the field name for the calendar range.
	LogFieldRange = "range"
	// LogFieldDuration is the field name for duration in milliseconds.
	LogFieldDuration = "duration_ms"
	// LogFieldErrorCode is the field name for error code.
	LogFieldErrorCode = "error_code"
	// LogFieldEventType is the field name for a real-time event type.
	LogFieldEventType = "event_type"
	// LogFieldComponent is the field name for the emitting component.
	LogFieldComponent = "component"
)

// ParseLevel maps a config level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a logger writing to w. format is "json" or "text".
func NewLogger(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ForSession returns a logger tagged with the session and user ids.
func ForSession(logger *slog.Logger, sessionID, userID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(
		slog.String(LogFieldSessionID, sessionID),
		slog.String(LogFieldUserID, userID),
	)
}

// ForComponent returns a logger tagged with a component name.
func ForComponent(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String(LogFieldComponent, component))
}

// Truncate shortens s to at most n runes for log output.
func Truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
