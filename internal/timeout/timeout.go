// Package timeout defines centralized timing constants for the client core.
package timeout

import "time"

const (
	// AuthPollInterval is the interval between authorization status checks.
	AuthPollInterval = 5 * time.Second

	// AuthDeadline bounds how long the client waits for the user to finish
	// the external authorization flow.
	AuthDeadline = 120 * time.Second

	// CalendarRefreshInterval is the periodic calendar fetch interval.
	CalendarRefreshInterval = 5 * time.Minute

	// HTTPTimeout is the timeout for a single backend request.
	HTTPTimeout = 15 * time.Second

	// EmitTimeout bounds a single outbound real-time write.
	EmitTimeout = 10 * time.Second

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)
