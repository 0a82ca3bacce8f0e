// Package timeout defines centralized timing constants for assistant turns.
package timeout

import "time"

// Assistant turn timing constants.
const (
	// PollInterval is the fixed delay before every run-status check.
	PollInterval = 500 * time.Millisecond

	// MaxPollAttempts bounds the number of run-status checks of a single turn.
	// PollInterval * MaxPollAttempts gives the nominal 30 second budget.
	MaxPollAttempts = 60

	// GatewayRequestTimeout is the HTTP timeout of one upstream request.
	GatewayRequestTimeout = 30 * time.Second

	// SessionIdleTTL is how long an unused surface instance stays in the registry.
	SessionIdleTTL = 30 * time.Minute

	// ShutdownTimeout bounds graceful server shutdown.
	ShutdownTimeout = 10 * time.Second

	// MaxTruncateLength is the maximum length for truncating strings in logs.
	MaxTruncateLength = 200
)
