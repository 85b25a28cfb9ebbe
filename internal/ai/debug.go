package ai

import "sync/atomic"

// debugLoggingEnabled controls whether debug logging is enabled for AI subsystem.
// Set via EnableDebugLogging() during initialization based on config.
var debugLoggingEnabled atomic.Bool

// EnableDebugLogging enables or disables debug logging for AI subsystem.
func EnableDebugLogging(enabled bool) {
	debugLoggingEnabled.Store(enabled)
}

// IsDebugEnabled returns true if debug logging is enabled.
// Use this to guard debug log calls in per-tick code:
//
//	if ai.IsDebugEnabled() {
//	    slog.Debug("cast rejected", "mob", id, "error", err)
//	}
func IsDebugEnabled() bool {
	return debugLoggingEnabled.Load()
}
