package skill

import "sync/atomic"

// debugLoggingEnabled controls per-instance debug logging in the interpreter.
var debugLoggingEnabled atomic.Bool

// EnableDebugLogging enables or disables debug logging for the skill subsystem.
// Must be called during initialization (from main after parsing config.LogLevel).
func EnableDebugLogging(enabled bool) {
	debugLoggingEnabled.Store(enabled)
}

// IsDebugEnabled returns true if debug logging is enabled.
func IsDebugEnabled() bool {
	return debugLoggingEnabled.Load()
}
