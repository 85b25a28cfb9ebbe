package combat

import "sync/atomic"

// debugLoggingEnabled guards per-hit debug logging in Process.
var debugLoggingEnabled atomic.Bool

// EnableDebugLogging enables or disables per-hit debug logging.
// Called from main after parsing config.LogLevel.
func EnableDebugLogging(enabled bool) {
	debugLoggingEnabled.Store(enabled)
}

// IsDebugEnabled returns true if debug logging is enabled.
func IsDebugEnabled() bool {
	return debugLoggingEnabled.Load()
}
