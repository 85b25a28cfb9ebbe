package profile

import "sync/atomic"

var debugLoggingEnabled atomic.Bool

// EnableDebugLogging toggles per-load debug logs.
func EnableDebugLogging(enabled bool) {
	debugLoggingEnabled.Store(enabled)
}

// IsDebugEnabled reports whether per-load debug logs are on.
func IsDebugEnabled() bool {
	return debugLoggingEnabled.Load()
}
