package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Expiry sweep cadence. Expired sessions are soft-marked, never deleted.
const SweepJobInterval = time.Hour

// Delay before a fresh pairing flow is started after logout, so a new
// pairing code becomes available without a separate manual step.
const ReinitAfterLogoutDelay = 2 * time.Second

// Upper bound on the configurable auto-reply delay.
const MaxAutoReplyDelaySeconds = 60

// Default rate limiting
const DefaultRateLimitPerMin = 60
