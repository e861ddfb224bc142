package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// Timeout and duration constants
const (
	// DefaultCommandTimeout bounds a single remote command
	DefaultCommandTimeout = 10 * time.Minute
	// DefaultConnectTimeout bounds the SSH dial and handshake
	DefaultConnectTimeout = 15 * time.Second
	// DefaultHTTPClientTimeout is the timeout for reasoning backend requests
	DefaultHTTPClientTimeout = 120 * time.Second
	// DefaultGraceWindow is how long session history survives a disconnect
	DefaultGraceWindow = time.Hour
)

// History constants
const (
	// DefaultRecentInteractions is how many prior interactions feed prompt context
	DefaultRecentInteractions = 5
	// DefaultHistoryLimit is the default number of archived records to display
	DefaultHistoryLimit = 20
)

// Model configuration constants
const (
	DefaultPlanMaxTokens       = 2000
	DefaultPlanTemperature     = 0.2
	DefaultAnalysisMaxTokens   = 1500
	DefaultAnalysisTemperature = 0.3
)

// Target defaults
const (
	DefaultSSHPort = 22
)
