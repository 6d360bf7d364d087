// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Acquisition constants
const (
	// DefaultRetryInterval is the wait after a failed frame acquisition
	DefaultRetryInterval = time.Second

	// DefaultAlertAfter is the number of consecutive acquisition failures
	// after which a warning is logged
	DefaultAlertAfter = 30
)

// Registration constants
const (
	// DefaultEnrollAttempts is how many frames registration inspects for a face
	// before giving up
	DefaultEnrollAttempts = 10

	// CaptureTimeout bounds a registration capture requested over HTTP
	CaptureTimeout = 30 * time.Second
)

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Ledger constants
const (
	// DefaultFlushRetries is the number of extra save attempts after a failed flush
	DefaultFlushRetries = 3
)

// Web constants
const (
	// MaxRequestBodySize limits JSON request bodies
	MaxRequestBodySize = 1 << 20

	// SSEKeepAliveInterval is how often an idle event stream gets a comment line
	SSEKeepAliveInterval = 15 * time.Second
)
