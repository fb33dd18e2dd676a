// Package monitor serves live correction readings over HTTP and WebSocket.
package monitor

import "time"

// Server configuration constants
const (
	// Client message rate limiting
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// Readings sent to a new WebSocket client before live updates
	HistoryOnConnect = 32

	// Default and maximum count for /api/readings
	DefaultRecent = 20
	MaxRecent     = 64

	WriteTimeout      = 2 * time.Second
	HealthTimeout     = 2 * time.Second
	ReadHeaderTimeout = 5 * time.Second
)
