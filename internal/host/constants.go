// Package host drives the correction engine from a light sensor and fans
// the results out to observers.
package host

import "time"

// Pipeline configuration constants
const (
	// Sensor events queued between the source and the engine
	EventBuffer = 16

	// Readings kept for late subscribers
	HistorySize = 64

	// Per-subscriber queue; slow subscribers miss readings
	SubscriberBuffer = 32

	DefaultPollInterval = 100 * time.Millisecond

	// Handle stamped on events from the IIO source
	IIOSensorHandle int32 = 1
)
