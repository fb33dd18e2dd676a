// Package correction removes the panel's own light from ambient light
// sensor readings.
package correction

import "time"

// Gate timing
const (
	// Samples closer together than this are dropped outright.
	RateLimit = 100 * time.Millisecond
	// With the backlight on, a refresh is forced at least this often.
	ForcedRefreshPeriod = 3 * time.Second
)

// Gate thresholds
const (
	// Confidence channel values above this allow a refresh at any lux.
	ConfidenceThreshold = 2.0
	// Outside [LowLux, HighLux] a band exit always refreshes.
	LowLux  = 10.0
	HighLux = 5.0 / 0.07
)

// Stability check and output shaping
const (
	// A correction this many times the raw reading is suspect...
	StabilityRatio = 1.35
	// ...once the gain-scaled reading is at least this bright.
	StabilityFloor = 10000.0
	// Subtracted from every fresh value; the sensor reads high in the dark.
	OutputOffset = 14.0
	// Panel transfer exponent for the grayscale floor.
	Gamma = 2.2
)

// Event data layout
const (
	ScalarIndex     = 0
	ConfidenceIndex = 6
	ModeIndex       = 8
	// In high-brightness-range mode the sensor applies its own correction
	// unless it reports this mode.
	HBRCorrectedMode = 2.0
)
