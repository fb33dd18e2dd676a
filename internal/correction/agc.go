package correction

import "github.com/yaap/device-oneplus-sm8150-common/internal/calibration"

// SelectGain mirrors the sensor's analog gain choice so host-side scaling
// matches it. Below the AGC threshold the sensor never leaves its most
// sensitive step. indicator is the sensor's own gain-state channel.
func SelectGain(c *calibration.Calibration, correctedRaw, raw, indicator float64, hbr bool) float64 {
	g := c.InverseGain
	if correctedRaw <= c.AGCThreshold {
		return g[0]
	}

	if hbr {
		steps := c.HBRAGCSteps
		estimate := indicator * 1000 / raw
		switch {
		case estimate > steps[2]:
			return g[3]
		case estimate > steps[1]:
			return g[2]
		case estimate > steps[0]:
			return g[1]
		default:
			return g[0]
		}
	}

	steps := c.AGCSteps
	estimate := correctedRaw / indicator
	switch {
	case estimate > steps[2]:
		return g[0]
	case estimate >= steps[1]:
		return g[1]
	case estimate >= steps[0]:
		return g[2]
	default:
		return g[3]
	}
}
