package calibration

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// Hours of screen-on time after which the panel is considered fully aged.
	agingLifetimeHours = 87600.0
	// Raw counts at which the sensor's own AGC starts switching.
	agcThresholdCounts = 800.0
	// Store coefficients are fixed-point with three decimals.
	coefficientScale = 1000.0
	// Bias values above this are treated as garbage.
	maxBias              = 4.0
	defaultMaxBrightness = 1023.0
)

// Calibration is the derived, immutable calibration for one engine
// lifetime.
type Calibration struct {
	MaxLux           [NumChannels]float64
	MaxLuxDivisor    [NumChannels]float64
	PostMultiplier   [NumChannels]float64
	Polynomial       [NumChannels][4]float64
	GrayscaleWeights [3]float64
	InverseGain      [4]float64
	Hysteresis       []Band
	AGCSteps         [3]float64
	HBRAGCSteps      [3]float64
	AgingFactor      float64
	AGCThreshold     float64
	CalibGain        float64
	Bias             float64
	MaxBrightness    float64
}

// Load derives a Calibration from the profile defaults and the store.
func Load(p Profile, s Store) *Calibration {
	c := &Calibration{
		MaxLux:           p.MaxLux,
		MaxLuxDivisor:    p.MaxLuxDivisor,
		Polynomial:       p.Polynomial,
		GrayscaleWeights: p.GrayscaleWeights,
		InverseGain:      p.InverseGain,
		AGCSteps:         p.AGCSteps,
		HBRAGCSteps:      p.HBRAGCSteps,
	}

	screenOn := s.Float(KeyScreenOnHours, 0)
	c.AgingFactor = clamp01(1 - screenOn/agingLifetimeHours)
	slog.Info("screen on time", "hours", screenOn, "aging_factor", c.AgingFactor)

	for i, key := range maxLuxKeys {
		if v := s.Float(key, 0); v > 0 {
			c.MaxLux[i] = v
		}
	}
	floats.Scale(c.AgingFactor, c.MaxLux[:])

	// W carries whatever the additive R+G+B maximum exceeds W's own maximum by.
	for i := Red; i <= Blue; i++ {
		c.PostMultiplier[i] = c.MaxLux[i] / c.MaxLuxDivisor[i]
	}
	rgbSum := floats.Sum(c.MaxLux[Red:White])
	c.PostMultiplier[White] = (rgbSum - c.MaxLux[White]) / c.MaxLuxDivisor[White]
	slog.Debug("display maximums",
		"r", c.MaxLux[Red], "g", c.MaxLux[Green], "b", c.MaxLux[Blue], "w", c.MaxLux[White])

	if row := s.Float(KeySensorGainCoefficient, 0); row > 0 {
		c.InverseGain[0] = row / coefficientScale
	}
	c.AGCThreshold = agcThresholdCounts / c.InverseGain[0]

	c.CalibGain = 1
	if cali := s.Float(KeyCalibrationGainCoefficient, 0); cali > 0 {
		c.CalibGain = cali / coefficientScale
	}
	slog.Debug("calibrated sensor gain", "gain", 1/(c.CalibGain*c.InverseGain[0]))

	if bias := s.Float(KeySensorBias, 0); bias >= 0 && bias <= maxBias {
		c.Bias = bias
	}

	c.MaxBrightness = defaultMaxBrightness
	if mb := s.Float(KeyBacklightMaxBrightness, 0); mb > 0 {
		c.MaxBrightness = mb
	}

	c.Hysteresis = scaleBands(p.Hysteresis, c.CalibGain*c.InverseGain[0])
	return c
}

// Corrupt reports whether every max-lux value is zero, which only happens
// when calibration was never loaded or got wiped.
func (c *Calibration) Corrupt() bool {
	for _, v := range c.MaxLux {
		if v != 0 {
			return false
		}
	}
	return true
}

// BaseGain is the full host-side gain at the most sensitive AGC step.
func (c *Calibration) BaseGain() float64 {
	return c.CalibGain * c.InverseGain[0]
}

// scaleBands converts lux bands into raw sensor units. The lowest band has
// no lower bound.
func scaleBands(bands []Band, gain float64) []Band {
	out := make([]Band, len(bands))
	for i, b := range bands {
		out[i] = Band{Middle: b.Middle, Min: b.Min / gain, Max: b.Max / gain}
	}
	if len(out) > 0 {
		out[0].Min = math.Inf(-1)
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
