package correction

import (
	"math"

	"github.com/yaap/device-oneplus-sm8150-common/internal/calibration"
	"github.com/yaap/device-oneplus-sm8150-common/internal/sampler"
)

// Estimate is the screen's own contribution to the sensor reading.
type Estimate struct {
	// Correction is the lux to subtract, already clamped.
	Correction float64
	// FullWhite is what a full-white patch would emit at this backlight.
	FullWhite float64
	// GrayFloor is the gamma-weighted minimum for the sampled gray level.
	GrayFloor float64
}

// Model estimates self-emitted lux from the screen content above the sensor
// and the backlight fraction in [0, 1].
type Model interface {
	Estimate(s sampler.Sample, backlight float64) Estimate
}

// PolynomialModel maps each channel through a cubic fitted per panel.
type PolynomialModel struct {
	cal *calibration.Calibration
}

// NewPolynomialModel creates the default model.
func NewPolynomialModel(cal *calibration.Calibration) Model {
	return &PolynomialModel{cal: cal}
}

// Estimate implements Model.
func (m *PolynomialModel) Estimate(s sampler.Sample, backlight float64) Estimate {
	c := m.cal
	backlight = math.Max(backlight, 0)

	r, g, b := float64(s.R), float64(s.G), float64(s.B)
	rgbw := [calibration.NumChannels]float64{
		r, g, b,
		r*c.GrayscaleWeights[0] + g*c.GrayscaleWeights[1] + b*c.GrayscaleWeights[2],
	}

	var total float64
	for i, v := range rgbw {
		corr := horner(c.Polynomial[i], v) * c.PostMultiplier[i]
		if i < calibration.White {
			total += math.Max(corr, 0)
		} else {
			total -= corr
		}
	}
	total *= backlight

	fullWhite := c.MaxLux[calibration.White] * backlight
	floor := math.Pow(rgbw[calibration.White]/255, Gamma) * fullWhite
	total = math.Max(math.Min(total, fullWhite), floor)

	return Estimate{Correction: total, FullWhite: fullWhite, GrayFloor: floor}
}

// horner evaluates a polynomial with coefficients highest degree first.
func horner(coef [4]float64, x float64) float64 {
	var acc float64
	for _, c := range coef {
		acc = acc*x + c
	}
	return acc
}
