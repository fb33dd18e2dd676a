package calibration

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Channel indexes for the per-channel arrays.
const (
	Red = iota
	Green
	Blue
	White
	NumChannels
)

// Band is one hysteresis range: a sample whose corrected value is at most
// Middle reuses the cache while the raw value stays within [Min, Max].
type Band struct {
	Middle float64 `json:"middle"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Profile holds the device-specific constants of one panel and sensor
// placement. Everything here is a calibration artifact of the hardware.
type Profile struct {
	MaxLux           [NumChannels]float64    `json:"max_lux"`
	MaxLuxDivisor    [NumChannels]float64    `json:"max_lux_divisor"`
	Polynomial       [NumChannels][4]float64 `json:"polynomial"`
	GrayscaleWeights [3]float64              `json:"grayscale_weights"`
	InverseGain      [4]float64              `json:"inverse_gain"`
	Hysteresis       []Band                  `json:"hysteresis"`

	// AGCSteps are the ascending gain-estimate thresholds of the sensor's
	// own AGC; HBRAGCSteps are their counterparts in high-brightness-range
	// mode, where the estimate is inverted.
	AGCSteps    [3]float64 `json:"agc_steps"`
	HBRAGCSteps [3]float64 `json:"hbr_agc_steps"`
}

// DefaultProfile returns the constants for the stock panel.
func DefaultProfile() Profile {
	return Profile{
		MaxLux:        [NumChannels]float64{199, 216, 79, 428},
		MaxLuxDivisor: [NumChannels]float64{198, 216, 78, 409},
		Polynomial: [NumChannels][4]float64{
			{1.7404983e-6, 0.0018088078, 0.003599656, -0.5450117},
			{4.12301e-6, 0.0017906721, -0.034968063, -0.08428217},
			{1.361745e-6, 8.127534e-4, -0.046870504, 0.52842677},
			{2.7275946e-6, 0.0016300974, -0.021769103, -0.16610238},
		},
		GrayscaleWeights: [3]float64{0.4, 0.43, 0.17},
		InverseGain:      [4]float64{1.003141, 0.497163, 0.28517, 0.178429},
		Hysteresis: []Band{
			{0, 0, 4},
			{7, 1, 12},
			{15, 5, 30},
			{30, 10, 50},
			{360, 25, 700},
			{1200, 300, 1600},
			{2250, 1000, 2940},
			{4600, 2000, 5900},
			{10000, 4000, 80000},
			{math.Inf(1), 8000, math.Inf(1)},
		},
		AGCSteps:    [3]float64{29, 39, 85},
		HBRAGCSteps: [3]float64{450, 800, 1050},
	}
}

// LoadProfile reads a JSON profile, starting from the defaults so a file
// only needs the fields it overrides. The hysteresis table always ends in
// an unbounded band.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// Validate checks the structural invariants the engine relies on.
func (p *Profile) Validate() error {
	for i, d := range p.MaxLuxDivisor {
		if d <= 0 {
			return fmt.Errorf("max_lux_divisor[%d] must be positive", i)
		}
	}
	if p.InverseGain[0] <= 0 {
		return fmt.Errorf("inverse_gain[0] must be positive")
	}
	if p.AGCSteps[0] > p.AGCSteps[1] || p.AGCSteps[1] > p.AGCSteps[2] ||
		p.HBRAGCSteps[0] > p.HBRAGCSteps[1] || p.HBRAGCSteps[1] > p.HBRAGCSteps[2] {
		return fmt.Errorf("agc steps must be ascending")
	}
	if len(p.Hysteresis) == 0 {
		return fmt.Errorf("hysteresis table is empty")
	}
	for i := 1; i < len(p.Hysteresis); i++ {
		if p.Hysteresis[i].Middle <= p.Hysteresis[i-1].Middle {
			return fmt.Errorf("hysteresis middles must increase (band %d)", i)
		}
	}
	if last := p.Hysteresis[len(p.Hysteresis)-1]; !math.IsInf(last.Middle, 1) {
		p.Hysteresis = append(p.Hysteresis, Band{Middle: math.Inf(1), Min: last.Min, Max: math.Inf(1)})
	}
	return nil
}
