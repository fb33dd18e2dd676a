package correction

import (
	"math"

	"github.com/yaap/device-oneplus-sm8150-common/internal/calibration"
)

// Gate decides whether a sample may reuse the cached correction. It owns
// the timing state and the current hysteresis band, both in raw units.
type Gate struct {
	started          bool
	lastUpdate       int64
	lastForcedUpdate int64
	force            bool
	hystMin, hystMax float64
}

func newGate() *Gate {
	return &Gate{force: true, hystMin: -1, hystMax: -1}
}

// Admit applies the rate limit and schedules periodic forced refreshes.
// It returns false when the sample must be dropped. The forced-refresh
// schedule advances even for dropped samples.
func (g *Gate) Admit(now int64, backlightOn bool) bool {
	if !g.started {
		g.started = true
		g.lastUpdate = now
		g.lastForcedUpdate = now
		return true
	}
	if backlightOn && now-g.lastForcedUpdate > int64(ForcedRefreshPeriod) {
		g.lastForcedUpdate = now
		g.force = true
	}
	if now-g.lastUpdate < int64(RateLimit) {
		return false
	}
	g.lastUpdate = now
	return true
}

// ShouldRefresh reports whether a fresh correction is needed for raw.
// calibrated is raw scaled by the last committed gain.
func (g *Gate) ShouldRefresh(raw, confidence, calibrated float64) bool {
	if g.force {
		return true
	}
	if raw >= g.hystMin && raw <= g.hystMax {
		return false
	}
	return confidence > ConfidenceThreshold || calibrated < LowLux || calibrated > HighLux
}

// Rebuild picks the band for a freshly corrected lux value and widens its
// upper edge by the full-white contribution, so a shift in the correction
// alone cannot push the next raw sample out of the band.
func (g *Gate) Rebuild(bands []calibration.Band, corrected, fullWhite float64) {
	g.hystMin, g.hystMax = math.Inf(-1), math.Inf(1)
	for _, b := range bands {
		if corrected <= b.Middle {
			g.hystMin = b.Min
			g.hystMax = b.Max + fullWhite
			return
		}
	}
}

// Forced reports whether the next refresh is forced.
func (g *Gate) Forced() bool { return g.force }

// ForceNext forces a refresh on the next admitted sample.
func (g *Gate) ForceNext() { g.force = true }

// clearForce is called once a refresh has been attempted to completion.
func (g *Gate) clearForce() { g.force = false }

// Band returns the current hysteresis band in raw units.
func (g *Gate) Band() (lo, hi float64) { return g.hystMin, g.hystMax }
