package correction

import (
	"context"
	"log/slog"
	"math"

	"github.com/yaap/device-oneplus-sm8150-common/internal/calibration"
	apperrors "github.com/yaap/device-oneplus-sm8150-common/internal/errors"
	"github.com/yaap/device-oneplus-sm8150-common/internal/sampler"
	"github.com/yaap/device-oneplus-sm8150-common/internal/timeutil"
	"github.com/yaap/device-oneplus-sm8150-common/internal/trace"
)

// Sampler returns the average screen color above the sensor. Any error
// drops the current event.
type Sampler interface {
	Sample(ctx context.Context) (sampler.Sample, error)
}

// Options configures an Engine. Profile and Store are read on every
// (re)initialization.
type Options struct {
	Profile   calibration.Profile
	Store     calibration.Store
	Backlight calibration.Backlight
	Sampler   Sampler
	Clock     timeutil.Clock
	// HighBrightnessRange selects the sensor mode with on-die correction.
	HighBrightnessRange bool
	// NewModel builds the correction model for a calibration; defaults to
	// NewPolynomialModel.
	NewModel func(*calibration.Calibration) Model
}

// Engine owns the calibration and the runtime state of the correction
// pipeline. It is driven by a single goroutine; Process is not safe for
// concurrent use.
type Engine struct {
	opts  Options
	clock timeutil.Clock

	initialized bool
	cal         *calibration.Calibration
	model       Model
	gate        *Gate

	lastCorrected float64
	lastGain      float64
	// set while the loaded calibration is unusable
	corrupt bool
}

// Result describes the last processed event.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	Raw       float64 `json:"raw"`
	Lux       float64 `json:"lux"`
	Gain      float64 `json:"gain"`
	BandMin   float64 `json:"band_min"`
	BandMax   float64 `json:"band_max"`
	Timestamp int64   `json:"timestamp"`
}

// New creates and initializes an engine.
func New(opts Options) *Engine {
	if opts.Store == nil {
		opts.Store = calibration.MapStore{}
	}
	if opts.Backlight == nil {
		opts.Backlight = calibration.StoreBacklight{Store: opts.Store}
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.BootClock{}
	}
	if opts.NewModel == nil {
		opts.NewModel = NewPolynomialModel
	}
	e := &Engine{opts: opts, clock: opts.Clock, gate: newGate()}
	e.Init()
	return e
}

// Init loads calibration once; later calls are no-ops.
func (e *Engine) Init() {
	if e.initialized {
		return
	}
	e.initialized = true
	e.cal = calibration.Load(e.opts.Profile, e.opts.Store)
	e.model = e.opts.NewModel(e.cal)
}

// reinit discards the loaded calibration and loads it again.
func (e *Engine) reinit() {
	e.initialized = false
	e.Init()
}

// Calibration returns the loaded calibration.
func (e *Engine) Calibration() *calibration.Calibration { return e.cal }

// Gate exposes the hysteresis gate state.
func (e *Engine) Gate() *Gate { return e.gate }

// Process corrects ev in place. Events that cannot be corrected are
// dropped by zeroing their sensor handle; cache hits carry the previous
// corrected value.
func (e *Engine) Process(ctx context.Context, ev *Event) Result {
	res := Result{Raw: ev.Scalar(), Timestamp: ev.Timestamp}
	res.Outcome = e.process(ctx, ev)
	res.Lux = ev.Scalar()
	res.Gain = e.lastGain
	res.BandMin, res.BandMax = e.gate.Band()
	return res
}

func (e *Engine) process(ctx context.Context, ev *Event) Outcome {
	slog.Debug("raw sensor reading", "lux", ev.Scalar())

	if e.cal.Corrupt() {
		if !e.corrupt {
			err := apperrors.New(apperrors.CalibrationCorrupt, "max lux is zero on every channel")
			slog.Error("calibration unusable, reloading until it heals", "error", err)
			e.corrupt = true
		}
		e.reinit()
		ev.Drop()
		return Dropped
	}
	if e.corrupt {
		slog.Info("calibration recovered")
		e.corrupt = false
	}
	cal := e.cal

	raw := ev.Scalar()
	if raw > cal.Bias {
		raw -= cal.Bias
	}

	if e.opts.HighBrightnessRange && ev.Data[ModeIndex] != HBRCorrectedMode {
		e.gate.ForceNext()
		ev.SetScalar(raw * cal.BaseGain())
		slog.Debug("skipping correction", "lux", ev.Scalar())
		return Bypassed
	}

	now := e.clock.Nanotime()
	brightness := e.opts.Backlight.Brightness()

	if !e.gate.Admit(now, brightness > 0) {
		slog.Debug("events coming too fast, dropping")
		ev.Drop()
		return Dropped
	}

	calibrated := raw * cal.CalibGain * e.lastGain
	if !e.gate.ShouldRefresh(raw, ev.Data[ConfidenceIndex], calibrated) {
		ev.SetScalar(e.lastCorrected)
		slog.Debug("reusing cached value", "lux", e.lastCorrected)
		return Cached
	}

	ctx, span := trace.StartSpan(ctx, "refresh")
	defer func() {
		span.End()
		slog.Debug("correction cycle", "span", span)
	}()

	s, err := e.opts.Sampler.Sample(ctx)
	if err != nil {
		if apperrors.IsTransient(err) {
			slog.Debug("screen sample failed, dropping", "error", err)
		} else {
			slog.Warn("screen sample failed, dropping", "error", err)
		}
		ev.Drop()
		return Dropped
	}
	span.SetAttr("rgb", [3]uint32{s.R, s.G, s.B})

	est := e.model.Estimate(s, brightness/cal.MaxBrightness)
	correctedRaw := math.Max(raw-est.Correction, 0)
	gain := SelectGain(cal, correctedRaw, raw, ev.Data[ModeIndex], e.opts.HighBrightnessRange)
	span.SetAttr("correction", est.Correction)
	span.SetAttr("gain", gain)

	outcome := Fresh
	if est.Correction <= raw*StabilityRatio || raw*cal.CalibGain*gain < StabilityFloor || e.gate.Forced() {
		corrected := correctedRaw * cal.CalibGain * gain
		e.lastGain = gain
		e.gate.Rebuild(cal.Hysteresis, corrected, est.FullWhite)
		e.lastCorrected = math.Max(corrected-OutputOffset, 0)
		slog.Debug("fully corrected sensor value", "lux", e.lastCorrected)
	} else {
		outcome = Cached
		slog.Debug("implausible correction, reusing cached value",
			"correction", est.Correction, "raw", raw, "lux", e.lastCorrected)
	}
	ev.SetScalar(e.lastCorrected)
	e.gate.clearForce()
	return outcome
}
