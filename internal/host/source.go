package host

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yaap/device-oneplus-sm8150-common/internal/correction"
	apperrors "github.com/yaap/device-oneplus-sm8150-common/internal/errors"
	"github.com/yaap/device-oneplus-sm8150-common/internal/resilience"
	"github.com/yaap/device-oneplus-sm8150-common/internal/timeutil"
)

// Source produces sensor events until ctx is done.
type Source interface {
	Run(ctx context.Context, out chan<- correction.Event) error
}

// IIO attribute names read by IIOSource.
const (
	iioRaw   = "in_illuminance_raw"
	iioScale = "in_illuminance_scale"
	iioGain  = "in_illuminance_hardwaregain"
)

// IIOSource polls an industrial-I/O light sensor through sysfs.
type IIOSource struct {
	dir      string
	interval time.Duration
	clock    timeutil.Clock
}

// NewIIOSource creates a source for the IIO device directory dir.
func NewIIOSource(dir string, interval time.Duration, clock timeutil.Clock) *IIOSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if clock == nil {
		clock = timeutil.BootClock{}
	}
	return &IIOSource{dir: dir, interval: interval, clock: clock}
}

// Read takes one reading. The scale and hardware gain attributes are
// optional; the gain, when present, is reported as the sensor's gain state.
func (s *IIOSource) Read() (correction.Event, error) {
	ev := correction.Event{SensorHandle: IIOSensorHandle, Timestamp: s.clock.Nanotime()}

	raw, err := s.attr(iioRaw)
	if err != nil {
		return ev, apperrors.Wrapf(err, apperrors.Unavailable, "read %s", iioRaw)
	}
	scale, err := s.optionalAttr(iioScale, 1)
	if err != nil {
		return ev, apperrors.Wrapf(err, apperrors.Unavailable, "read %s", iioScale)
	}
	gain, err := s.optionalAttr(iioGain, 0)
	if err != nil {
		return ev, apperrors.Wrapf(err, apperrors.Unavailable, "read %s", iioGain)
	}

	ev.Data[correction.ScalarIndex] = raw * scale
	ev.Data[correction.ModeIndex] = gain
	return ev, nil
}

// WaitReady blocks until the sensor can be read, retrying while its sysfs
// attributes have not appeared yet.
func (s *IIOSource) WaitReady(ctx context.Context) error {
	cfg := resilience.DefaultRetryConfig()
	cfg.IsRetryable = func(err error) bool { return errors.Is(err, os.ErrNotExist) }
	return resilience.Retry(ctx, cfg, func() error {
		_, err := s.Read()
		return err
	})
}

// Run polls at the configured interval. Failed reads are logged and
// skipped; a full queue drops the reading.
func (s *IIOSource) Run(ctx context.Context, out chan<- correction.Event) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ev, err := s.Read()
			if err != nil {
				slog.Debug("sensor read failed", "dir", s.dir, "error", err)
				continue
			}
			select {
			case out <- ev:
			default:
				slog.Debug("sensor queue full, dropping reading")
			}
		}
	}
}

func (s *IIOSource) attr(name string) (float64, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
}

func (s *IIOSource) optionalAttr(name string, def float64) (float64, error) {
	v, err := s.attr(name)
	if errors.Is(err, os.ErrNotExist) {
		return def, nil
	}
	return v, err
}
