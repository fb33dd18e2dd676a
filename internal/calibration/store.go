// Package calibration loads the sensor and panel calibration used by the
// correction engine.
package calibration

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store keys.
const (
	KeyRedMaxLux                  = "redMaxLux"
	KeyGreenMaxLux                = "greenMaxLux"
	KeyBlueMaxLux                 = "blueMaxLux"
	KeyWhiteMaxLux                = "whiteMaxLux"
	KeySensorGainCoefficient      = "sensorGainCoefficient"
	KeyCalibrationGainCoefficient = "calibrationGainCoefficient"
	KeySensorBias                 = "sensorBias"
	KeyScreenOnHours              = "screenOnHours"
	KeyBacklightMaxBrightness     = "backlightMaxBrightness"
	KeyBacklightCurrentBrightness = "backlightCurrentBrightness"
)

var maxLuxKeys = [NumChannels]string{KeyRedMaxLux, KeyGreenMaxLux, KeyBlueMaxLux, KeyWhiteMaxLux}

// Store is a key to scalar lookup. Float returns def when the key is absent
// or unparsable.
type Store interface {
	Float(key string, def float64) float64
}

// FileStore reads each key from its own file, taking the first
// whitespace-separated token as the value.
type FileStore struct {
	paths map[string]string
}

// NewFileStore maps the keys onto the persist partition and the backlight
// class directory.
func NewFileStore(persistDir, backlightDir string) *FileStore {
	return &FileStore{paths: map[string]string{
		KeyRedMaxLux:                  filepath.Join(persistDir, "red_max_lux"),
		KeyGreenMaxLux:                filepath.Join(persistDir, "green_max_lux"),
		KeyBlueMaxLux:                 filepath.Join(persistDir, "blue_max_lux"),
		KeyWhiteMaxLux:                filepath.Join(persistDir, "white_max_lux"),
		KeySensorGainCoefficient:      filepath.Join(persistDir, "row_coe"),
		KeyCalibrationGainCoefficient: filepath.Join(persistDir, "cali_coe"),
		KeySensorBias:                 filepath.Join(persistDir, "als_bias"),
		KeyScreenOnHours:              filepath.Join(persistDir, "screenontimebyhours"),
		KeyBacklightMaxBrightness:     filepath.Join(backlightDir, "max_brightness"),
		KeyBacklightCurrentBrightness: filepath.Join(backlightDir, "brightness"),
	}}
}

// Path returns the file backing key.
func (s *FileStore) Path(key string) string { return s.paths[key] }

// Float implements Store.
func (s *FileStore) Float(key string, def float64) float64 {
	path, ok := s.paths[key]
	if !ok {
		return def
	}
	f, err := os.Open(path)
	if err != nil {
		return def
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Split(bufio.ScanWords)
	if !sc.Scan() {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(sc.Text()), 64)
	if err != nil {
		return def
	}
	return v
}

// MapStore is an in-memory Store.
type MapStore map[string]float64

// Float implements Store.
func (m MapStore) Float(key string, def float64) float64 {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

// Backlight is the Display State Source: the current backlight level.
type Backlight interface {
	Brightness() float64
}

// StoreBacklight reads the current level through a Store on every call.
type StoreBacklight struct {
	Store Store
}

// Brightness returns the current level, 0 when unknown.
func (b StoreBacklight) Brightness() float64 {
	return b.Store.Float(KeyBacklightCurrentBrightness, 0)
}
