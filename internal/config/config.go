// Package config handles daemon configuration
package config

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	SamplerSocket       string
	SamplerTimeout      time.Duration
	SamplerWorkers      int
	SamplerHealthSocket string
	CaptureRect         image.Rectangle
	CaptureFile         string
	CalibrationDir      string
	BacklightDir        string
	ProfilePath         string
	IIODevice           string
	PollInterval        time.Duration
	MonitorAddr         string
	HighBrightnessRange bool
	Debug               bool
}

// DefaultCaptureRect is the panel region directly above the sensor.
var DefaultCaptureRect = image.Rect(251, 988, 305, 1042)

// Load reads the environment, after merging an optional .env file from the
// working directory. Variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load(".env")

	return &Config{
		SamplerSocket:       getEnv("ALS_SAMPLER_SOCKET", "/dev/socket/als_correction"),
		SamplerTimeout:      getEnvMillis("ALS_SAMPLER_TIMEOUT_MS", 250*time.Millisecond),
		SamplerWorkers:      getEnvInt("ALS_SAMPLER_WORKERS", 2),
		SamplerHealthSocket: getEnv("ALS_SAMPLER_HEALTH_SOCKET", "/dev/socket/als_correction_health"),
		CaptureRect:         getEnvRect("ALS_CAPTURE_RECT", DefaultCaptureRect),
		CaptureFile:         getEnv("ALS_CAPTURE_FILE", ""),
		CalibrationDir:      getEnv("ALS_CALIBRATION_DIR", "/mnt/vendor/persist/engineermode"),
		BacklightDir:        getEnv("ALS_BACKLIGHT_DIR", "/sys/class/backlight/panel0-backlight"),
		ProfilePath:         getEnv("ALS_PROFILE", ""),
		IIODevice:           getEnv("ALS_IIO_DEVICE", "/sys/bus/iio/devices/iio:device0"),
		PollInterval:        getEnvMillis("ALS_POLL_INTERVAL_MS", 100*time.Millisecond),
		MonitorAddr:         getEnvAllowEmpty("ALS_MONITOR_ADDR", "127.0.0.1:8090"),
		HighBrightnessRange: getEnvBool("ALS_HIGH_BRIGHTNESS_RANGE", false),
		Debug:               getEnvBool("ALS_DEBUG", false),
	}
}

// LogLevel maps the debug switch onto a slog level.
func (c *Config) LogLevel() slog.Level {
	if c.Debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvAllowEmpty distinguishes unset from explicitly empty.
func getEnvAllowEmpty(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvMillis(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvRect(key string, def image.Rectangle) image.Rectangle {
	if v := os.Getenv(key); v != "" {
		if r, err := ParseRect(v); err == nil {
			return r
		}
		slog.Warn("ignoring malformed rectangle", "key", key, "value", v)
	}
	return def
}

// ParseRect parses "left,top,right,bottom" into a non-empty rectangle.
func ParseRect(s string) (image.Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return image.Rectangle{}, fmt.Errorf("rect %q: want 4 comma-separated values", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return image.Rectangle{}, fmt.Errorf("rect %q: %w", s, err)
		}
		v[i] = n
	}
	r := image.Rect(v[0], v[1], v[2], v[3])
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("rect %q is empty", s)
	}
	return r, nil
}
