package resilience

import "time"

// Circuit breaker configuration constants
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Sampler channel: a sensor event arrives every ~100ms, so the breaker
	// must recover within a few events once the service is back.
	SamplerThreshold         = 3
	SamplerResetTimeout      = time.Second
	SamplerHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
}

// SamplerConfig returns settings for the screen sampler channel.
func SamplerConfig() Config {
	return Config{
		Threshold:         SamplerThreshold,
		ResetTimeout:      SamplerResetTimeout,
		HalfOpenSuccesses: SamplerHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
