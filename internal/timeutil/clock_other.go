//go:build !linux

package timeutil

// BootClock falls back to the process monotonic clock where CLOCK_BOOTTIME is unavailable.
type BootClock struct{}

// Nanotime returns monotonic nanoseconds since process start.
func (BootClock) Nanotime() int64 { return processClock{}.Nanotime() }
