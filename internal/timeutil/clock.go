// Package timeutil provides the monotonic clock shared by the engine and the sampler.
package timeutil

import (
	"sync/atomic"
	"time"
)

// Clock returns monotonic nanoseconds. Both ends of the sampler channel must
// read the same clock so reply timestamps can be compared against "now".
type Clock interface {
	Nanotime() int64
}

// Since returns the elapsed duration between ts and the clock's current time.
func Since(c Clock, ts int64) time.Duration {
	return time.Duration(c.Nanotime() - ts)
}

// FakeClock is a manually advanced clock for tests.
type FakeClock struct {
	now atomic.Int64
}

// NewFakeClock creates a fake clock starting at start nanoseconds.
func NewFakeClock(start int64) *FakeClock {
	c := &FakeClock{}
	c.now.Store(start)
	return c
}

// Nanotime returns the current fake time.
func (c *FakeClock) Nanotime() int64 { return c.now.Load() }

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) { c.now.Add(int64(d)) }

// Set pins the clock at ns.
func (c *FakeClock) Set(ns int64) { c.now.Store(ns) }
