package timeutil

import "time"

var processStart = time.Now()

// processClock measures monotonic time since process start.
type processClock struct{}

func (processClock) Nanotime() int64 { return int64(time.Since(processStart)) + 1 }
