package host

import "sync"

// History keeps the most recent readings.
type History struct {
	mu      sync.RWMutex
	entries []Reading
	maxSize int
}

// NewHistory creates a history holding at most maxEntries readings.
func NewHistory(maxEntries int) *History {
	if maxEntries <= 0 {
		maxEntries = HistorySize
	}
	return &History{entries: make([]Reading, 0, maxEntries), maxSize: maxEntries}
}

// Add stores a reading, evicting the oldest when full.
func (h *History) Add(r Reading) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, r)
	if len(h.entries) > h.maxSize {
		h.entries = h.entries[len(h.entries)-h.maxSize:]
	}
}

// Recent returns up to n readings, oldest first. n <= 0 returns all.
func (h *History) Recent(n int) []Reading {
	h.mu.RLock()
	defer h.mu.RUnlock()

	start := 0
	if n > 0 && n < len(h.entries) {
		start = len(h.entries) - n
	}
	out := make([]Reading, len(h.entries)-start)
	copy(out, h.entries[start:])
	return out
}

// Last returns the newest reading.
func (h *History) Last() (Reading, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.entries) == 0 {
		return Reading{}, false
	}
	return h.entries[len(h.entries)-1], true
}
