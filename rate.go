package btpad

import (
	"sync"
	"time"
)

const defaultRateWindow = time.Second

// RateMeter measures events received per second over a sliding sampling
// window. It is a read-only observer on the pipeline: the producer calls
// Mark once per raw event, anyone may call Rate concurrently.
type RateMeter struct {
	mu     sync.Mutex
	window time.Duration
	marks  []time.Time
}

// NewRateMeter creates a meter with the given sampling window. A zero or
// negative window falls back to one second.
func NewRateMeter(window time.Duration) *RateMeter {
	if window <= 0 {
		window = defaultRateWindow
	}
	return &RateMeter{
		window: window,
		marks:  make([]time.Time, 0, 256),
	}
}

// Mark records one received event.
func (m *RateMeter) Mark() {
	now := time.Now()
	cutoff := now.Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	// Prune marks outside the window, reusing the underlying array.
	kept := m.marks[:0]
	for _, t := range m.marks {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	m.marks = append(kept, now)
}

// Rate returns the events-per-second over the sampling window.
func (m *RateMeter) Rate() float64 {
	cutoff := time.Now().Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.marks {
		if t.After(cutoff) {
			n++
		}
	}
	return float64(n) / m.window.Seconds()
}

// Count returns the number of events within the sampling window.
func (m *RateMeter) Count() int {
	cutoff := time.Now().Add(-m.window)

	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.marks {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
