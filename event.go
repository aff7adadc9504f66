// Package btpad turns raw, device-specific input events from a wireless
// game controller into a stable set of named button/axis states that a
// real-time control loop can poll without ever blocking.
//
// The pipeline is: a Source yields raw (code, value) events, a mapping
// Table assigns them to logical controls, Normalize bounds their values,
// and a Controller folds the results into an atomically published
// snapshot. Exactly one producer goroutine drives the pipeline; any number
// of consumers call Controller.Poll from their own cadence.
package btpad

import "errors"

// RawEvent is one unprocessed (code, value) pair as emitted by the
// controller's driver stack. Events are ephemeral: they are read from a
// Source, normalized and folded into the snapshot, never stored.
type RawEvent struct {
	// Type is the driver-level event class (on Linux evdev: EV_KEY,
	// EV_ABS, ...). Mapping is keyed on Code alone; Type is carried for
	// diagnostics and source-side filtering.
	Type  uint16
	Code  uint16
	Value int32
}

// Source is a blocking, sequential raw event source. Implementations must
// preserve arrival order exactly: no reordering, no coalescing. Any
// coalescing happens later, in the snapshot, by last-write-wins.
type Source interface {
	// ReadEvent blocks until the next event arrives or the source fails.
	// A disconnected or closed source returns an error; ErrSourceClosed
	// signals a deliberate local Close rather than a device failure.
	ReadEvent() (RawEvent, error)

	// Close releases the source and unblocks any in-progress ReadEvent.
	Close() error
}

// ErrSourceClosed is returned by ReadEvent after Close has been called.
var ErrSourceClosed = errors.New("btpad: event source closed")
