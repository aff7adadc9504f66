package btpad

import "sync/atomic"

// Snapshot is an immutable point-in-time copy of every logical control's
// last normalized value: 0/1 for buttons, [-1, +1] for axes. Snapshots are
// shared between goroutines and must never be mutated after publication;
// use Map to get a private copy.
type Snapshot struct {
	values map[string]float64
}

// Value returns the last normalized value for a logical control. The
// second return is false only for names the mapping table does not know
// about: every mapped control starts at its neutral zero.
func (s *Snapshot) Value(name string) (float64, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Button reports whether a button control currently reads pressed.
func (s *Snapshot) Button(name string) bool {
	return s.values[name] != 0
}

// Len returns the number of logical controls in the snapshot.
func (s *Snapshot) Len() int { return len(s.values) }

// Map returns a copy of the control values, safe for the caller to hold
// on to or modify.
func (s *Snapshot) Map() map[string]float64 {
	out := make(map[string]float64, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// controlState publishes snapshots copy-on-write: the producer builds a
// fresh map for every update and swaps a single pointer. Readers load the
// pointer and are done — they never wait on the writer, and a snapshot can
// never contain a torn value because published maps are never written
// again. Cross-control coherence across one snapshot is best-effort by
// design; each control loop tick treats its inputs as independent.
type controlState struct {
	cur atomic.Pointer[Snapshot]
}

// newControlState seeds the snapshot with a neutral zero for every mapped
// control, so consumers polling before the first event still see the full
// control set.
func newControlState(names []string) *controlState {
	vals := make(map[string]float64, len(names))
	for _, n := range names {
		vals[n] = 0
	}
	cs := &controlState{}
	cs.cur.Store(&Snapshot{values: vals})
	return cs
}

// apply overwrites one control's value. Producer-goroutine only.
func (cs *controlState) apply(name string, value float64) {
	old := cs.cur.Load()
	next := make(map[string]float64, len(old.values)+1)
	for k, v := range old.values {
		next[k] = v
	}
	next[name] = value
	cs.cur.Store(&Snapshot{values: next})
}

// snapshot returns the current snapshot. Callable from any goroutine,
// non-blocking, never fails.
func (cs *controlState) snapshot() *Snapshot {
	return cs.cur.Load()
}
