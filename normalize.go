package btpad

// Normalize converts one raw event into the bounded, controller-agnostic
// value for its mapping entry. It is a pure function: no state, no I/O.
//
// Buttons collapse to exactly 0 or 1. Zero means released; any nonzero raw
// value means pressed. This deliberately folds evdev's autorepeat value
// (2) into "pressed" so a held button can never read as an intermediate
// state — a release is only ever reported by an explicit 0.
//
// Axes scale the declared [Min, Max] raw range linearly onto [-1, +1], so
// Min normalizes to exactly -1 and Max to exactly +1. Raw values outside
// the declared range clamp to the bounds rather than being rejected:
// consumer pads routinely overshoot their nominal range by a few counts.
// A nonzero Deadzone collapses raw values within that many counts of the
// raw center to exactly 0, suppressing stick rest jitter. Invert flips the
// sign after everything else.
func Normalize(ev RawEvent, e Entry) float64 {
	switch e.Kind {
	case KindButton:
		if ev.Value != 0 {
			return 1
		}
		return 0
	case KindAxis:
		return normalizeAxis(ev.Value, e)
	default:
		return 0
	}
}

func normalizeAxis(raw int32, e Entry) float64 {
	// Tables reject empty ranges at construction; guard anyway so a
	// hand-built Entry cannot divide by zero.
	if e.Max <= e.Min {
		return 0
	}
	if raw < e.Min {
		raw = e.Min
	}
	if raw > e.Max {
		raw = e.Max
	}

	center := (float64(e.Min) + float64(e.Max)) / 2
	offset := float64(raw) - center

	if e.Deadzone > 0 && offset > -float64(e.Deadzone) && offset < float64(e.Deadzone) {
		return 0
	}

	half := (float64(e.Max) - float64(e.Min)) / 2
	v := offset / half
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	if e.Invert {
		v = -v
	}
	return v
}
