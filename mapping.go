package btpad

import (
	"fmt"
	"sort"
)

// Kind classifies a logical control.
type Kind uint8

const (
	// KindButton controls collapse to exactly 0 (released) or 1 (pressed).
	KindButton Kind = iota
	// KindAxis controls scale onto [-1, +1] from a declared raw range.
	KindAxis
)

func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindAxis:
		return "axis"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Entry describes how one raw event code maps onto a logical control and
// how its raw value is normalized. Entries are immutable once a table has
// been built.
type Entry struct {
	Code uint16
	Name string
	Kind Kind

	// Axis parameters. Min/Max declare the raw range that scales linearly
	// onto [-1, +1]; raw values outside the range clamp to the bounds.
	// Deadzone is in raw units around the raw center: values inside
	// collapse to exactly 0 to suppress stick jitter. Invert flips the
	// sign after scaling (sticks report "forward" as negative on most
	// pads). All three are ignored for buttons.
	Min      int32
	Max      int32
	Invert   bool
	Deadzone int32
}

// Table maps raw event codes to entries. A table is built once, from a
// built-in controller family or a validated config file, and never
// mutated afterwards, so it is shared between goroutines without locking.
// Swapping mappings means building a new Controller with a new Table.
type Table struct {
	family  string
	entries map[uint16]Entry
}

// NewTable builds a table from entries. It returns a *ConfigError if a raw
// code appears twice, a name is empty, or an axis declares a bad range; no
// partial table is ever returned.
func NewTable(family string, entries []Entry) (*Table, error) {
	m := make(map[uint16]Entry, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, configErrorf(fmt.Sprintf("code 0x%x", e.Code), "control name must not be empty")
		}
		if _, dup := m[e.Code]; dup {
			return nil, configErrorf(e.Name, "duplicate raw code 0x%x", e.Code)
		}
		if e.Kind == KindAxis {
			if e.Min >= e.Max {
				return nil, configErrorf(e.Name, "axis range [%d, %d] is empty", e.Min, e.Max)
			}
			if e.Deadzone < 0 {
				return nil, configErrorf(e.Name, "deadzone must be >= 0, got %d", e.Deadzone)
			}
		}
		m[e.Code] = e
	}
	return &Table{family: family, entries: m}, nil
}

// Lookup returns the entry for a raw code. Most events from a real
// controller miss (repeated axis samples, SYN chatter, codes nobody
// mapped); a miss is not an error, the event is simply dropped.
func (t *Table) Lookup(code uint16) (Entry, bool) {
	e, ok := t.entries[code]
	return e, ok
}

// Family returns the controller family this table was built for, or the
// config file identifier for user-supplied mappings.
func (t *Table) Family() string { return t.family }

// Len returns the number of mapped raw codes.
func (t *Table) Len() int { return len(t.entries) }

// Names returns the logical control names in the table, sorted and
// deduplicated. Two raw codes may map to the same logical name; the
// snapshot then holds whichever arrived last.
func (t *Table) Names() []string {
	seen := make(map[string]struct{}, len(t.entries))
	names := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		if _, ok := seen[e.Name]; ok {
			continue
		}
		seen[e.Name] = struct{}{}
		names = append(names, e.Name)
	}
	sort.Strings(names)
	return names
}

// ============================================================================
// Built-in controller families
// ============================================================================
//
// Codes are Linux evdev codes; run evtest against your controller to see
// what it actually reports. Logical names are controller-agnostic and
// stable across families, so a consuming control loop never has to care
// which pad is paired.

// Linux evdev key/axis codes used by the built-in tables.
const (
	absX     = 0x00
	absY     = 0x01
	absZ     = 0x02
	absRX    = 0x03
	absRY    = 0x04
	absRZ    = 0x05
	absHat0X = 0x10
	absHat0Y = 0x11

	btnSouth  = 0x130 // A / Cross
	btnEast   = 0x131 // B / Circle
	btnNorth  = 0x133 // X / Triangle
	btnWest   = 0x134 // Y / Square
	btnTL     = 0x136
	btnTR     = 0x137
	btnSelect = 0x13a
	btnStart  = 0x13b
	btnMode   = 0x13c
	btnThumbL = 0x13d
	btnThumbR = 0x13e

	btnDpadUp    = 0x220
	btnDpadDown  = 0x221
	btnDpadLeft  = 0x222
	btnDpadRight = 0x223
)

// DefaultFamily is used when neither a config file nor a family selector
// is supplied.
const DefaultFamily = "wiiu"

// wiiu: Wii U Pro Controller paired over Bluetooth (hid-wiimote driver).
// Sticks report roughly ±1280; the d-pad arrives as discrete buttons.
var wiiuEntries = []Entry{
	{Code: absX, Name: "LEFT_STICK_X", Kind: KindAxis, Min: -1280, Max: 1280, Deadzone: 64},
	{Code: absY, Name: "LEFT_STICK_Y", Kind: KindAxis, Min: -1280, Max: 1280, Deadzone: 64, Invert: true},
	{Code: absRX, Name: "RIGHT_STICK_X", Kind: KindAxis, Min: -1280, Max: 1280, Deadzone: 64},
	{Code: absRY, Name: "RIGHT_STICK_Y", Kind: KindAxis, Min: -1280, Max: 1280, Deadzone: 64, Invert: true},
	{Code: btnEast, Name: "A", Kind: KindButton},
	{Code: btnSouth, Name: "B", Kind: KindButton},
	{Code: btnNorth, Name: "X", Kind: KindButton},
	{Code: btnWest, Name: "Y", Kind: KindButton},
	{Code: btnTL, Name: "LB", Kind: KindButton},
	{Code: btnTR, Name: "RB", Kind: KindButton},
	{Code: btnSelect, Name: "SELECT", Kind: KindButton},
	{Code: btnStart, Name: "START", Kind: KindButton},
	{Code: btnMode, Name: "HOME", Kind: KindButton},
	{Code: btnThumbL, Name: "LEFT_STICK_CLICK", Kind: KindButton},
	{Code: btnThumbR, Name: "RIGHT_STICK_CLICK", Kind: KindButton},
	{Code: btnDpadUp, Name: "PAD_UP", Kind: KindButton},
	{Code: btnDpadDown, Name: "PAD_DOWN", Kind: KindButton},
	{Code: btnDpadLeft, Name: "PAD_LEFT", Kind: KindButton},
	{Code: btnDpadRight, Name: "PAD_RIGHT", Kind: KindButton},
}

// xbox: Xbox One / Series pads in Bluetooth mode (xpadneo and friends).
// Full 16-bit stick range; triggers are one-sided axes; the d-pad arrives
// as the HAT0 axes with values -1/0/+1.
var xboxEntries = []Entry{
	{Code: absX, Name: "LEFT_STICK_X", Kind: KindAxis, Min: -32768, Max: 32767, Deadzone: 2000},
	{Code: absY, Name: "LEFT_STICK_Y", Kind: KindAxis, Min: -32768, Max: 32767, Deadzone: 2000, Invert: true},
	{Code: absRX, Name: "RIGHT_STICK_X", Kind: KindAxis, Min: -32768, Max: 32767, Deadzone: 2000},
	{Code: absRY, Name: "RIGHT_STICK_Y", Kind: KindAxis, Min: -32768, Max: 32767, Deadzone: 2000, Invert: true},
	{Code: absZ, Name: "LEFT_TRIGGER", Kind: KindAxis, Min: 0, Max: 1023},
	{Code: absRZ, Name: "RIGHT_TRIGGER", Kind: KindAxis, Min: 0, Max: 1023},
	{Code: absHat0X, Name: "PAD_X", Kind: KindAxis, Min: -1, Max: 1},
	{Code: absHat0Y, Name: "PAD_Y", Kind: KindAxis, Min: -1, Max: 1, Invert: true},
	{Code: btnSouth, Name: "A", Kind: KindButton},
	{Code: btnEast, Name: "B", Kind: KindButton},
	{Code: btnNorth, Name: "X", Kind: KindButton},
	{Code: btnWest, Name: "Y", Kind: KindButton},
	{Code: btnTL, Name: "LB", Kind: KindButton},
	{Code: btnTR, Name: "RB", Kind: KindButton},
	{Code: btnSelect, Name: "SELECT", Kind: KindButton},
	{Code: btnStart, Name: "START", Kind: KindButton},
	{Code: btnMode, Name: "HOME", Kind: KindButton},
	{Code: btnThumbL, Name: "LEFT_STICK_CLICK", Kind: KindButton},
	{Code: btnThumbR, Name: "RIGHT_STICK_CLICK", Kind: KindButton},
}

// dualshock: Sony DualShock 4 / DualSense over hid-sony/hid-playstation.
// Sticks are 8-bit centered at 128.
var dualshockEntries = []Entry{
	{Code: absX, Name: "LEFT_STICK_X", Kind: KindAxis, Min: 0, Max: 255, Deadzone: 8},
	{Code: absY, Name: "LEFT_STICK_Y", Kind: KindAxis, Min: 0, Max: 255, Deadzone: 8, Invert: true},
	{Code: absRX, Name: "RIGHT_STICK_X", Kind: KindAxis, Min: 0, Max: 255, Deadzone: 8},
	{Code: absRY, Name: "RIGHT_STICK_Y", Kind: KindAxis, Min: 0, Max: 255, Deadzone: 8, Invert: true},
	{Code: absZ, Name: "LEFT_TRIGGER", Kind: KindAxis, Min: 0, Max: 255},
	{Code: absRZ, Name: "RIGHT_TRIGGER", Kind: KindAxis, Min: 0, Max: 255},
	{Code: absHat0X, Name: "PAD_X", Kind: KindAxis, Min: -1, Max: 1},
	{Code: absHat0Y, Name: "PAD_Y", Kind: KindAxis, Min: -1, Max: 1, Invert: true},
	{Code: btnSouth, Name: "A", Kind: KindButton}, // Cross
	{Code: btnEast, Name: "B", Kind: KindButton},  // Circle
	{Code: btnNorth, Name: "X", Kind: KindButton}, // Triangle
	{Code: btnWest, Name: "Y", Kind: KindButton},  // Square
	{Code: btnTL, Name: "LB", Kind: KindButton},
	{Code: btnTR, Name: "RB", Kind: KindButton},
	{Code: btnSelect, Name: "SELECT", Kind: KindButton},
	{Code: btnStart, Name: "START", Kind: KindButton},
	{Code: btnMode, Name: "HOME", Kind: KindButton},
	{Code: btnThumbL, Name: "LEFT_STICK_CLICK", Kind: KindButton},
	{Code: btnThumbR, Name: "RIGHT_STICK_CLICK", Kind: KindButton},
}

// generic: the Linux gamepad API's documented layout, for pads without a
// dedicated table. Sticks full 16-bit, triggers 8-bit, d-pad on HAT0.
var genericEntries = []Entry{
	{Code: absX, Name: "LEFT_STICK_X", Kind: KindAxis, Min: -32768, Max: 32767, Deadzone: 1000},
	{Code: absY, Name: "LEFT_STICK_Y", Kind: KindAxis, Min: -32768, Max: 32767, Deadzone: 1000, Invert: true},
	{Code: absRX, Name: "RIGHT_STICK_X", Kind: KindAxis, Min: -32768, Max: 32767, Deadzone: 1000},
	{Code: absRY, Name: "RIGHT_STICK_Y", Kind: KindAxis, Min: -32768, Max: 32767, Deadzone: 1000, Invert: true},
	{Code: absZ, Name: "LEFT_TRIGGER", Kind: KindAxis, Min: 0, Max: 255},
	{Code: absRZ, Name: "RIGHT_TRIGGER", Kind: KindAxis, Min: 0, Max: 255},
	{Code: absHat0X, Name: "PAD_X", Kind: KindAxis, Min: -1, Max: 1},
	{Code: absHat0Y, Name: "PAD_Y", Kind: KindAxis, Min: -1, Max: 1, Invert: true},
	{Code: btnSouth, Name: "A", Kind: KindButton},
	{Code: btnEast, Name: "B", Kind: KindButton},
	{Code: btnNorth, Name: "X", Kind: KindButton},
	{Code: btnWest, Name: "Y", Kind: KindButton},
	{Code: btnTL, Name: "LB", Kind: KindButton},
	{Code: btnTR, Name: "RB", Kind: KindButton},
	{Code: btnSelect, Name: "SELECT", Kind: KindButton},
	{Code: btnStart, Name: "START", Kind: KindButton},
	{Code: btnMode, Name: "HOME", Kind: KindButton},
	{Code: btnThumbL, Name: "LEFT_STICK_CLICK", Kind: KindButton},
	{Code: btnThumbR, Name: "RIGHT_STICK_CLICK", Kind: KindButton},
}

var builtinFamilies = map[string][]Entry{
	"wiiu":      wiiuEntries,
	"xbox":      xboxEntries,
	"dualshock": dualshockEntries,
	"generic":   genericEntries,
}

// BuiltinTable returns the built-in mapping for a controller family.
// Unknown families are a *ConfigError.
func BuiltinTable(family string) (*Table, error) {
	entries, ok := builtinFamilies[family]
	if !ok {
		return nil, configErrorf("family", "unknown controller family %q (have %v)", family, Families())
	}
	return NewTable(family, entries)
}

// Families returns the built-in controller family names, sorted.
func Families() []string {
	names := make([]string, 0, len(builtinFamilies))
	for name := range builtinFamilies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
