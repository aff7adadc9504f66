package btpad

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigError reports an invalid mapping configuration. Construction fails
// outright on the first bad entry: no partial table is ever installed, so
// a running producer can never observe a half-loaded mapping.
type ConfigError struct {
	Field  string // control name or config field the error refers to
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("mapping config: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// MappingConfig is the user-facing YAML mapping specification.
//
// Either `controls` describes the full mapping, or `family` names a
// built-in table to use as-is. When both are present the controls win and
// the family is only recorded for labeling.
//
// Example:
//
//	family: custom-8bitdo
//	controls:
//	  - code: 0x130
//	    name: A
//	    kind: button
//	  - code: 0x01
//	    name: LEFT_STICK_Y
//	    kind: axis
//	    min: -32768
//	    max: 32767
//	    deadzone: 2000
//	    invert: true
type MappingConfig struct {
	Family   string          `yaml:"family,omitempty"`
	Controls []ControlConfig `yaml:"controls,omitempty"`
}

// ControlConfig is one mapping entry as represented in YAML.
type ControlConfig struct {
	Code     uint16 `yaml:"code"`
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"` // "button" or "axis"
	Min      int32  `yaml:"min,omitempty"`
	Max      int32  `yaml:"max,omitempty"`
	Invert   bool   `yaml:"invert,omitempty"`
	Deadzone int32  `yaml:"deadzone,omitempty"`
}

// Table validates the config and builds the mapping table from it.
func (c MappingConfig) Table() (*Table, error) {
	if len(c.Controls) == 0 {
		family := c.Family
		if family == "" {
			family = DefaultFamily
		}
		return BuiltinTable(family)
	}

	entries := make([]Entry, 0, len(c.Controls))
	for i, cc := range c.Controls {
		if cc.Name == "" {
			return nil, configErrorf(fmt.Sprintf("controls[%d]", i), "name must not be empty")
		}
		var kind Kind
		switch cc.Kind {
		case "button":
			kind = KindButton
		case "axis":
			kind = KindAxis
			if cc.Min == 0 && cc.Max == 0 {
				return nil, configErrorf(cc.Name, "axis entries must declare a raw min/max range")
			}
		default:
			return nil, configErrorf(cc.Name, "unknown kind %q (must be \"button\" or \"axis\")", cc.Kind)
		}
		entries = append(entries, Entry{
			Code:     cc.Code,
			Name:     cc.Name,
			Kind:     kind,
			Min:      cc.Min,
			Max:      cc.Max,
			Invert:   cc.Invert,
			Deadzone: cc.Deadzone,
		})
	}

	family := c.Family
	if family == "" {
		family = "custom"
	}
	return NewTable(family, entries)
}

// LoadMappingFile reads a YAML mapping file and builds the table from it.
// Unknown fields and trailing documents are rejected, so typos fail loudly
// at construction instead of silently dropping a control.
func LoadMappingFile(path string) (*Table, error) {
	if path == "" {
		return nil, configErrorf("path", "mapping file path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}

	var cfg MappingConfig
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode mapping yaml: %w", err)
	}
	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return nil, fmt.Errorf("decode mapping yaml: unexpected trailing document")
	}

	table, err := cfg.Table()
	if err != nil {
		return nil, err
	}
	if cfg.Family == "" && len(cfg.Controls) > 0 {
		table.family = filepath.Base(path)
	}
	return table, nil
}

// ExpandPath expands a bare ~ or a leading ~/ to the user's home
// directory. ~user form is not supported. If the home directory cannot be
// determined the path is returned unchanged.
func ExpandPath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}
