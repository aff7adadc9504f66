package btpad

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeMapping(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write mapping file: %v", err)
	}
	return path
}

// TestLoadMappingFile_Valid loads a full custom mapping and checks the
// resulting table.
func TestLoadMappingFile_Valid(t *testing.T) {
	path := writeMapping(t, `
family: custom-8bitdo
controls:
  - code: 0x130
    name: A
    kind: button
  - code: 0x03
    name: LEFT_STICK_Y
    kind: axis
    min: -32768
    max: 32767
    deadzone: 2000
    invert: true
`)

	table, err := LoadMappingFile(path)
	if err != nil {
		t.Fatalf("LoadMappingFile failed: %v", err)
	}
	if table.Family() != "custom-8bitdo" {
		t.Errorf("expected family custom-8bitdo, got %q", table.Family())
	}

	e, ok := table.Lookup(0x130)
	if !ok || e.Name != "A" || e.Kind != KindButton {
		t.Errorf("0x130: expected button A, got ok=%v %+v", ok, e)
	}

	e, ok = table.Lookup(0x03)
	if !ok || e.Kind != KindAxis {
		t.Fatalf("0x03: expected axis entry, got ok=%v %+v", ok, e)
	}
	if e.Min != -32768 || e.Max != 32767 || e.Deadzone != 2000 || !e.Invert {
		t.Errorf("0x03: parameters not preserved: %+v", e)
	}
}

// TestLoadMappingFile_FamilyOnly verifies a file that just selects a
// built-in family.
func TestLoadMappingFile_FamilyOnly(t *testing.T) {
	path := writeMapping(t, "family: xbox\n")

	table, err := LoadMappingFile(path)
	if err != nil {
		t.Fatalf("LoadMappingFile failed: %v", err)
	}
	if table.Family() != "xbox" {
		t.Errorf("expected built-in xbox table, got family %q", table.Family())
	}
	if _, ok := table.Lookup(btnSouth); !ok {
		t.Errorf("xbox table should map BTN_SOUTH")
	}
}

// TestLoadMappingFile_DuplicateCode verifies duplicate codes in YAML fail
// with a ConfigError.
func TestLoadMappingFile_DuplicateCode(t *testing.T) {
	path := writeMapping(t, `
controls:
  - {code: 0x130, name: A, kind: button}
  - {code: 0x130, name: B, kind: button}
`)

	_, err := LoadMappingFile(path)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConfigError for duplicate code, got %v", err)
	}
}

// TestLoadMappingFile_UnknownKind verifies unrecognized kinds are rejected
// rather than coerced.
func TestLoadMappingFile_UnknownKind(t *testing.T) {
	path := writeMapping(t, `
controls:
  - {code: 0x130, name: A, kind: trigger}
`)

	_, err := LoadMappingFile(path)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConfigError for unknown kind, got %v", err)
	}
}

// TestLoadMappingFile_AxisWithoutRange verifies axes must declare raw
// bounds.
func TestLoadMappingFile_AxisWithoutRange(t *testing.T) {
	path := writeMapping(t, `
controls:
  - {code: 0x03, name: LEFT_STICK_Y, kind: axis}
`)

	_, err := LoadMappingFile(path)
	var ce *ConfigError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *ConfigError for missing axis range, got %v", err)
	}
}

// TestLoadMappingFile_UnknownField verifies typos fail loudly instead of
// being dropped.
func TestLoadMappingFile_UnknownField(t *testing.T) {
	path := writeMapping(t, `
controls:
  - {code: 0x130, name: A, kind: button, dead_zone: 5}
`)

	if _, err := LoadMappingFile(path); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

// TestLoadMappingFile_TrailingDocument verifies extra YAML documents are
// rejected.
func TestLoadMappingFile_TrailingDocument(t *testing.T) {
	path := writeMapping(t, `
controls:
  - {code: 0x130, name: A, kind: button}
---
controls: []
`)

	if _, err := LoadMappingFile(path); err == nil {
		t.Fatal("expected error for trailing document, got nil")
	}
}

// TestLoadMappingFile_Missing verifies a helpful error for absent files.
func TestLoadMappingFile_Missing(t *testing.T) {
	if _, err := LoadMappingFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if _, err := LoadMappingFile(""); err == nil {
		t.Fatal("expected error for empty path, got nil")
	}
}

// TestLoadMappingFile_Sample keeps the shipped sample mapping loadable.
func TestLoadMappingFile_Sample(t *testing.T) {
	table, err := LoadMappingFile(filepath.Join("testdata", "8bitdo.yaml"))
	if err != nil {
		t.Fatalf("sample mapping failed to load: %v", err)
	}
	if table.Family() != "8bitdo-sn30pro" {
		t.Errorf("expected family 8bitdo-sn30pro, got %q", table.Family())
	}
	e, ok := table.Lookup(0x01)
	if !ok || e.Name != "LEFT_STICK_Y" || !e.Invert {
		t.Errorf("ABS_Y: expected inverted LEFT_STICK_Y, got ok=%v %+v", ok, e)
	}
}

// TestExpandPath verifies tilde expansion for the bare and prefixed forms
// and that everything else passes through untouched.
func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	if got := ExpandPath("~"); got != home {
		t.Errorf("ExpandPath(\"~\"): expected %q, got %q", home, got)
	}
	if got, want := ExpandPath("~/pads.yaml"), filepath.Join(home, "pads.yaml"); got != want {
		t.Errorf("ExpandPath(\"~/pads.yaml\"): expected %q, got %q", want, got)
	}
	for _, p := range []string{"/etc/btpad.yaml", "relative/pads.yaml", "a~b", "~user/pads.yaml", ""} {
		if got := ExpandPath(p); got != p {
			t.Errorf("ExpandPath(%q): expected passthrough, got %q", p, got)
		}
	}
}

// TestMappingConfig_Defaults verifies a zero config falls back to the
// default built-in family.
func TestMappingConfig_Defaults(t *testing.T) {
	table, err := MappingConfig{}.Table()
	if err != nil {
		t.Fatalf("empty config: %v", err)
	}
	if table.Family() != DefaultFamily {
		t.Errorf("expected default family %q, got %q", DefaultFamily, table.Family())
	}
}
