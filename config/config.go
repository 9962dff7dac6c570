// Package config decodes the construction-time configuration: the
// per-half key-group switch tables, the virtual-key layout, the layer
// reaction rows, the modifier map and the macro name list, plus the two
// tunable timing parameters (combo term, tap-hold term).
//
// All of it is immutable after Load; the running pipeline never touches
// the file again.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is resolved relative to the user's home directory
// when no -c flag is given.
const DefaultConfigFile = ".config/ergokb/config.yaml"

// GroupDef is one finger's combo-resolver table: a virtual key serial
// mapped to the physical switches that form its chord within the group.
type GroupDef struct {
	Switches map[string][]string `yaml:"switches"`
}

// Half is one side's device list plus its key-group layout. The left
// half runs the virtual keyboard and drains the right half's events
// through the inter-half link, so only it carries the rotary device.
type Half struct {
	Devices []string            `yaml:"devices"`
	Groups  map[string]GroupDef `yaml:"groups"`

	// GroupOrder fixes the deterministic fan-out order halfresolver
	// requires; Go map iteration over Groups is not ordered, so the
	// YAML must spell it out explicitly.
	GroupOrder []string `yaml:"group_order"`

	// KeyCodes maps a physical key serial to the evdev keycode the
	// EvdevSource adapter reads it as. The adapter reuses a standard
	// keyboard's own switch matrix in place of a GPIO scan.
	KeyCodes map[string]uint16 `yaml:"key_codes"`

	// RotaryDevice, if set, names the evdev device node the rotary
	// encoder is read from; left half only.
	RotaryDevice string `yaml:"rotary_device,omitempty"`
}

// Layout carries the static tables the keyboardcreator builds the
// virtual-key universe and layer maps from.
type Layout struct {
	// VirtualKeyOrder is the 2-D layout table (row-major) whose cells
	// reference virtual-key serials; layer rows are parsed against it.
	VirtualKeyOrder [][]string `yaml:"virtual_key_order"`

	// Layers maps a LayerKey serial (or "" for the default layer) to
	// its whitespace-separated reaction rows.
	Layers map[string][]string `yaml:"layers"`

	// Modifiers maps a VirtualKey serial to a modifier name ("LShift",
	// "LCtrl", ...).
	Modifiers map[string]string `yaml:"modifiers"`

	// Macros maps a macro name ("M0".."M9") to a textual description.
	// Macro expansion is not implemented; binding a macro to a key is
	// rejected at construction.
	Macros map[string]string `yaml:"macros"`
}

// Config is the full decoded configuration for one run of the firmware.
type Config struct {
	ComboTermMs   int64 `yaml:"combo_term_ms"`
	TapHoldTermMs int64 `yaml:"tap_hold_term_ms"`

	Left  Half `yaml:"left"`
	Right Half `yaml:"right"`

	Layout Layout `yaml:"layout"`
}

// Load reads and decodes a YAML configuration file. A malformed or
// missing file is fatal; the error is returned rather than panicking,
// so main can log and exit cleanly.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}
