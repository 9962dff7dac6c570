// Package keyboardcreator builds the layer maps and the vkey.Def
// universe from the decoded configuration: the virtual-key layout, the
// per-layer reaction rows, the modifier map and the macro name list,
// plus the reaction-name grammar those rows are written in. Keycodes
// come from golang-evdev's KEY_* constants; the reaction table targets
// a German (QWERTZ) host keymap.
package keyboardcreator

import (
	"fmt"
	"strings"

	evdev "github.com/gvalkov/golang-evdev"

	"github.com/czeppi/ergokb/config"
	"github.com/czeppi/ergokb/reactions"
	"github.com/czeppi/ergokb/vkey"
)

// noKey is the sentinel serial naming the default layer, spelled "" in
// the YAML layout exactly as vkey.NoKey is "".
const noKey = ""

// ReactionData describes one entry of the reaction table: the keycode a
// literal reaction name resolves to, and whether it needs Shift or Alt
// held alongside it.
type ReactionData struct {
	Code      vkey.KeyCode
	WithShift bool
	WithAlt   bool
	Name      string
}

// ReactionTable maps a reaction name ("a", "$", "F1", ...) to its keycode
// data. Built once by BuildReactionTable and shared by layer parsing
// (this package) and diagnostics.Typist's text-to-keystroke conversion.
type ReactionTable map[string]ReactionData

// keycodeRow is one keycode plus the reaction names it produces
// unshifted / shifted / with Alt (an empty name means "not applicable").
type keycodeRow struct {
	code              vkey.KeyCode
	withoutShift      string
	withShift         string
	deWithoutShift    string
	deWithShift       string
	deWithAlt         string // only set on rows with a 6th column
}

// keycodesData lists both the US ("withoutShift"/"withShift") and German
// ("de*") reaction names per keycode. Only the German columns are
// consulted by BuildReactionTable; the US columns document what the same
// physical key produces under a US keymap.
var keycodesData = []keycodeRow{
	{code: evdev.KEY_ESC, withoutShift: "Esc", deWithoutShift: "Esc"},
	{code: evdev.KEY_F1, withoutShift: "F1", deWithoutShift: "F1"},
	{code: evdev.KEY_F2, withoutShift: "F2", deWithoutShift: "F2"},
	{code: evdev.KEY_F3, withoutShift: "F3", deWithoutShift: "F3"},
	{code: evdev.KEY_F4, withoutShift: "F4", deWithoutShift: "F4"},
	{code: evdev.KEY_F5, withoutShift: "F5", deWithoutShift: "F5"},
	{code: evdev.KEY_F6, withoutShift: "F6", deWithoutShift: "F6"},
	{code: evdev.KEY_F7, withoutShift: "F7", deWithoutShift: "F7"},
	{code: evdev.KEY_F8, withoutShift: "F8", deWithoutShift: "F8"},
	{code: evdev.KEY_F9, withoutShift: "F9", deWithoutShift: "F9"},
	{code: evdev.KEY_F10, withoutShift: "F10", deWithoutShift: "F10"},
	{code: evdev.KEY_F11, withoutShift: "F11", deWithoutShift: "F11"},
	{code: evdev.KEY_F12, withoutShift: "F12", deWithoutShift: "F12"},

	{code: evdev.KEY_GRAVE, withoutShift: "`", withShift: "~", deWithoutShift: "^", deWithShift: "°"},
	{code: evdev.KEY_1, withoutShift: "1", withShift: "!", deWithoutShift: "1", deWithShift: "!"},
	{code: evdev.KEY_2, withoutShift: "2", withShift: "@", deWithoutShift: "2", deWithShift: "\""},
	{code: evdev.KEY_3, withoutShift: "3", withShift: "#", deWithoutShift: "3", deWithShift: "§"},
	{code: evdev.KEY_4, withoutShift: "4", withShift: "$", deWithoutShift: "4", deWithShift: "$"},
	{code: evdev.KEY_5, withoutShift: "5", withShift: "%", deWithoutShift: "5", deWithShift: "%"},
	{code: evdev.KEY_6, withoutShift: "6", withShift: "^", deWithoutShift: "6", deWithShift: "&"},
	{code: evdev.KEY_7, withoutShift: "7", withShift: "&", deWithoutShift: "7", deWithShift: "/", deWithAlt: "{"},
	{code: evdev.KEY_8, withoutShift: "8", withShift: "*", deWithoutShift: "8", deWithShift: "(", deWithAlt: "["},
	{code: evdev.KEY_9, withoutShift: "9", withShift: "(", deWithoutShift: "9", deWithShift: ")", deWithAlt: "]"},
	{code: evdev.KEY_0, withoutShift: "0", withShift: ")", deWithoutShift: "0", deWithShift: "=", deWithAlt: "}"},
	{code: evdev.KEY_MINUS, withoutShift: "-", withShift: "_", deWithoutShift: "ß", deWithShift: "?", deWithAlt: "\\"},
	{code: evdev.KEY_EQUAL, withoutShift: "=", withShift: "+", deWithoutShift: "´", deWithShift: "`"},
	{code: evdev.KEY_BACKSPACE, withoutShift: "Backspace", deWithoutShift: "Backspace"},

	{code: evdev.KEY_TAB, withoutShift: "Tab", withShift: "BackTab", deWithoutShift: "Tab", deWithShift: "BackTab"},
	{code: evdev.KEY_LEFTBRACE, withoutShift: "[", withShift: "{", deWithoutShift: "ü", deWithShift: "Ü"},
	{code: evdev.KEY_RIGHTBRACE, withoutShift: "]", withShift: "}", deWithoutShift: "+", deWithShift: "*", deWithAlt: "~"},
	{code: evdev.KEY_ENTER, withoutShift: "Enter", deWithoutShift: "Enter"},

	{code: evdev.KEY_CAPSLOCK, withoutShift: "CapsLock", deWithoutShift: "CapsLock"},
	{code: evdev.KEY_SEMICOLON, withoutShift: ";", withShift: ":", deWithoutShift: "ö", deWithShift: "Ö"},
	{code: evdev.KEY_APOSTROPHE, withoutShift: "'", withShift: "\"", deWithoutShift: "ä", deWithShift: "Ä"},
	{code: evdev.KEY_BACKSLASH, withoutShift: "#", withShift: "~", deWithoutShift: "#", deWithShift: "'"},

	{code: evdev.KEY_LEFTSHIFT, withoutShift: "LShift", deWithoutShift: "LShift"},
	{code: evdev.KEY_102ND, withoutShift: "\\", withShift: "|", deWithoutShift: "<", deWithShift: ">", deWithAlt: "|"},
	{code: evdev.KEY_COMMA, withoutShift: ",", withShift: "<", deWithoutShift: ",", deWithShift: ";"},
	{code: evdev.KEY_DOT, withoutShift: ".", withShift: ">", deWithoutShift: ".", deWithShift: ":"},
	{code: evdev.KEY_SLASH, withoutShift: "/", withShift: "?", deWithoutShift: "-", deWithShift: "_"},
	{code: evdev.KEY_RIGHTSHIFT, withoutShift: "RShift", deWithoutShift: "RShift"},

	{code: evdev.KEY_LEFTCTRL, withoutShift: "LCtrl", deWithoutShift: "LCtrl"},
	{code: evdev.KEY_LEFTMETA, withoutShift: "LGui", deWithoutShift: "LGui"},
	{code: evdev.KEY_LEFTALT, withoutShift: "LAlt", deWithoutShift: "LAlt"},
	{code: evdev.KEY_SPACE, withoutShift: "Space", deWithoutShift: "Space"},
	{code: evdev.KEY_RIGHTALT, withoutShift: "RAlt", deWithoutShift: "RAlt"},
	{code: evdev.KEY_RIGHTMETA, withoutShift: "RGui", deWithoutShift: "RGui"},
	{code: evdev.KEY_COMPOSE, withoutShift: "Menu", deWithoutShift: "Menu"},

	{code: evdev.KEY_INSERT, withoutShift: "Insert", deWithoutShift: "Insert"},
	{code: evdev.KEY_HOME, withoutShift: "Home", deWithoutShift: "Home"},
	{code: evdev.KEY_PAGEUP, withoutShift: "PageUp", deWithoutShift: "PageUp"},

	{code: evdev.KEY_DELETE, withoutShift: "Del", deWithoutShift: "Del"},
	{code: evdev.KEY_END, withoutShift: "End", deWithoutShift: "End"},
	{code: evdev.KEY_PAGEDOWN, withoutShift: "PageDown", deWithoutShift: "PageDown"},

	{code: evdev.KEY_UP, withoutShift: "Up", deWithoutShift: "Up"},

	{code: evdev.KEY_LEFT, withoutShift: "Left", deWithoutShift: "Left"},
	{code: evdev.KEY_DOWN, withoutShift: "Down", deWithoutShift: "Down"},
	{code: evdev.KEY_RIGHT, withoutShift: "Right", deWithoutShift: "Right"},

	{code: evdev.KEY_NUMLOCK, withoutShift: "KpNumLock", deWithoutShift: "KpNumLock"},
	{code: evdev.KEY_KPSLASH, withoutShift: "Kp/", deWithoutShift: "Kp/"},
	{code: evdev.KEY_KPASTERISK, withoutShift: "Kp*", deWithoutShift: "Kp*"},
	{code: evdev.KEY_KPMINUS, withoutShift: "Kp-", deWithoutShift: "Kp-"},

	{code: evdev.KEY_KP7, withoutShift: "Kp7", deWithoutShift: "Kp7"},
	{code: evdev.KEY_KP8, withoutShift: "Kp8", deWithoutShift: "Kp8"},
	{code: evdev.KEY_KP9, withoutShift: "Kp9", deWithoutShift: "Kp9"},
	{code: evdev.KEY_KPPLUS, withoutShift: "Kp+", deWithoutShift: "Kp+"},

	{code: evdev.KEY_KP4, withoutShift: "Kp4", deWithoutShift: "Kp4"},
	{code: evdev.KEY_KP5, withoutShift: "Kp5", deWithoutShift: "Kp5"},
	{code: evdev.KEY_KP6, withoutShift: "Kp6", deWithoutShift: "Kp6"},

	{code: evdev.KEY_KP1, withoutShift: "Kp1", deWithoutShift: "Kp1"},
	{code: evdev.KEY_KP2, withoutShift: "Kp2", deWithoutShift: "Kp2"},
	{code: evdev.KEY_KP3, withoutShift: "Kp3", deWithoutShift: "Kp3"},
	{code: evdev.KEY_KPENTER, withoutShift: "KpEnter", deWithoutShift: "KpEnter"},

	{code: evdev.KEY_KP0, withoutShift: "Kp0", withShift: "KpInsert", deWithoutShift: "Kp0", deWithShift: "KpInsert"},
	{code: evdev.KEY_KPDOT, withoutShift: "Kp.", withShift: "KpDel", deWithShift: "KpDel"},
}

var modKeyCodeMap = map[string]vkey.KeyCode{
	"LShift": evdev.KEY_LEFTSHIFT,
	"LCtrl":  evdev.KEY_LEFTCTRL,
	"LAlt":   evdev.KEY_LEFTALT,
	"LGui":   evdev.KEY_LEFTMETA,
	"RShift": evdev.KEY_RIGHTSHIFT,
	"RCtrl":  evdev.KEY_RIGHTCTRL,
	"RAlt":   evdev.KEY_RIGHTALT,
	"RGui":   evdev.KEY_RIGHTMETA,
}

// BuildReactionTable constructs the full name->keycode reaction table:
// the German-column keycodesData rows plus the a-z loop with the y/z
// swap a German keymap needs.
func BuildReactionTable() ReactionTable {
	table := ReactionTable{}
	for _, row := range keycodesData {
		if row.deWithoutShift != "" {
			table[row.deWithoutShift] = ReactionData{Code: row.code, Name: row.deWithoutShift}
		}
		if row.deWithShift != "" {
			table[row.deWithShift] = ReactionData{Code: row.code, WithShift: true, Name: row.deWithShift}
		}
		if row.deWithAlt != "" {
			table[row.deWithAlt] = ReactionData{Code: row.code, WithAlt: true, Name: row.deWithAlt}
		}
	}

	// evdev letter codes follow the physical QWERTY rows, not the
	// alphabet, so each letter is looked up rather than offset from KEY_A.
	letterCodes := [26]vkey.KeyCode{
		evdev.KEY_A, evdev.KEY_B, evdev.KEY_C, evdev.KEY_D, evdev.KEY_E, evdev.KEY_F, evdev.KEY_G,
		evdev.KEY_H, evdev.KEY_I, evdev.KEY_J, evdev.KEY_K, evdev.KEY_L, evdev.KEY_M, evdev.KEY_N,
		evdev.KEY_O, evdev.KEY_P, evdev.KEY_Q, evdev.KEY_R, evdev.KEY_S, evdev.KEY_T, evdev.KEY_U,
		evdev.KEY_V, evdev.KEY_W, evdev.KEY_X, evdev.KEY_Y, evdev.KEY_Z,
	}
	for i := 0; i < 26; i++ {
		code := letterCodes[i]
		enLower := string(rune('a' + i))
		enUpper := string(rune('A' + i))

		deLower, deUpper := enLower, enUpper
		switch enLower {
		case "y":
			deLower, deUpper = "z", "Z"
		case "z":
			deLower, deUpper = "y", "Y"
		}

		table[deLower] = ReactionData{Code: code, Name: deLower}
		table[deUpper] = ReactionData{Code: code, WithShift: true, Name: deUpper}

		if deLower == "q" {
			table["@"] = ReactionData{Code: code, WithAlt: true, Name: "@"}
		}
	}

	return table
}

// KeyCodeMap returns, for each reaction table entry that needs neither
// Shift nor Alt, the keycode -> name it came from, used by
// diagnostics.Dump to render a human-readable log dump.
func KeyCodeMap(table ReactionTable) map[vkey.KeyCode]string {
	m := map[vkey.KeyCode]string{}
	for name, data := range table {
		if !data.WithShift && !data.WithAlt {
			m[data.Code] = name
		}
	}
	return m
}

// Result is everything keyboardcreator.Build hands back to main: the full
// virtual-key universe, the per-LayerKey layer it activates, the default
// layer, and the reaction table (shared by diagnostics.Typist).
type Result struct {
	Keys          []vkey.Def
	LayerOf       map[vkey.Serial]reactions.Layer
	DefaultLayer  reactions.Layer
	ReactionTable ReactionTable
}

// Build partitions the layout's virtual-key universe into Simple/Mod/
// Layer keys by cross-referencing the modifier and layer tables, parses
// every layer's reaction rows, and rejects malformed configuration
// (row-length mismatch, unknown reaction name, a macro actually bound
// to a key) deterministically before anything starts running.
func Build(layout config.Layout) (Result, error) {
	table := BuildReactionTable()

	allSerials := map[vkey.Serial]struct{}{}
	for _, row := range layout.VirtualKeyOrder {
		for _, s := range row {
			allSerials[vkey.Serial(s)] = struct{}{}
		}
	}

	for macroName := range layout.Macros {
		if !isMacroName(macroName) {
			return Result{}, fmt.Errorf("keyboardcreator: malformed macro name %q, expected M0..M9", macroName)
		}
	}

	defaultRows, ok := layout.Layers[noKey]
	if !ok {
		return Result{}, fmt.Errorf("keyboardcreator: LAYERS has no entry for the default layer (no-key sentinel)")
	}
	defaultLayer, err := buildLayer(layout.VirtualKeyOrder, defaultRows, table, layout.Macros)
	if err != nil {
		return Result{}, fmt.Errorf("keyboardcreator: default layer: %w", err)
	}

	var keys []vkey.Def
	layerOf := map[vkey.Serial]reactions.Layer{}

	for serial := range allSerials {
		name := string(serial)
		if modName, isMod := layout.Modifiers[name]; isMod {
			code, ok := modKeyCodeMap[modName]
			if !ok {
				return Result{}, fmt.Errorf("keyboardcreator: virtual key %s: unknown modifier name %q", serial, modName)
			}
			keys = append(keys, vkey.Def{Serial: serial, Kind: vkey.KindMod, ModKeyCode: code})
			continue
		}
		if rows, isLayer := layout.Layers[name]; isLayer && name != noKey {
			layer, err := buildLayer(layout.VirtualKeyOrder, rows, table, layout.Macros)
			if err != nil {
				return Result{}, fmt.Errorf("keyboardcreator: layer %s: %w", serial, err)
			}
			layerOf[serial] = layer
			keys = append(keys, vkey.Def{Serial: serial, Kind: vkey.KindLayer, LayerName: name})
			continue
		}
		keys = append(keys, vkey.Def{Serial: serial, Kind: vkey.KindSimple})
	}

	return Result{
		Keys:          keys,
		LayerOf:       layerOf,
		DefaultLayer:  defaultLayer,
		ReactionTable: table,
	}, nil
}

func isMacroName(name string) bool {
	if len(name) != 2 || name[0] != 'M' {
		return false
	}
	return name[1] >= '0' && name[1] <= '9'
}

// buildLayer parses one layer's rows: every row must tokenize to exactly
// as many reaction names as its virtualKeyOrder row has cells.
func buildLayer(virtualKeyOrder [][]string, rows []string, table ReactionTable, macros map[string]string) (reactions.Layer, error) {
	if len(rows) != len(virtualKeyOrder) {
		return nil, fmt.Errorf("layer has %d rows, expected %d (matching VIRTUAL_KEY_ORDER)", len(rows), len(virtualKeyOrder))
	}

	layer := reactions.Layer{}
	for rowIdx, row := range rows {
		items := strings.Fields(row)
		orderRow := virtualKeyOrder[rowIdx]
		if len(items) != len(orderRow) {
			return nil, fmt.Errorf("row %d has %d reaction names, expected %d (matching VIRTUAL_KEY_ORDER row)", rowIdx, len(items), len(orderRow))
		}

		for i, item := range items {
			oneKey, err := createReaction(item, table, macros)
			if err != nil {
				return nil, fmt.Errorf("cell %q: %w", item, err)
			}
			if oneKey == nil {
				continue
			}
			layer[vkey.Serial(orderRow[i])] = *oneKey
		}
	}
	return layer, nil
}

// createReaction resolves one layer cell to its press/release command
// sequences.
func createReaction(name string, table ReactionTable, macros map[string]string) (*reactions.OneKeyReactions, error) {
	switch {
	case name == "·":
		return nil, nil
	case name == "Log":
		return &reactions.OneKeyReactions{OnPress: []reactions.Cmd{reactions.Log{}}}, nil
	case name == "MouseLeft":
		return &reactions.OneKeyReactions{
			OnPress:   []reactions.Cmd{reactions.MouseButton{Button: 0, Kind: reactions.MousePress}},
			OnRelease: []reactions.Cmd{reactions.MouseButton{Button: 0, Kind: reactions.MouseRelease}},
		}, nil
	case name == "MouseRight":
		return &reactions.OneKeyReactions{
			OnPress:   []reactions.Cmd{reactions.MouseButton{Button: 1, Kind: reactions.MousePress}},
			OnRelease: []reactions.Cmd{reactions.MouseButton{Button: 1, Kind: reactions.MouseRelease}},
		}, nil
	case name == "MouseWheelUp":
		return &reactions.OneKeyReactions{OnPress: []reactions.Cmd{reactions.MouseWheel{Offset: 1}}}, nil
	case name == "MouseWheelDown":
		return &reactions.OneKeyReactions{OnPress: []reactions.Cmd{reactions.MouseWheel{Offset: -1}}}, nil
	}

	if _, isMacro := macros[name]; isMacro {
		// Macro expansion is unimplemented; a macro actually bound to
		// a key is a configuration error rather than a silent no-op.
		return nil, fmt.Errorf("macro %q is referenced by a layer cell, but macro expansion is unimplemented", name)
	}

	data, ok := table[name]
	if !ok {
		return nil, fmt.Errorf("unknown reaction name %q", name)
	}

	press := reactions.Key{Kind: reactions.KeyPress, Code: data.Code}
	release := reactions.Key{Kind: reactions.KeyRelease, Code: data.Code}

	switch {
	case data.WithShift:
		shiftPress := reactions.Key{Kind: reactions.KeyPress, Code: evdev.KEY_LEFTSHIFT}
		shiftRelease := reactions.Key{Kind: reactions.KeyRelease, Code: evdev.KEY_LEFTSHIFT}
		return &reactions.OneKeyReactions{
			OnPress:   []reactions.Cmd{shiftPress, press},
			OnRelease: []reactions.Cmd{release, shiftRelease},
		}, nil
	case data.WithAlt:
		altPress := reactions.Key{Kind: reactions.KeyPress, Code: evdev.KEY_RIGHTALT}
		altRelease := reactions.Key{Kind: reactions.KeyRelease, Code: evdev.KEY_RIGHTALT}
		return &reactions.OneKeyReactions{
			OnPress:   []reactions.Cmd{altPress, press},
			OnRelease: []reactions.Cmd{release, altRelease},
		}, nil
	default:
		return &reactions.OneKeyReactions{
			OnPress:   []reactions.Cmd{press},
			OnRelease: []reactions.Cmd{release},
		}, nil
	}
}
