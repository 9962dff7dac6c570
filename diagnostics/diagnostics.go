// Package diagnostics implements the engine's self-reporting: the
// rolling log buffer the `Log` reaction dumps back out through the HID
// keyboard sink, the reaction-table-driven text-to-keystroke converter
// that dump reuses, and per-tick profiling counters.
package diagnostics

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/czeppi/ergokb/keyboardcreator"
	"github.com/czeppi/ergokb/reactions"
	"github.com/czeppi/ergokb/vkey"
)

// Item is one tick's worth of activity worth remembering: the vkey
// events consumed, split by origin, and the reactions they produced.
type Item struct {
	TimeMs       int64
	LocalEvents  []vkey.Event
	RemoteEvents []vkey.Event
	ReactionCmds []reactions.Cmd
}

// Recorder keeps the last capacity Items, oldest evicted first.
type Recorder struct {
	capacity int
	items    []Item
}

// NewRecorder constructs a Recorder holding at most capacity Items.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 7
	}
	return &Recorder{capacity: capacity}
}

// Record appends one tick's activity, evicting the oldest entry once
// capacity is exceeded. A tick that produced nothing worth remembering
// (no events, no reactions) is not recorded.
func (r *Recorder) Record(item Item) {
	if len(item.LocalEvents) == 0 && len(item.RemoteEvents) == 0 && len(item.ReactionCmds) == 0 {
		return
	}
	r.items = append(r.items, item)
	if len(r.items) > r.capacity {
		r.items = r.items[len(r.items)-r.capacity:]
	}
}

// Items returns the currently retained history, oldest first.
func (r *Recorder) Items() []Item {
	return r.items
}

// Dump renders the retained history as text, one line per Item:
// "time: other=[...], self=[...] -> [+name, -name, ...]".
func Dump(items []Item, keyCodeMap map[vkey.KeyCode]string) string {
	var lines []string
	for _, it := range items {
		lines = append(lines, dumpItem(it, keyCodeMap))
	}
	return "\n" + strings.Join(lines, "\n") + "\n"
}

func dumpItem(it Item, keyCodeMap map[vkey.KeyCode]string) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%d: ", it.TimeMs))

	var vkeyParts []string
	if len(it.RemoteEvents) > 0 {
		vkeyParts = append(vkeyParts, "other="+eventsStr(it.RemoteEvents))
	}
	if len(it.LocalEvents) > 0 {
		vkeyParts = append(vkeyParts, "self="+eventsStr(it.LocalEvents))
	}
	parts = append(parts, strings.Join(vkeyParts, ", "))

	if len(it.ReactionCmds) > 0 {
		var reactionParts []string
		for _, cmd := range it.ReactionCmds {
			if s := reactionStr(cmd, keyCodeMap); s != "" {
				reactionParts = append(reactionParts, s)
			}
		}
		parts = append(parts, " -> ["+strings.Join(reactionParts, ", ")+"]")
	}
	return strings.Join(parts, "")
}

func eventsStr(events []vkey.Event) string {
	var parts []string
	for _, ev := range events {
		prefix := "-"
		if ev.Pressed {
			prefix = "+"
		}
		parts = append(parts, prefix+strings.ToLower(string(ev.VKey)))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func reactionStr(cmd reactions.Cmd, keyCodeMap map[vkey.KeyCode]string) string {
	keyCmd, ok := cmd.(reactions.Key)
	if !ok {
		return ""
	}
	kind := "?"
	switch keyCmd.Kind {
	case reactions.KeyPress:
		kind = "+"
	case reactions.KeyRelease:
		kind = "-"
	case reactions.KeySend:
		kind = "*"
	}
	name, ok := keyCodeMap[keyCmd.Code]
	if !ok {
		name = fmt.Sprintf("%d", keyCmd.Code)
	}
	return kind + name
}

// Typist converts plain text into Key Send sequences, reusing the layer
// grammar's reaction table so the same character-level keycode knowledge
// is not duplicated.
type Typist struct {
	table keyboardcreator.ReactionTable
}

// NewTypist constructs a Typist over a reaction table built by
// keyboardcreator.BuildReactionTable.
func NewTypist(table keyboardcreator.ReactionTable) *Typist {
	return &Typist{table: table}
}

// TypeText converts text into the command sequence that types it: '\n'
// becomes Enter (Send), unknown characters are silently skipped, and
// shifted/alt characters wrap the Send between the modifier's
// press/release.
func (t *Typist) TypeText(text string) []reactions.Cmd {
	var out []reactions.Cmd
	for _, ch := range text {
		out = append(out, t.convertChar(ch)...)
	}
	return out
}

func (t *Typist) convertChar(ch rune) []reactions.Cmd {
	if ch == '\n' {
		return []reactions.Cmd{reactions.Key{Kind: reactions.KeySend, Code: enterCode(t.table)}}
	}

	data, ok := t.table[string(ch)]
	if !ok {
		return nil
	}

	var out []reactions.Cmd
	if data.WithShift {
		out = append(out, reactions.Key{Kind: reactions.KeyPress, Code: shiftCode(t.table)})
	}
	if data.WithAlt {
		out = append(out, reactions.Key{Kind: reactions.KeyPress, Code: altCode(t.table)})
	}
	out = append(out, reactions.Key{Kind: reactions.KeySend, Code: data.Code})
	if data.WithAlt {
		out = append(out, reactions.Key{Kind: reactions.KeyRelease, Code: altCode(t.table)})
	}
	if data.WithShift {
		out = append(out, reactions.Key{Kind: reactions.KeyRelease, Code: shiftCode(t.table)})
	}
	return out
}

func enterCode(table keyboardcreator.ReactionTable) vkey.KeyCode { return table["Enter"].Code }
func shiftCode(table keyboardcreator.ReactionTable) vkey.KeyCode { return table["LShift"].Code }
func altCode(table keyboardcreator.ReactionTable) vkey.KeyCode   { return table["RAlt"].Code }

// TickStats keeps a rolling window of per-tick durations, surfaced as
// an average at Debug level every N ticks.
type TickStats struct {
	windowSize int
	samples    []int64
	tickCount  int
	logEvery   int
}

// NewTickStats constructs a TickStats with the given rolling-average
// window and a Debug-log cadence of logEvery ticks.
func NewTickStats(windowSize, logEvery int) *TickStats {
	if windowSize <= 0 {
		windowSize = 100
	}
	if logEvery <= 0 {
		logEvery = 500
	}
	return &TickStats{windowSize: windowSize, logEvery: logEvery}
}

// Record adds one tick's duration (microseconds) to the rolling window
// and logs the current average every logEvery ticks.
func (s *TickStats) Record(durationUs int64) {
	s.samples = append(s.samples, durationUs)
	if len(s.samples) > s.windowSize {
		s.samples = s.samples[len(s.samples)-s.windowSize:]
	}
	s.tickCount++

	if s.tickCount%s.logEvery == 0 {
		log.Debugf("diagnostics: tick %d, avg tick duration over last %d ticks: %dus", s.tickCount, len(s.samples), s.average())
	}
}

func (s *TickStats) average() int64 {
	if len(s.samples) == 0 {
		return 0
	}
	var sum int64
	for _, v := range s.samples {
		sum += v
	}
	return sum / int64(len(s.samples))
}
