// Package halfresolver implements the thin per-half multiplexer: it owns
// an ordered list of disjoint keygroup.Groups and fans one physical-key
// snapshot out across them.
package halfresolver

import (
	"fmt"

	"github.com/czeppi/ergokb/keygroup"
	"github.com/czeppi/ergokb/vkey"
)

// Resolver owns an ordered list of KeyGroups with disjoint switch
// ownership. It holds no timing state of its own; each Group tracks its
// own pending/committed state.
type Resolver struct {
	groups []*keygroup.Group
}

// New validates that the groups' switch sets are pairwise disjoint (a
// physical switch claimed by two groups is a configuration error: it would
// make fan-out ambiguous) and returns a Resolver that forwards to them in
// the given order.
func New(groups []*keygroup.Group) (*Resolver, error) {
	owner := map[vkey.PhysicalKeySerial]keygroup.Serial{}
	for _, g := range groups {
		for pkey := range g.Switches() {
			if prev, ok := owner[pkey]; ok {
				return nil, fmt.Errorf("halfresolver: physical switch %s claimed by both group %s and group %s", pkey, prev, g.Serial())
			}
			owner[pkey] = g.Serial()
		}
	}
	return &Resolver{groups: groups}, nil
}

// Update slices pressed, the set of currently pressed physical switches on
// this half, by group ownership and forwards each slice to its Group. The
// returned events are the concatenation of each group's output, in the
// Resolver's construction order, so fan-out stays deterministic.
func (r *Resolver) Update(now int64, pressed map[vkey.PhysicalKeySerial]struct{}) []keygroup.Event {
	var events []keygroup.Event
	for _, g := range r.groups {
		slice := sliceFor(g, pressed)
		events = append(events, g.Update(now, slice)...)
	}
	return events
}

func sliceFor(g *keygroup.Group, pressed map[vkey.PhysicalKeySerial]struct{}) map[vkey.PhysicalKeySerial]struct{} {
	owned := g.Switches()
	slice := make(map[vkey.PhysicalKeySerial]struct{}, len(owned))
	for pkey := range owned {
		if _, ok := pressed[pkey]; ok {
			slice[pkey] = struct{}{}
		}
	}
	return slice
}
