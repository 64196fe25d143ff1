// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

// registry is the identifier table: slot i holds the TCB owning Tid i, or
// nil. An identifier is live iff its slot is non-nil.
//
// Identifiers are handed out lowest-free-first so that a freed identifier is
// the next one reissued, which keeps Tids small and predictable. A slot is
// cleared when its thread terminates; the scheduler reaps zombies before
// scanning, so a cleared slot is only reissued after its previous owner is
// fully reclaimed.
type registry struct {
	slots []*TCB
	live  int
}

func newRegistry(max int) *registry {
	return &registry{slots: make([]*TCB, max)}
}

// lowestFree returns the lowest empty slot, or false when exhausted.
func (g *registry) lowestFree() (Tid, bool) {
	if g.live == len(g.slots) {
		return NoThread, false
	}
	for i, t := range g.slots {
		if t == nil {
			return Tid(i), true
		}
	}
	return NoThread, false
}

func (g *registry) inRange(id Tid) bool {
	return id >= 0 && int(id) < len(g.slots)
}

func (g *registry) get(id Tid) *TCB {
	if !g.inRange(id) {
		return nil
	}
	return g.slots[id]
}

func (g *registry) set(t *TCB) {
	if g.slots[t.id] != nil {
		panic("coopthread: identifier " + t.id.String() + " already live")
	}
	g.slots[t.id] = t
	g.live++
}

func (g *registry) clear(id Tid) {
	if g.slots[id] == nil {
		return
	}
	g.slots[id] = nil
	g.live--
}

func (g *registry) each(fn func(*TCB)) {
	for _, t := range g.slots {
		if t != nil {
			fn(t)
		}
	}
}
