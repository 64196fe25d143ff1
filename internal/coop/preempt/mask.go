// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package preempt implements the preemption mask and the simulated timer
// that drives forced yields.
//
// Go cannot interrupt a goroutine at an arbitrary instruction, so the timer
// never switches threads itself. It only marks a tick pending. The pending
// tick is delivered by the scheduler at the next safe point: when the
// outermost critical section re-enables delivery, or at an explicit Poll.
//
// Masking is nestable through the prior-state token:
//
//	prior := m.Disable()
//	// ... mutate scheduler state ...
//	if m.Restore(prior) {
//		// a tick arrived while masked and delivery is enabled again
//	}
package preempt

import "sync/atomic"

// Mask suppresses delivery of simulated timer ticks.
//
// The zero value is a mask with delivery disabled and nothing pending.
//
// Thread Safety: all fields are atomics; the timer goroutine calls Post
// concurrently with the running thread.
type Mask struct {
	enabled atomic.Bool
	pending atomic.Bool
	ticks   atomic.Uint64
}

// Disable turns delivery off and returns the previous state.
func (m *Mask) Disable() bool {
	return m.enabled.Swap(false)
}

// Enable turns delivery on and reports whether a pending tick should be
// delivered now. Equivalent to Restore(true).
func (m *Mask) Enable() bool {
	return m.Restore(true)
}

// Restore sets the delivery state back to prior. It reports true, and
// consumes the pending tick, only when delivery ends up enabled and a tick
// arrived in the meantime.
func (m *Mask) Restore(prior bool) bool {
	m.enabled.Store(prior)
	if !prior {
		return false
	}
	return m.pending.CompareAndSwap(true, false)
}

// Enabled reports whether delivery is currently enabled.
func (m *Mask) Enabled() bool {
	return m.enabled.Load()
}

// Post marks a tick pending. Called from the timer goroutine.
func (m *Mask) Post() {
	m.ticks.Add(1)
	m.pending.Store(true)
}

// Take consumes a pending tick if delivery is enabled.
func (m *Mask) Take() bool {
	if !m.enabled.Load() {
		return false
	}
	return m.pending.CompareAndSwap(true, false)
}

// Ticks returns the number of ticks posted since creation.
func (m *Mask) Ticks() uint64 {
	return m.ticks.Load()
}
