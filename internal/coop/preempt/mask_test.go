// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package preempt

import (
	"context"
	"testing"
	"time"
)

func TestMaskNesting(t *testing.T) {
	var m Mask
	m.Enable()

	outer := m.Disable()
	if !outer {
		t.Fatal("outer Disable() prior = false, want true")
	}
	inner := m.Disable()
	if inner {
		t.Fatal("inner Disable() prior = true, want false")
	}

	m.Post()
	if m.Restore(inner) {
		t.Error("inner Restore() delivered a tick while still masked")
	}
	if m.Enabled() {
		t.Error("Enabled() = true after inner Restore, want false")
	}
	if !m.Restore(outer) {
		t.Error("outer Restore() = false, want pending tick delivered")
	}
	if m.Restore(true) {
		t.Error("Restore() delivered the same tick twice")
	}
}

func TestMaskTake(t *testing.T) {
	var m Mask
	m.Post()
	if m.Take() {
		t.Error("Take() = true while disabled, want false")
	}
	m.Enable() // consumes the pending tick
	m.Post()
	if !m.Take() {
		t.Error("Take() = false with tick pending and enabled")
	}
	if got := m.Ticks(); got != 2 {
		t.Errorf("Ticks() = %d, want 2", got)
	}
}

func TestTimerPostsTicks(t *testing.T) {
	var m Mask
	tm := StartTimer(context.Background(), &m, time.Millisecond)
	deadline := time.Now().Add(2 * time.Second)
	for m.Ticks() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	tm.Stop()
	tm.Stop()

	if m.Ticks() < 3 {
		t.Fatalf("Ticks() = %d after 2s, want >= 3", m.Ticks())
	}
	n := m.Ticks()
	time.Sleep(5 * time.Millisecond)
	if m.Ticks() != n {
		t.Errorf("timer kept ticking after Stop: %d -> %d", n, m.Ticks())
	}
}

func TestTimerDisabled(t *testing.T) {
	var m Mask
	tm := StartTimer(context.Background(), &m, 0)
	time.Sleep(2 * time.Millisecond)
	tm.Stop()
	if m.Ticks() != 0 {
		t.Errorf("Ticks() = %d with zero interval, want 0", m.Ticks())
	}
}
