// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"github.com/kolkov/coopthread/internal/coop/execctx"
	"github.com/kolkov/coopthread/internal/coop/stack"
)

// State is the lifecycle state of a thread.
type State uint8

const (
	// StateReady: created or preempted, waiting in the Ready Queue.
	StateReady State = iota
	// StateRunning: the current thread.
	StateRunning
	// StateBlocked: sleeping in a wait queue.
	StateBlocked
	// StateExited: terminated, identifier released, awaiting reaping.
	StateExited
	// StateReaped: resources released. Terminal.
	StateReaped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateBlocked:
		return "blocked"
	case StateExited:
		return "exited"
	case StateReaped:
		return "reaped"
	default:
		return "unknown"
	}
}

// TCB is the thread control block: the runtime's record for one logical
// thread.
//
// Ownership: the registry owns the TCB, its stack and its context until the
// TCB is reaped. Queues hold non-owning links.
type TCB struct {
	id    Tid
	ctx   *execctx.Context
	stk   *stack.Stack // nil for the bootstrap thread
	state State

	// where is the queue this TCB is linked into, nil while running.
	where      *queue
	prev, next *TCB

	// joiners is the implicit queue used by Wait on this thread.
	joiners *WaitQueue

	// condemned marks a blocked thread that was killed. The next time it
	// is scheduled, the common resume path sends it into exit.
	condemned bool

	// origin is the creation-site hash in the runtime's stack depot.
	origin uint64

	// gid is the hosting goroutine ID, recorded only in strict mode.
	gid int64
}

// location returns where the TCB is and, for Blocked, the wait queue ID.
func (t *TCB) location() (Kind, uint64) {
	if t.where == nil {
		if t.state == StateExited || t.state == StateReaped {
			return Zombie, 0
		}
		return Running, 0
	}
	return t.where.kind, t.where.id
}

// ThreadInfo is a read-only snapshot of one thread for diagnostics.
type ThreadInfo struct {
	ID        Tid
	State     State
	Location  Kind
	QueueID   uint64 // set when Location is Blocked
	Condemned bool
	Bootstrap bool
	Origin    uint64
}

func (t *TCB) info() ThreadInfo {
	loc, qid := t.location()
	return ThreadInfo{
		ID:        t.id,
		State:     t.state,
		Location:  loc,
		QueueID:   qid,
		Condemned: t.condemned,
		Bootstrap: t.stk == nil,
		Origin:    t.origin,
	}
}
