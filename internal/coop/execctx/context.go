// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package execctx implements the execution-context primitive used by the
// cooperative scheduler.
//
// A Context is the saved execution state of one logical thread. Each logical
// thread is hosted by its own goroutine; a Context that is not running is a
// goroutine parked on a one-slot wake channel. Switching from one Context to
// another posts a wake to the target and parks the caller, so at most one
// host goroutine is ever executing scheduler or user code.
//
// The three host capabilities map as follows:
//
//	capture(ctx)  -> the parking half of Swap
//	restore(ctx)  -> Restore (posts a wake, starting the host on first use)
//	make(ctx,...) -> Make (records entry and arguments, host starts lazily)
//
// Resumption is reported as a tagged Outcome rather than through a shared
// "already switched" flag:
//
//	out := execctx.Swap(cur, next, execctx.Resume(int(curID)))
//	switch out.Kind {
//	case execctx.Resumed:    // someone switched back into cur
//	case execctx.Terminated: // cur is being reclaimed, unwind now
//	}
package execctx

import (
	"sync/atomic"
)

// Kind tags how a parked Context was brought back to life.
type Kind uint8

const (
	// Resumed means another thread switched into this context; execution
	// continues after the capture point.
	Resumed Kind = iota + 1

	// Terminated means the context is being reclaimed. The host goroutine
	// must unwind without touching scheduler state.
	Terminated
)

// String returns a short name for the kind.
func (k Kind) String() string {
	switch k {
	case Resumed:
		return "resumed"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result delivered to a parked context.
type Outcome struct {
	Kind Kind

	// Value carries a small payload from the resumer, by convention the
	// identifier of the thread that performed the switch.
	Value int
}

// Resume builds a Resumed outcome carrying v.
func Resume(v int) Outcome {
	return Outcome{Kind: Resumed, Value: v}
}

// Terminate builds a Terminated outcome.
func Terminate() Outcome {
	return Outcome{Kind: Terminated}
}

// Entry is the function a fresh context starts executing, with two
// arguments (the scheduler passes the user function and its argument).
type Entry func(a1, a2 any)

// Context is a saved execution context.
//
// Thread Safety: a Context is owned by the scheduler. Only the goroutine
// hosting it parks on it; any goroutine may post to it.
type Context struct {
	wake chan Outcome

	entry  Entry
	a1, a2 any

	// started is set once the host goroutine exists.
	started atomic.Bool

	// done is closed when the host goroutine has fully unwound.
	// nil for adopted contexts whose goroutine we do not own.
	done chan struct{}
}

// Capture wraps the calling goroutine as a context. This is how the
// bootstrap thread is represented: it keeps running on the caller's stack.
//
// If done is non-nil, the caller promises to close it when its goroutine
// exits, which lets Release wait for the unwind to finish.
func Capture(done chan struct{}) *Context {
	c := &Context{
		wake: make(chan Outcome, 1),
		done: done,
	}
	c.started.Store(true)
	return c
}

// Make synthesizes a context that begins executing entry(a1, a2) on a fresh
// host goroutine the first time it is restored.
func Make(entry Entry, a1, a2 any) *Context {
	return &Context{
		wake:  make(chan Outcome, 1),
		entry: entry,
		a1:    a1,
		a2:    a2,
		done:  make(chan struct{}),
	}
}

// Started reports whether the host goroutine exists.
func (c *Context) Started() bool {
	return c.started.Load()
}

// Restore transfers control into c with the given outcome. It does not park
// the caller; callers that keep running afterwards break the one-runner
// rule, so the scheduler only uses it on paths that end in Park or unwind.
func Restore(c *Context, o Outcome) {
	if !c.started.Load() {
		if o.Kind == Terminated {
			// Never ran: nothing to unwind.
			c.started.Store(true)
			close(c.done)
			return
		}
		c.started.Store(true)
		go c.host()
		return
	}
	c.wake <- o
}

// Park blocks the calling goroutine until c is restored and returns the
// outcome it was restored with.
func (c *Context) Park() Outcome {
	return <-c.wake
}

// Swap saves the caller into from, transfers control to to, and returns once
// some other thread restores from. Swapping a context with itself performs a
// real round trip through the wake channel and returns immediately.
func Swap(from, to *Context, o Outcome) Outcome {
	Restore(to, o)
	return from.Park()
}

// Release reclaims a parked context: its host goroutine is told to unwind
// and, when the goroutine is owned by this package, awaited. Releasing a
// context that never started only marks it finished.
//
// Release must not be called on the running context.
func Release(c *Context) {
	Restore(c, Terminate())
	if c.done != nil {
		<-c.done
	}
}

// host is the body of every goroutine started by Make.
func (c *Context) host() {
	defer close(c.done)
	entry, a1, a2 := c.entry, c.a1, c.a2
	c.entry, c.a1, c.a2 = nil, nil, nil
	entry(a1, a2)
}
