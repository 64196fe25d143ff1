// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"runtime"

	"github.com/kolkov/coopthread/internal/coop/execctx"
)

// Create starts a new thread running fn(arg). The thread is appended to the
// Ready Queue; it first runs when scheduled. When fn returns the thread
// exits.
//
// Errors:
//   - ErrInvalid: fn is nil
//   - ErrNoMore: every identifier slot is live
//   - ErrNoMemory: the stack reservation exceeds the memory limit
//
// On error no identifier, stack or queue entry is left behind.
func (r *Runtime) Create(fn func(arg any), arg any) (Tid, error) {
	cur, prior := r.enter("create")
	defer r.leave(cur, prior)

	if fn == nil {
		return NoThread, opError("create", NoThread, ErrInvalid)
	}
	r.reap()

	id, ok := r.reg.lowestFree()
	if !ok {
		return NoThread, opError("create", NoThread, ErrNoMore)
	}
	stk, err := r.stacks.Alloc()
	if err != nil {
		return NoThread, opError("create", NoThread, ErrNoMemory)
	}

	t := &TCB{
		id:     id,
		stk:    stk,
		state:  StateReady,
		origin: r.depot.Capture(1),
	}
	t.joiners = r.NewWaitQueue()
	t.ctx = execctx.Make(r.stub, fn, arg)

	r.reg.set(t)
	r.ready.pushBack(t)
	r.stats.Created++
	r.metrics.created.Inc()
	r.observe()
	r.log.Debug("thread created", "tid", cur.id, "new", id, "ready", r.ready.len())
	return id, nil
}

// stub is the entry of every created thread: enable delivery, run the user
// function, exit.
func (r *Runtime) stub(a1, a2 any) {
	fn := a1.(func(any))
	if r.cfg.Strict {
		r.cur.gid = currentGID()
	}
	r.leave(r.cur, true)
	fn(a2)
	r.Exit()
}

// Yield gives up the processor.
//
//   - Any: run the head of the Ready Queue; the caller goes to its tail.
//     ErrNone if the Ready Queue is empty.
//   - Self or the caller's own id: round trip through the context primitive
//     and keep running.
//   - a specific id: run that thread next. ErrInvalid unless it is live,
//     in the Ready Queue and not killed. A thread killed while blocked
//     keeps its identifier until it exits, but it is never a valid target.
//
// Returns the identifier of the thread control was handed to.
func (r *Runtime) Yield(want Tid) (Tid, error) {
	cur, prior := r.enter("yield")
	defer r.leave(cur, prior)

	r.reap()

	if want == Self || want == cur.id {
		r.stats.Switches++
		r.metrics.switches.Inc()
		out := execctx.Swap(cur.ctx, cur.ctx, execctx.Resume(int(cur.id)))
		r.resumed(cur, out)
		return cur.id, nil
	}

	var next *TCB
	switch {
	case want == Any:
		if r.ready.len() == 0 {
			r.metrics.refusals.WithLabelValues("yield").Inc()
			return NoThread, opError("yield", want, ErrNone)
		}
		next = r.ready.popFront()
	default:
		t := r.reg.get(want)
		if t == nil || t.where != &r.ready || t.condemned {
			return NoThread, opError("yield", want, ErrInvalid)
		}
		r.ready.remove(t)
		next = t
	}

	cur.state = StateReady
	r.ready.pushBack(cur)
	r.log.Debug("yield", "tid", cur.id, "to", next.id)
	id := next.id
	r.switchTo(next)
	return id, nil
}

// Sleep blocks the caller on wq and runs the head of the Ready Queue.
// Returns the caller's identifier once it has been woken and resumed.
//
// Errors:
//   - ErrInvalid: wq is nil or destroyed
//   - ErrNone: no other thread is runnable (sleeping would deadlock)
func (r *Runtime) Sleep(wq *WaitQueue) (Tid, error) {
	cur, prior := r.enter("sleep")
	defer r.leave(cur, prior)
	return r.sleep("sleep", wq)
}

// sleep is Sleep with the mask already held.
func (r *Runtime) sleep(op string, wq *WaitQueue) (Tid, error) {
	if wq == nil || wq.destroyed {
		return NoThread, opError(op, NoThread, ErrInvalid)
	}
	r.reap()
	if r.ready.len() == 0 {
		r.metrics.refusals.WithLabelValues(op).Inc()
		r.log.Warn("refusing to block with nothing runnable", "tid", r.cur.id, "op", op)
		return NoThread, opError(op, NoThread, ErrNone)
	}

	cur := r.cur
	next := r.ready.popFront()
	cur.state = StateBlocked
	wq.q.pushBack(cur)
	r.log.Debug("sleep", "tid", cur.id, "queue", wq.q.id, "to", next.id)
	r.switchTo(next)
	return cur.id, nil
}

// Wakeup moves threads from wq to the tail of the Ready Queue: the head
// only, or every member in order when all is true. Returns the number
// moved. A nil or empty queue moves nothing.
func (r *Runtime) Wakeup(wq *WaitQueue, all bool) int {
	cur, prior := r.enter("wakeup")
	defer r.leave(cur, prior)
	return r.wakeup(wq, all)
}

func (r *Runtime) wakeup(wq *WaitQueue, all bool) int {
	if wq == nil {
		return 0
	}
	n := 0
	for wq.q.len() > 0 {
		t := wq.q.popFront()
		t.state = StateReady
		r.ready.pushBack(t)
		n++
		if !all {
			break
		}
	}
	if n > 0 {
		r.observe()
		r.log.Debug("wakeup", "tid", r.cur.id, "queue", wq.q.id, "woken", n)
	}
	return n
}

// Exit terminates the calling thread. Threads waiting on it are woken, its
// identifier is released, and it becomes a zombie reclaimed by a later
// scheduling operation. Exit does not return.
//
// If no other thread is runnable, the caller is the last thread: all
// remaining resources are released and the runtime halts.
func (r *Runtime) Exit() {
	r.enter("exit")
	r.exit()
}

// exit runs with the mask held and never returns.
func (r *Runtime) exit() {
	t := r.cur
	r.reap()

	r.wakeup(t.joiners, true)
	t.state = StateExited
	r.reg.clear(t.id)
	r.stats.Exited++
	r.metrics.terminated.WithLabelValues("exit").Inc()

	if r.ready.len() == 0 {
		r.lastThread(t)
		panic("coopthread: halt returned")
	}

	r.zombies.pushBack(t)
	next := r.ready.popFront()
	r.log.Debug("exit", "tid", t.id, "to", next.id)
	r.switchTo(next)
	panic("coopthread: exited thread " + t.id.String() + " resumed")
}

// Kill terminates another thread.
//
// A thread in the Ready Queue is removed and becomes a zombie at once; it
// never runs user code again. A blocked thread is condemned in place: it
// stays in its wait queue, and when it is woken and scheduled it exits
// instead of returning to its caller.
//
// A killed thread that had already started is unwound with runtime.Goexit
// when it is reaped, so its deferred calls still run. They run while the
// reaping thread is inside a scheduling operation and must not call into
// the runtime; a deferred Lock.Release fails with ErrInvalid.
//
// Errors: ErrInvalid when id is the caller, out of range or not live.
// A thread killed while blocked is still live until it is scheduled and
// exits; killing it a second time also fails with ErrInvalid. Wait still
// accepts it.
func (r *Runtime) Kill(id Tid) (Tid, error) {
	cur, prior := r.enter("kill")
	defer r.leave(cur, prior)

	if id == cur.id || !r.reg.inRange(id) {
		return NoThread, opError("kill", id, ErrInvalid)
	}
	t := r.reg.get(id)
	if t == nil || t.condemned {
		return NoThread, opError("kill", id, ErrInvalid)
	}
	r.reap()

	switch t.where.kind {
	case Ready:
		r.ready.remove(t)
		r.wakeup(t.joiners, true)
		t.state = StateExited
		r.reg.clear(id)
		r.zombies.pushBack(t)
		r.stats.Killed++
		r.metrics.terminated.WithLabelValues("kill").Inc()
		r.observe()
		r.log.Debug("killed ready thread", "tid", cur.id, "target", id)
	case Blocked:
		t.condemned = true
		r.log.Debug("condemned blocked thread", "tid", cur.id, "target", id, "queue", t.where.id)
	}
	return id, nil
}

// Wait blocks until thread id exits and returns id.
//
// Errors: ErrInvalid when id is the caller, out of range or not live;
// ErrNone when no other thread is runnable.
func (r *Runtime) Wait(id Tid) (Tid, error) {
	cur, prior := r.enter("wait")
	defer r.leave(cur, prior)

	if id == cur.id || !r.reg.inRange(id) {
		return NoThread, opError("wait", id, ErrInvalid)
	}
	t := r.reg.get(id)
	if t == nil {
		return NoThread, opError("wait", id, ErrInvalid)
	}

	if _, err := r.sleep("wait", t.joiners); err != nil {
		return NoThread, err
	}
	r.reap()
	return id, nil
}

// switchTo makes next current and parks the caller, which must already be
// in its new queue. Returns when the caller is scheduled again.
func (r *Runtime) switchTo(next *TCB) {
	prev := r.cur
	next.state = StateRunning
	r.cur = next
	r.stats.Switches++
	r.metrics.switches.Inc()
	r.observe()

	out := execctx.Swap(prev.ctx, next.ctx, execctx.Resume(int(prev.id)))
	r.resumed(prev, out)
}

// resumed is the single resume path shared by every suspension site.
// Terminated unwinds the host goroutine; a condemned thread exits.
func (r *Runtime) resumed(t *TCB, out execctx.Outcome) {
	if out.Kind == execctx.Terminated {
		runtime.Goexit()
	}
	if t.condemned {
		r.log.Debug("condemned thread resumed, exiting", "tid", t.id)
		r.exit()
	}
}

// reap reclaims every zombie. Zombies are never current, so no thread
// frees the stack it is running on.
func (r *Runtime) reap() {
	for r.zombies.len() > 0 {
		t := r.zombies.popFront()
		r.release(t)
		r.stats.Reaped++
		r.metrics.reaped.Inc()
		r.log.Debug("reaped", "target", t.id)
	}
}

// release frees t's resources and unwinds its host goroutine. Every write
// to t happens before the unwind starts.
func (r *Runtime) release(t *TCB) {
	t.state = StateReaped
	t.joiners = nil
	if err := r.stacks.Free(t.stk); err != nil {
		r.log.Error("stack release failed", "target", t.id, "error", err)
	}
	execctx.Release(t.ctx)
}

// lastThread tears the runtime down from the last running thread t and
// halts. Blocked threads left behind are deadlocked; they are released too.
func (r *Runtime) lastThread(t *TCB) {
	r.reap()

	var stranded []*TCB
	r.reg.each(func(s *TCB) { stranded = append(stranded, s) })
	if len(stranded) > 0 {
		r.log.Warn("last runnable thread exiting with blocked threads", "tid", t.id, "blocked", len(stranded))
	}
	for _, s := range stranded {
		if s.where != nil {
			s.where.remove(s)
		}
		r.reg.clear(s.id)
		r.release(s)
	}

	t.state = StateReaped
	if err := r.stacks.Free(t.stk); err != nil {
		r.log.Error("stack release failed", "target", t.id, "error", err)
	}
	r.halted = true
	r.observe()
	r.timer.Stop()
	r.log.Debug("last thread exited, halting", "tid", t.id)
	r.halt(0)
}
