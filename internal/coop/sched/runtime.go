// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sched implements the cooperative scheduler: thread control blocks,
// the identifier registry, the Ready Queue, wait queues, the zombie list,
// the scheduling operations and the lock and condition variable built on
// them.
//
// All scheduler state lives in one Runtime. Only one logical thread executes
// at any instant; every state mutation happens with the preemption mask
// disabled, which is the whole synchronization discipline. No mutexes guard
// the queues.
//
// Typical use:
//
//	rt, err := sched.New(config.Default())
//	if err != nil {
//		return err
//	}
//	return rt.Run(func(any) {
//		id, _ := rt.Create(worker, nil)
//		rt.Wait(id)
//	}, nil)
package sched

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kolkov/coopthread/internal/config"
	"github.com/kolkov/coopthread/internal/coop/execctx"
	"github.com/kolkov/coopthread/internal/coop/preempt"
	"github.com/kolkov/coopthread/internal/coop/stack"
)

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Current     Tid
	Live        int // occupied identifier slots
	Ready       int // Ready Queue length
	Zombies     int // terminated, not yet reaped
	Switches    uint64
	Created     uint64
	Exited      uint64 // terminations through Exit (including condemned threads)
	Killed      uint64 // terminations of ready threads through Kill
	Reaped      uint64
	Preemptions uint64
	Stacks      stack.Stats
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) { r.log = l }
}

// WithRegisterer registers the scheduler metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Runtime) { r.registerer = reg }
}

// WithHalt replaces the action taken when the last thread exits.
// The default is os.Exit. fn must not return.
func WithHalt(fn func(code int)) Option {
	return func(r *Runtime) { r.halt = fn }
}

// Runtime is one cooperative threading runtime.
//
// Thread Safety: a Runtime must only be called from its own logical
// threads. Stats and Dump are the exception: they may be called from any
// goroutine once the runtime has halted.
type Runtime struct {
	cfg        config.Config
	log        *slog.Logger
	registerer prometheus.Registerer
	metrics    *metrics
	halt       func(code int)

	mask   preempt.Mask
	timer  *preempt.Timer
	stacks *stack.Allocator
	depot  *stack.Depot

	reg     *registry
	ready   queue
	zombies queue
	cur     *TCB

	nextQueueID uint64
	started     bool
	halted      bool

	stats Stats
}

// New creates a runtime. The calling goroutine is not yet a thread; call
// Init or Run.
func New(cfg config.Config, opts ...Option) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r := &Runtime{
		cfg:    cfg,
		log:    slog.Default(),
		halt:   os.Exit,
		stacks: stack.NewAllocator(cfg.StackSize, cfg.MemoryLimit),
		depot:  stack.NewDepot(),
		reg:    newRegistry(cfg.MaxThreads),
	}
	r.ready.kind = Ready
	r.zombies.kind = Zombie
	for _, opt := range opts {
		opt(r)
	}

	m, err := newMetrics(r.registerer)
	if err != nil {
		return nil, err
	}
	r.metrics = m
	return r, nil
}

// Config returns the configuration the runtime was built with.
func (r *Runtime) Config() config.Config { return r.cfg }

// Logger returns the runtime's logger, for components layered on it.
func (r *Runtime) Logger() *slog.Logger { return r.log }

// Init turns the calling goroutine into the bootstrap thread. It keeps
// running on the caller's stack and owns no stack reservation.
//
// If the bootstrap thread exits while other threads remain, its goroutine
// is unwound with runtime.Goexit when it is reaped; when the last thread
// exits the process halts. Use Run to keep the caller outside the runtime.
func (r *Runtime) Init() (Tid, error) {
	if r.started {
		return NoThread, opError("init", NoThread, ErrInvalid)
	}
	return r.boot(execctx.Capture(nil)), nil
}

// Run executes main as the bootstrap thread on a fresh goroutine and blocks
// until the last thread exits. When main returns, the bootstrap thread
// exits like any other thread; Run returns once every thread has.
//
// Run installs its own halt action, overriding WithHalt.
func (r *Runtime) Run(main func(arg any), arg any) error {
	if r.started {
		return opError("run", NoThread, ErrInvalid)
	}
	r.started = true

	finished := make(chan struct{})
	r.halt = func(int) {
		close(finished)
		runtime.Goexit()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.boot(execctx.Capture(done))
		main(arg)
		r.Exit()
	}()

	<-finished
	return nil
}

func (r *Runtime) boot(ctx *execctx.Context) Tid {
	r.started = true
	id, _ := r.reg.lowestFree()
	t := &TCB{
		id:     id,
		ctx:    ctx,
		state:  StateRunning,
		origin: r.depot.Capture(1),
	}
	t.joiners = r.NewWaitQueue()
	if r.cfg.Strict {
		t.gid = currentGID()
	}
	r.reg.set(t)
	r.cur = t
	r.stats.Created++
	r.metrics.created.Inc()
	r.observe()

	r.timer = preempt.StartTimer(context.Background(), &r.mask, r.cfg.PreemptInterval)
	r.mask.Enable()
	r.log.Debug("runtime started", "tid", id, "max_threads", r.cfg.MaxThreads,
		"preempt_interval", r.cfg.PreemptInterval)
	return id
}

// NewWaitQueue creates an empty wait queue.
func (r *Runtime) NewWaitQueue() *WaitQueue {
	r.nextQueueID++
	wq := &WaitQueue{}
	wq.q.kind = Blocked
	wq.q.id = r.nextQueueID
	return wq
}

// enter starts a scheduler operation: strict-mode ownership check, then the
// mask is disabled. The returned TCB and prior state go to leave.
func (r *Runtime) enter(op string) (*TCB, bool) {
	if r.cur == nil {
		panic("coopthread: " + op + " called before Init or Run")
	}
	if r.cfg.Strict {
		if gid := currentGID(); gid != r.cur.gid {
			panic(fmt.Sprintf("coopthread: %s called from goroutine %d, current thread %s runs on goroutine %d",
				op, gid, r.cur.id, r.cur.gid))
		}
	}
	return r.cur, r.mask.Disable()
}

// leave ends a scheduler operation on thread t, restoring the mask and
// delivering pending ticks. It does nothing when t is being unwound.
//
// Ticks that arrive during a forced switch are delivered by the loop, so
// the stack depth stays constant however short the interval.
func (r *Runtime) leave(t *TCB, prior bool) {
	if t.state == StateExited || t.state == StateReaped {
		return
	}
	for r.mask.Restore(prior) {
		r.mask.Disable()
		r.preempt(t)
	}
}

// preempt delivers one forced yield from cur with the mask disabled: cur
// goes to the tail of the Ready Queue and its head runs. Nothing happens
// when no other thread is runnable.
func (r *Runtime) preempt(cur *TCB) {
	r.reap()
	if r.ready.len() == 0 {
		return
	}
	r.stats.Preemptions++
	r.metrics.preemptions.Inc()

	next := r.ready.popFront()
	cur.state = StateReady
	r.ready.pushBack(cur)
	r.log.Debug("preempted", "tid", cur.id, "to", next.id)
	r.switchTo(next)
}

// Poll delivers a pending timer tick, if any. Long-running threads call it
// at safe points so the simulated timer can preempt them.
func (r *Runtime) Poll() {
	t, prior := r.enter("poll")
	r.leave(t, prior)
}

// ID returns the identifier of the current thread.
func (r *Runtime) ID() Tid {
	if r.cur == nil {
		return NoThread
	}
	return r.cur.id
}

// Info returns a snapshot of thread id, or false if id is not live.
func (r *Runtime) Info(id Tid) (ThreadInfo, bool) {
	t := r.reg.get(id)
	if t == nil {
		return ThreadInfo{}, false
	}
	return t.info(), true
}

// ReadyTids returns the Ready Queue in scheduling order.
func (r *Runtime) ReadyTids() []Tid {
	return r.ready.tids()
}

// Stats returns a snapshot of the scheduler counters.
func (r *Runtime) Stats() Stats {
	s := r.stats
	s.Current = r.ID()
	s.Live = r.reg.live
	s.Ready = r.ready.len()
	s.Zombies = r.zombies.len()
	s.Stacks = r.stacks.Stats()
	return s
}

// Dump writes a listing of every live thread with its creation site.
func (r *Runtime) Dump(w io.Writer) {
	fmt.Fprintf(w, "==================\n")
	fmt.Fprintf(w, "THREADS (live=%d ready=%d zombies=%d)\n", r.reg.live, r.ready.len(), r.zombies.len())
	r.reg.each(func(t *TCB) {
		in := t.info()
		fmt.Fprintf(w, "\nThread %s [%s", in.ID, in.State)
		if in.Location == Blocked {
			fmt.Fprintf(w, ", wait queue %d", in.QueueID)
		}
		if in.Condemned {
			fmt.Fprintf(w, ", killed")
		}
		if in.Bootstrap {
			fmt.Fprintf(w, ", bootstrap")
		}
		fmt.Fprintf(w, "] created at:\n")
		fmt.Fprint(w, r.depot.Lookup(in.Origin).Format())
	})
	fmt.Fprintf(w, "==================\n")
}

// observe publishes the occupancy gauges.
func (r *Runtime) observe() {
	r.metrics.live.Set(float64(r.reg.live))
	r.metrics.ready.Set(float64(r.ready.len()))
}
