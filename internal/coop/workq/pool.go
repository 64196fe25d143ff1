// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package workq hands units of work to a fixed set of cooperative worker
// threads through a bounded ring buffer.
//
// The buffer is guarded by a scheduler Lock with three condition
// variables: producers wait on notFull, workers on notEmpty, and Shutdown
// on stopped until the live worker count reaches zero. With zero workers
// Submit runs the handler inline on the caller.
//
// Example:
//
//	p, err := workq.New(rt, 4, 16, func(req Request) { serve(req) })
//	if err != nil {
//		return err
//	}
//	for _, req := range incoming {
//		if err := p.Submit(req); err != nil {
//			return err
//		}
//	}
//	return p.Shutdown()
package workq

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/kolkov/coopthread/internal/coop/sched"
)

var (
	// ErrClosed is returned by Submit after Shutdown.
	ErrClosed = errors.New("workq: pool is shut down")

	// ErrConfig reports invalid pool parameters.
	ErrConfig = errors.New("workq: invalid pool parameters")
)

// Pool is a bounded work queue served by cooperative worker threads.
//
// Thread Safety: a Pool belongs to one runtime and must only be used from
// that runtime's threads.
type Pool[T any] struct {
	rt      *sched.Runtime
	log     *slog.Logger
	handler func(T)

	lock     *sched.Lock
	notEmpty *sched.Cond
	notFull  *sched.Cond
	stopped  *sched.Cond

	buf     []T
	head, n int
	exiting bool

	workers []sched.Tid
	live    int
	handled uint64
}

// New creates a pool and starts its workers. It must be called from a
// thread of rt. capacity must be at least 1 when workers > 0.
func New[T any](rt *sched.Runtime, workers, capacity int, handler func(T)) (*Pool[T], error) {
	if rt == nil || handler == nil || workers < 0 || (workers > 0 && capacity < 1) {
		return nil, fmt.Errorf("%w: workers=%d capacity=%d", ErrConfig, workers, capacity)
	}

	p := &Pool[T]{
		rt:       rt,
		log:      rt.Logger().With("component", "workq"),
		handler:  handler,
		lock:     rt.NewLock(),
		notEmpty: rt.NewCond(),
		notFull:  rt.NewCond(),
		stopped:  rt.NewCond(),
	}
	if workers == 0 {
		return p, nil
	}

	p.buf = make([]T, capacity)
	for i := 0; i < workers; i++ {
		id, err := rt.Create(p.work, i)
		if err != nil {
			// Workers already started see exiting and leave.
			_ = p.Shutdown()
			return nil, fmt.Errorf("start worker %d: %w", i, err)
		}
		p.workers = append(p.workers, id)
		p.live++
	}
	p.log.Debug("pool started", "workers", workers, "capacity", capacity)
	return p, nil
}

// Submit queues item, blocking while the buffer is full. With no workers
// the handler runs immediately on the caller.
func (p *Pool[T]) Submit(item T) error {
	if len(p.workers) == 0 {
		if p.exiting {
			return ErrClosed
		}
		p.handler(item)
		p.handled++
		return nil
	}

	if err := p.lock.Acquire(); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	for p.n == len(p.buf) && !p.exiting {
		if err := p.notFull.Wait(p.lock); err != nil {
			_ = p.lock.Release()
			return fmt.Errorf("submit: %w", err)
		}
	}
	if p.exiting {
		_ = p.lock.Release()
		return ErrClosed
	}

	p.buf[(p.head+p.n)%len(p.buf)] = item
	p.n++
	p.notEmpty.Broadcast()
	return p.lock.Release()
}

// work is the body of every worker thread.
func (p *Pool[T]) work(arg any) {
	idx := arg.(int)
	for {
		if err := p.lock.Acquire(); err != nil {
			p.log.Warn("worker stopping", "worker", idx, "error", err)
			p.retire()
			return
		}
		for p.n == 0 {
			if p.exiting {
				_ = p.lock.Release()
				p.log.Debug("worker exiting", "worker", idx, "tid", p.rt.ID())
				p.retire()
				return
			}
			if err := p.notEmpty.Wait(p.lock); err != nil {
				_ = p.lock.Release()
				p.log.Warn("worker stopping", "worker", idx, "error", err)
				p.retire()
				return
			}
		}

		item := p.buf[p.head]
		var zero T
		p.buf[p.head] = zero
		p.head = (p.head + 1) % len(p.buf)
		p.n--
		p.notFull.Broadcast()
		_ = p.lock.Release()

		p.handler(item)
		p.handled++
	}
}

// retire records that the calling worker is about to exit. Only the
// worker's own return path calls it, never a defer: a killed worker must
// not touch the runtime while it is unwound.
func (p *Pool[T]) retire() {
	p.live--
	p.stopped.Broadcast()
}

// Shutdown stops accepting work, lets the workers drain the buffer and
// waits for every worker to exit. Workers are tracked by count, not by
// identifier, since the identifier of a worker that already exited may
// have been reissued.
func (p *Pool[T]) Shutdown() error {
	if len(p.workers) == 0 {
		p.exiting = true
		return nil
	}

	if err := p.lock.Acquire(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	p.exiting = true
	p.notEmpty.Broadcast()
	p.notFull.Broadcast()
	for p.live > 0 {
		if err := p.stopped.Wait(p.lock); err != nil {
			_ = p.lock.Release()
			return fmt.Errorf("shutdown: %d workers still running: %w", p.live, err)
		}
	}
	if err := p.lock.Release(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	p.log.Debug("pool stopped", "handled", p.handled)
	return nil
}

// Len returns the number of queued items.
func (p *Pool[T]) Len() int { return p.n }

// Handled returns the number of items passed to the handler.
func (p *Pool[T]) Handled() uint64 { return p.handled }

// Workers returns the worker thread identifiers.
func (p *Pool[T]) Workers() []sched.Tid { return p.workers }
