// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stack manages the per-thread stack reservations of the
// cooperative runtime.
//
// Goroutine stacks are grown and shrunk by the Go runtime, so a Stack here
// is not raw memory the thread executes on. It is the exclusively-owned
// reservation that backs one logical thread: a fixed number of bytes charged
// against the allocator's limit from creation until the thread is reaped.
// The reservation gives the scheduler three things it needs:
//
//   - Allocation failure is a real, reportable condition (limit reached).
//   - Ownership is explicit: a stack is freed exactly once, and a second
//     Free is reported instead of corrupting the accounting.
//   - The creation site of each thread is recorded for diagnostics.
//
// Example:
//
//	a := stack.NewAllocator(32<<10, 1<<20)
//	s, err := a.Alloc()
//	if errors.Is(err, stack.ErrNoMemory) {
//		// limit reached
//	}
//	defer a.Free(s)
package stack

import (
	"errors"
	"sync"
)

var (
	// ErrNoMemory is returned when the reservation would exceed the limit.
	ErrNoMemory = errors.New("stack: memory limit reached")

	// ErrDoubleFree is returned when a stack is freed twice.
	ErrDoubleFree = errors.New("stack: already freed")
)

// Stack is one thread's stack reservation.
type Stack struct {
	size  int
	seq   uint64
	freed bool
}

// Size returns the reserved size in bytes.
func (s *Stack) Size() int { return s.size }

// Seq returns the allocation sequence number (1-based, never reused).
func (s *Stack) Seq() uint64 { return s.seq }

// Freed reports whether the stack has been returned to its allocator.
func (s *Stack) Freed() bool { return s.freed }

// Stats is a snapshot of allocator counters.
type Stats struct {
	InUse    int   // stacks currently reserved
	Bytes    int64 // bytes currently reserved
	Allocs   uint64
	Frees    uint64
	Failures uint64
}

// Allocator hands out fixed-size stack reservations under a byte limit.
//
// Thread Safety: safe for concurrent use; the scheduler only calls it with
// preemption masked, but tests and diagnostics may read Stats concurrently.
type Allocator struct {
	mu    sync.Mutex
	size  int
	limit int64
	stats Stats
}

// NewAllocator creates an allocator of size-byte stacks. A limit of zero or
// less means unlimited.
func NewAllocator(size int, limit int64) *Allocator {
	return &Allocator{size: size, limit: limit}
}

// Size returns the per-stack size.
func (a *Allocator) Size() int { return a.size }

// Alloc reserves one stack or returns ErrNoMemory.
func (a *Allocator) Alloc() (*Stack, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.limit > 0 && a.stats.Bytes+int64(a.size) > a.limit {
		a.stats.Failures++
		return nil, ErrNoMemory
	}
	a.stats.Allocs++
	a.stats.InUse++
	a.stats.Bytes += int64(a.size)
	return &Stack{size: a.size, seq: a.stats.Allocs}, nil
}

// Free returns s to the allocator. Freeing nil is a no-op; freeing twice
// returns ErrDoubleFree and leaves the counters untouched.
func (a *Allocator) Free(s *Stack) error {
	if s == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if s.freed {
		return ErrDoubleFree
	}
	s.freed = true
	a.stats.Frees++
	a.stats.InUse--
	a.stats.Bytes -= int64(s.size)
	return nil
}

// Stats returns a snapshot of the counters.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
