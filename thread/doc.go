// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package thread provides cooperative user-level threads for Go programs.
//
// Threads created through this package never run in parallel. Exactly one
// of them executes at any moment, and control moves between them only at
// scheduling operations: Yield, Sleep, Wait, Exit, the blocking paths of
// Lock and Cond, and (when a preemption interval is configured) Poll.
// Shared state touched only from threads of one runtime needs no further
// synchronization.
//
// # Quick Start
//
//	rt, err := thread.New(thread.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = rt.Run(func(any) {
//		id, _ := rt.Create(func(arg any) {
//			fmt.Println("hello from", rt.ID())
//		}, nil)
//		rt.Wait(id)
//	}, nil)
//
// # API Overview
//
// The package provides:
//   - Lifecycle: [New], [Runtime.Init], [Runtime.Run], [Runtime.Create],
//     [Runtime.Exit], [Runtime.Kill], [Runtime.Wait]
//   - Scheduling: [Runtime.Yield], [Runtime.Sleep], [Runtime.Wakeup],
//     [Runtime.Poll]
//   - Synchronization: [Runtime.NewLock], [Runtime.NewCond],
//     [Runtime.NewWaitQueue]
//   - Diagnostics: [Runtime.Stats], [Runtime.Dump], [GetInfo]
//
// # Scheduling Model
//
// The Ready Queue is strictly FIFO. Yield(Any) moves the caller to its tail
// and runs its head. Sleep parks the caller on a wait queue until a Wakeup
// moves it back to the Ready Queue tail. Exit wakes every thread waiting on
// the caller; its stack is reclaimed by the next scheduling operation of
// another thread.
//
// Kill of a ready thread is immediate. Kill of a blocked thread takes
// effect when that thread is next scheduled: it exits instead of returning
// from the blocking call.
//
// A killed thread never returns to its own code, but the deferred calls of
// a thread that had already started still run while its goroutine is
// unwound. They run after the thread has left the runtime, while another
// thread is reaping it, and must not call into the runtime. In particular a
// deferred Lock.Release fails with ErrInvalid and the lock stays held.
// Release locks explicitly before any point where the thread may be killed.
//
// When the last runnable thread exits the runtime halts. [Runtime.Run]
// returns at that point; a runtime started with [Runtime.Init] ends the
// process.
//
// # Errors
//
// Failed operations return *[Error]. Match the cause with errors.Is against
// [ErrInvalid], [ErrNoMore], [ErrNoMemory] or [ErrNone].
//
// # Preemption
//
// Go cannot interrupt a goroutine at an arbitrary point. A configured
// PreemptInterval drives a timer that marks a tick pending; the tick is
// delivered as a forced Yield(Any) at the end of the next scheduling
// operation or at a Poll call.
package thread
