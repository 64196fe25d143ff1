// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"errors"
	"testing"
)

// TestLockMutualExclusion: threads that yield inside the critical section
// never interleave their read-modify-write.
func TestLockMutualExclusion(t *testing.T) {
	const workers, rounds = 4, 10
	rt := newTestRuntime(t, nil)
	counter := 0
	inside := 0

	run(t, rt, func() {
		l := rt.NewLock()
		var ids []Tid
		for i := 0; i < workers; i++ {
			id, err := rt.Create(func(any) {
				for j := 0; j < rounds; j++ {
					if err := l.Acquire(); err != nil {
						t.Errorf("Acquire() error = %v", err)
						return
					}
					inside++
					if inside != 1 {
						t.Errorf("%d threads inside the critical section", inside)
					}
					v := counter
					_, _ = rt.Yield(Any)
					counter = v + 1
					inside--
					if err := l.Release(); err != nil {
						t.Errorf("Release() error = %v", err)
					}
				}
			}, nil)
			if err != nil {
				t.Errorf("Create() error = %v", err)
			}
			ids = append(ids, id)
		}
		for _, id := range ids {
			if _, err := rt.Wait(id); err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("Wait(%d) error = %v", id, err)
			}
		}
		if l.Held() {
			t.Error("lock held after all workers finished")
		}
		if err := l.Destroy(); err != nil {
			t.Errorf("Destroy() error = %v", err)
		}
	})

	if counter != workers*rounds {
		t.Errorf("counter = %d, want %d", counter, workers*rounds)
	}
}

// TestLockMisuse covers recursive acquire, foreign release and destroy of a
// busy lock.
func TestLockMisuse(t *testing.T) {
	rt := newTestRuntime(t, nil)
	errs := map[string]error{}
	var owner Tid

	run(t, rt, func() {
		l := rt.NewLock()
		errs["release unheld"] = l.Release()
		_ = l.Acquire()
		owner = l.Owner()
		errs["recursive"] = l.Acquire()
		errs["destroy held"] = l.Destroy()

		_, _ = rt.Create(func(any) {
			errs["foreign release"] = l.Release()
		}, nil)
		_, _ = rt.Yield(Any)

		_ = l.Release()
		_ = l.Destroy()
		errs["acquire destroyed"] = l.Acquire()
		errs["destroy twice"] = l.Destroy()
	})

	if owner != 0 {
		t.Errorf("Owner() = %d, want 0", owner)
	}
	for name, err := range errs {
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: error = %v, want ErrInvalid", name, err)
		}
	}
	if len(errs) != 6 {
		t.Errorf("recorded %d cases, want 6", len(errs))
	}
}

// TestLockDeadlockRefused: acquiring a held lock with nothing else runnable
// fails instead of hanging.
func TestLockDeadlockRefused(t *testing.T) {
	rt := newTestRuntime(t, nil)
	var err error

	run(t, rt, func() {
		l := rt.NewLock()
		wq := rt.NewWaitQueue()
		_ = l.Acquire()
		_, _ = rt.Create(func(any) {
			err = l.Acquire()
			rt.Wakeup(wq, false)
		}, nil)
		_, _ = rt.Sleep(wq)
		_ = l.Release()
	})

	if !errors.Is(err, ErrNone) {
		t.Errorf("Acquire() error = %v, want ErrNone", err)
	}
}

// TestCondSignalBroadcast: Signal wakes one waiter, Broadcast the rest, and
// each waiter holds the lock when Wait returns.
func TestCondSignalBroadcast(t *testing.T) {
	rt := newTestRuntime(t, nil)
	var trace []string
	var waiting, signalled, broadcast, idle int

	run(t, rt, func() {
		l := rt.NewLock()
		cv := rt.NewCond()
		ready := false

		for _, name := range []string{"A", "B", "C"} {
			name := name
			_, _ = rt.Create(func(any) {
				_ = l.Acquire()
				for !ready {
					if err := cv.Wait(l); err != nil {
						t.Errorf("%s: Wait() error = %v", name, err)
						break
					}
				}
				if l.Owner() != rt.ID() {
					t.Errorf("%s: lock owner = %d after Wait, want %d", name, l.Owner(), rt.ID())
				}
				trace = append(trace, name)
				_ = l.Release()
			}, nil)
		}
		_, _ = rt.Yield(Any)
		waiting = cv.waiters.Len()

		_ = l.Acquire()
		ready = true
		signalled = cv.Signal()
		_ = l.Release()
		_, _ = rt.Wait(1)

		broadcast = cv.Broadcast()
		idle = cv.Signal()
		_, _ = rt.Wait(3)
		if err := cv.Destroy(); err != nil {
			t.Errorf("Destroy() error = %v", err)
		}
	})

	if waiting != 3 || signalled != 1 || broadcast != 2 || idle != 0 {
		t.Errorf("waiting=%d signalled=%d broadcast=%d idle=%d, want 3/1/2/0",
			waiting, signalled, broadcast, idle)
	}
	equalTrace(t, trace, []string{"A", "B", "C"})
}

// TestCondWaitAlone: with nothing else runnable Wait refuses, and the
// caller still holds the lock.
func TestCondWaitAlone(t *testing.T) {
	rt := newTestRuntime(t, nil)
	var err, notOwner, destroyBusy error
	var owner Tid

	run(t, rt, func() {
		l := rt.NewLock()
		cv := rt.NewCond()
		notOwner = cv.Wait(l)

		_ = l.Acquire()
		err = cv.Wait(l)
		owner = l.Owner()
		_ = l.Release()

		_, _ = rt.Create(func(any) {
			_ = l.Acquire()
			_ = cv.Wait(l)
			_ = l.Release()
		}, nil)
		_, _ = rt.Yield(Any)
		destroyBusy = cv.Destroy()
		cv.Broadcast()
		_, _ = rt.Yield(Any)
	})

	if !errors.Is(err, ErrNone) {
		t.Errorf("Wait() alone error = %v, want ErrNone", err)
	}
	if owner != 0 {
		t.Errorf("Owner() after refused Wait = %d, want 0", owner)
	}
	if !errors.Is(notOwner, ErrInvalid) {
		t.Errorf("Wait() without the lock error = %v, want ErrInvalid", notOwner)
	}
	if !errors.Is(destroyBusy, ErrInvalid) {
		t.Errorf("Destroy() with waiter error = %v, want ErrInvalid", destroyBusy)
	}
}

// TestKillBlockedOnCond: a thread killed while waiting on a condition exits
// when signalled, without re-acquiring the lock.
func TestKillBlockedOnCond(t *testing.T) {
	rt := newTestRuntime(t, nil)
	returned := false
	var a, got, owner Tid
	var err error

	run(t, rt, func() {
		l := rt.NewLock()
		cv := rt.NewCond()
		a, _ = rt.Create(func(any) {
			_ = l.Acquire()
			_ = cv.Wait(l)
			returned = true
			_ = l.Release()
		}, nil)
		_, _ = rt.Yield(Any) // a waits on cv and gives up the lock

		if _, err := rt.Kill(a); err != nil {
			t.Errorf("Kill() error = %v", err)
		}
		if err := l.Acquire(); err != nil {
			t.Errorf("Acquire() error = %v", err)
		}
		cv.Signal()
		got, err = rt.Wait(a)
		owner = l.Owner()
		_ = l.Release()
	})

	if err != nil || got != a {
		t.Errorf("Wait(%d) = %d, %v; want %d, nil", a, got, err, a)
	}
	if returned {
		t.Error("killed thread returned from Cond.Wait")
	}
	if owner != 0 {
		t.Errorf("Owner() after the kill = %d, want 0", owner)
	}
	if s := rt.Stats(); s.Stacks.InUse != 0 || s.Stacks.Frees != 1 {
		t.Errorf("stack stats = %+v, want 1 free, none in use", s.Stacks)
	}
}

// TestKilledHolderDefers: the deferred calls of a killed thread run while
// it is reaped, and a deferred Release there fails and leaves the lock held.
func TestKilledHolderDefers(t *testing.T) {
	rt := newTestRuntime(t, nil)
	deferRan, bodyAfter, held := false, false, false
	var relErr error

	run(t, rt, func() {
		l := rt.NewLock()
		a, _ := rt.Create(func(any) {
			defer func() {
				deferRan = true
				relErr = l.Release()
			}()
			_ = l.Acquire()
			_, _ = rt.Yield(Any)
			bodyAfter = true
		}, nil)
		_, _ = rt.Yield(Any) // a takes the lock and yields back
		_, _ = rt.Kill(a)
		_, _ = rt.Yield(Self) // reaps a
		held = l.Held()
	})

	if !deferRan {
		t.Error("deferred call of the killed thread did not run")
	}
	if bodyAfter {
		t.Error("killed thread resumed its body")
	}
	if !errors.Is(relErr, ErrInvalid) {
		t.Errorf("deferred Release() error = %v, want ErrInvalid", relErr)
	}
	if !held {
		t.Error("lock released by a killed thread's defer")
	}
}

// TestLockOwnerNotInherited: a thread issued a dead holder's identifier
// does not own the dead holder's lock.
func TestLockOwnerNotInherited(t *testing.T) {
	rt := newTestRuntime(t, nil)
	var reused bool
	var relErr, acqErr error

	run(t, rt, func() {
		l := rt.NewLock()
		h, _ := rt.Create(func(any) {
			_ = l.Acquire()
			_, _ = rt.Yield(Any)
		}, nil)
		_, _ = rt.Yield(Any) // h holds the lock and yields back
		_, _ = rt.Kill(h)

		n, _ := rt.Create(func(any) {
			relErr = l.Release()
			acqErr = l.Acquire()
		}, nil)
		reused = n == h
		_, _ = rt.Wait(n)
	})

	if !reused {
		t.Fatal("identifier of the killed holder was not reissued")
	}
	if !errors.Is(relErr, ErrInvalid) {
		t.Errorf("Release() by the new thread error = %v, want ErrInvalid", relErr)
	}
	// The lock is still held by the dead thread: not recursive, just busy.
	if !errors.Is(acqErr, ErrNone) {
		t.Errorf("Acquire() by the new thread error = %v, want ErrNone", acqErr)
	}
}
