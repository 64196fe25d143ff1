// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

// Lock is a mutual-exclusion lock for cooperative threads, built on a wait
// queue. Release wakes every waiter; each re-checks the lock when it runs.
//
// Thread Safety: like every runtime object, a Lock is only used from the
// runtime's own threads. The mask serializes access.
//
// Example:
//
//	l := rt.NewLock()
//	if err := l.Acquire(); err != nil {
//		return err
//	}
//	counter++
//	_ = l.Release()
type Lock struct {
	rt        *Runtime
	held      bool
	owner     *TCB
	waiters   *WaitQueue
	destroyed bool
}

// NewLock creates an unheld lock.
func (r *Runtime) NewLock() *Lock {
	return &Lock{rt: r, waiters: r.NewWaitQueue()}
}

// Acquire blocks until the caller holds the lock.
//
// Errors:
//   - ErrInvalid: the lock is destroyed or already held by the caller
//   - ErrNone: the lock is held and no other thread is runnable
func (l *Lock) Acquire() error {
	cur, prior := l.rt.enter("lock_acquire")
	defer l.rt.leave(cur, prior)
	return l.acquire("lock_acquire")
}

func (l *Lock) acquire(op string) error {
	if l.destroyed {
		return opError(op, NoThread, ErrInvalid)
	}
	cur := l.rt.cur
	if l.held && l.owner == cur {
		return opError(op, cur.id, ErrInvalid)
	}
	for l.held {
		if _, err := l.rt.sleep(op, l.waiters); err != nil {
			return err
		}
	}
	l.held = true
	l.owner = cur
	return nil
}

// Release frees the lock and wakes every waiter. Only the owner may release:
// ownership follows the thread, not its identifier, so a thread that was
// issued a dead holder's identifier does not own its locks.
func (l *Lock) Release() error {
	cur, prior := l.rt.enter("lock_release")
	defer l.rt.leave(cur, prior)
	return l.release("lock_release")
}

func (l *Lock) release(op string) error {
	if l.destroyed || !l.held || l.owner != l.rt.cur {
		return opError(op, NoThread, ErrInvalid)
	}
	l.held = false
	l.owner = nil
	l.rt.wakeup(l.waiters, true)
	return nil
}

// Destroy retires the lock. It fails while the lock is held or has waiters.
func (l *Lock) Destroy() error {
	cur, prior := l.rt.enter("lock_destroy")
	defer l.rt.leave(cur, prior)

	if l.destroyed || l.held || l.waiters.Len() > 0 {
		return opError("lock_destroy", NoThread, ErrInvalid)
	}
	l.destroyed = true
	return l.waiters.Destroy()
}

// Held reports whether the lock is held.
func (l *Lock) Held() bool { return l.held }

// Owner returns the holder, or NoThread.
func (l *Lock) Owner() Tid {
	if l.owner == nil {
		return NoThread
	}
	return l.owner.id
}

// Cond is a condition variable used together with a Lock.
//
// Example:
//
//	for !ready {
//		if err := cv.Wait(l); err != nil {
//			return err
//		}
//	}
type Cond struct {
	rt        *Runtime
	waiters   *WaitQueue
	destroyed bool
}

// NewCond creates a condition variable with no waiters.
func (r *Runtime) NewCond() *Cond {
	return &Cond{rt: r, waiters: r.NewWaitQueue()}
}

// Wait releases l and sleeps on the condition as one step, then re-acquires
// l before returning. The caller must hold l.
//
// If no other thread is runnable after the release, Wait re-acquires l and
// returns ErrNone without sleeping.
func (c *Cond) Wait(l *Lock) error {
	cur, prior := c.rt.enter("cond_wait")
	defer c.rt.leave(cur, prior)

	if c.destroyed || l == nil {
		return opError("cond_wait", NoThread, ErrInvalid)
	}
	if err := l.release("cond_wait"); err != nil {
		return err
	}
	_, serr := c.rt.sleep("cond_wait", c.waiters)
	if err := l.acquire("cond_wait"); err != nil {
		return err
	}
	return serr
}

// Signal wakes the longest waiter. Returns the number woken.
func (c *Cond) Signal() int {
	return c.rt.Wakeup(c.waiters, false)
}

// Broadcast wakes every waiter in order. Returns the number woken.
func (c *Cond) Broadcast() int {
	return c.rt.Wakeup(c.waiters, true)
}

// Destroy retires the condition variable. It fails while threads wait.
func (c *Cond) Destroy() error {
	cur, prior := c.rt.enter("cond_destroy")
	defer c.rt.leave(cur, prior)

	if c.destroyed {
		return opError("cond_destroy", NoThread, ErrInvalid)
	}
	if err := c.waiters.Destroy(); err != nil {
		return opError("cond_destroy", NoThread, ErrInvalid)
	}
	c.destroyed = true
	return nil
}
