// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

// Kind names the place a TCB currently sits.
type Kind uint8

const (
	// Running means the TCB is current and in no queue.
	Running Kind = iota
	// Ready means the TCB is in the Ready Queue.
	Ready
	// Blocked means the TCB is in a wait queue.
	Blocked
	// Zombie means the TCB has terminated and awaits reaping.
	Zombie
)

// String returns the location name.
func (k Kind) String() string {
	switch k {
	case Running:
		return "running"
	case Ready:
		return "ready"
	case Blocked:
		return "blocked"
	case Zombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// queue is an intrusive FIFO of TCBs. Each TCB records the queue it is in,
// which is the tagged location used for O(1) removal from any queue.
//
// Invariant: t.where == q iff t is linked into q; a TCB is in at most one
// queue.
type queue struct {
	kind       Kind
	id         uint64
	head, tail *TCB
	n          int
}

func (q *queue) len() int { return q.n }

func (q *queue) pushBack(t *TCB) {
	if t.where != nil {
		panic("coopthread: thread " + t.id.String() + " is already queued")
	}
	t.where = q
	t.prev = q.tail
	t.next = nil
	if q.tail == nil {
		q.head = t
	} else {
		q.tail.next = t
	}
	q.tail = t
	q.n++
}

func (q *queue) popFront() *TCB {
	t := q.head
	if t == nil {
		return nil
	}
	q.remove(t)
	return t
}

// remove unlinks t, which must be a member of q.
func (q *queue) remove(t *TCB) {
	if t.where != q {
		panic("coopthread: thread " + t.id.String() + " is not in this queue")
	}
	if t.prev == nil {
		q.head = t.next
	} else {
		t.prev.next = t.next
	}
	if t.next == nil {
		q.tail = t.prev
	} else {
		t.next.prev = t.prev
	}
	t.prev, t.next, t.where = nil, nil, nil
	q.n--
}

// find scans for the member with identifier id.
func (q *queue) find(id Tid) *TCB {
	for t := q.head; t != nil; t = t.next {
		if t.id == id {
			return t
		}
	}
	return nil
}

// tids returns member identifiers in queue order.
func (q *queue) tids() []Tid {
	out := make([]Tid, 0, q.n)
	for t := q.head; t != nil; t = t.next {
		out = append(out, t.id)
	}
	return out
}

// WaitQueue is a queue of threads blocked pending a wakeup.
//
// Create one with Runtime.NewWaitQueue. A WaitQueue belongs to the runtime
// that created it and must only be used from that runtime's threads.
type WaitQueue struct {
	q         queue
	destroyed bool
}

// ID returns the queue identifier shown in thread locations.
func (wq *WaitQueue) ID() uint64 { return wq.q.id }

// Len returns the number of blocked threads.
func (wq *WaitQueue) Len() int { return wq.q.len() }

// Tids returns the blocked threads in wakeup order.
func (wq *WaitQueue) Tids() []Tid { return wq.q.tids() }

// Destroy retires the queue. It fails with ErrInvalid while threads are
// still blocked on it. Sleeping on a destroyed queue fails with ErrInvalid.
func (wq *WaitQueue) Destroy() error {
	if wq == nil || wq.destroyed {
		return opError("wait_queue_destroy", NoThread, ErrInvalid)
	}
	if wq.q.len() > 0 {
		return opError("wait_queue_destroy", NoThread, ErrInvalid)
	}
	wq.destroyed = true
	return nil
}
