// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"errors"
	"fmt"
)

// Tid identifies a logical thread. Valid identifiers are in [0, MaxThreads).
type Tid int

const (
	// Any asks Yield to run the head of the Ready Queue.
	Any Tid = -1

	// Self asks Yield to continue running the caller.
	Self Tid = -2

	// NoThread is returned alongside errors.
	NoThread Tid = -3
)

// String formats the identifier, naming the special targets.
func (t Tid) String() string {
	switch t {
	case Any:
		return "any"
	case Self:
		return "self"
	case NoThread:
		return "none"
	default:
		return fmt.Sprintf("%d", int(t))
	}
}

var (
	// ErrInvalid reports a bad or dead identifier, a nil or destroyed
	// queue, or misuse of a lock.
	ErrInvalid = errors.New("invalid argument or target")

	// ErrNoMore reports that every identifier slot is in use.
	ErrNoMore = errors.New("no free thread identifier")

	// ErrNoMemory reports that a stack reservation could not be obtained.
	ErrNoMemory = errors.New("out of memory for thread stack")

	// ErrNone reports that no other thread is runnable.
	ErrNone = errors.New("no runnable thread")
)

// Error describes a failed scheduler operation.
//
// The sentinel is available through errors.Is:
//
//	if _, err := rt.Yield(sched.Any); errors.Is(err, sched.ErrNone) {
//		// nothing else to run
//	}
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type Error struct {
	Op     string // operation name, e.g. "yield"
	Target Tid    // identifier the operation was aimed at, NoThread if none
	Err    error  // one of the sentinels above
}

// Error formats as "op target: reason" or "op: reason".
func (e *Error) Error() string {
	if e.Target == NoThread {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

// Unwrap returns the sentinel.
func (e *Error) Unwrap() error {
	return e.Err
}

func opError(op string, target Tid, err error) error {
	return &Error{Op: op, Target: target, Err: err}
}
