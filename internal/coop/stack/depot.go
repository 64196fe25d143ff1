// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stack

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"runtime"
	"strings"
	"sync"
)

// MaxFrames is the number of frames kept per creation site.
const MaxFrames = 8

// Trace is a fixed-size captured call stack.
type Trace struct {
	PC [MaxFrames]uintptr
}

// Depot records the call sites that created threads, deduplicated by hash.
// Threads created in a loop from the same line share one entry.
//
// Thread Safety: safe for concurrent use.
type Depot struct {
	traces sync.Map // uint64 -> *Trace
}

// NewDepot creates an empty depot.
func NewDepot() *Depot {
	return &Depot{}
}

// Capture records the caller's stack and returns its hash. skip counts
// frames above Capture's caller to drop, so helpers can attribute the
// capture to their own caller. Returns 0 if no frames are available.
func (d *Depot) Capture(skip int) uint64 {
	var pcs [MaxFrames]uintptr
	// +2: runtime.Callers and Capture itself.
	n := runtime.Callers(skip+2, pcs[:])
	if n == 0 {
		return 0
	}

	h := hashPCs(pcs[:n])
	if _, ok := d.traces.Load(h); ok {
		return h
	}
	d.traces.Store(h, &Trace{PC: pcs})
	return h
}

// Lookup returns the trace stored under h, or nil.
func (d *Depot) Lookup(h uint64) *Trace {
	if h == 0 {
		return nil
	}
	v, ok := d.traces.Load(h)
	if !ok {
		return nil
	}
	return v.(*Trace)
}

// Len returns the number of distinct traces stored. O(N).
func (d *Depot) Len() int {
	n := 0
	d.traces.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func hashPCs(pcs []uintptr) uint64 {
	h := fnv.New64a()
	var b [8]byte
	for _, pc := range pcs {
		binary.LittleEndian.PutUint64(b[:], uint64(pc))
		_, _ = h.Write(b[:])
	}
	return h.Sum64()
}

// Format renders the trace one frame per entry, runtime frames omitted:
//
//	main.spawnWorkers()
//	    /path/to/main.go:30
func (t *Trace) Format() string {
	if t == nil {
		return "  <unknown>\n"
	}

	frames := runtime.CallersFrames(t.PC[:])
	var buf strings.Builder
	for {
		frame, more := frames.Next()
		if frame.PC == 0 {
			break
		}
		if !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&buf, "  %s()\n", frame.Function)
			fmt.Fprintf(&buf, "      %s:%d\n", frame.File, frame.Line)
		}
		if !more {
			break
		}
	}

	if buf.Len() == 0 {
		return "  <runtime internal>\n"
	}
	return buf.String()
}
