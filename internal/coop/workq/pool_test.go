// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package workq

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/coopthread/internal/config"
	"github.com/kolkov/coopthread/internal/coop/sched"
)

func newRuntime(t *testing.T) *sched.Runtime {
	t.Helper()
	cfg := config.Default()
	cfg.MaxThreads = 32
	rt, err := sched.New(cfg, sched.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return rt
}

// runMain runs body as the bootstrap thread. Only assert (never require)
// may be used inside body: it executes on a runtime goroutine.
func runMain(t *testing.T, rt *sched.Runtime, body func()) {
	t.Helper()
	require.NoError(t, rt.Run(func(any) { body() }, nil))
}

func TestPoolDeliversEveryItemOnce(t *testing.T) {
	tests := []struct {
		name     string
		workers  int
		capacity int
		items    int
	}{
		{"single worker", 1, 1, 5},
		{"more items than capacity", 2, 2, 10},
		{"wide pool", 4, 8, 40},
		{"inline", 0, 0, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRuntime(t)
			var got []int
			var handled uint64

			runMain(t, rt, func() {
				p, err := New(rt, tt.workers, tt.capacity, func(v int) { got = append(got, v) })
				if !assert.NoError(t, err) {
					return
				}
				assert.Len(t, p.Workers(), tt.workers)
				for i := 0; i < tt.items; i++ {
					assert.NoError(t, p.Submit(i))
				}
				assert.NoError(t, p.Shutdown())
				assert.Zero(t, p.Len())
				handled = p.Handled()
			})

			want := make([]int, tt.items)
			for i := range want {
				want[i] = i
			}
			assert.Equal(t, want, got)
			assert.Equal(t, uint64(tt.items), handled)
			assert.Equal(t, 0, rt.Stats().Stacks.InUse)
		})
	}
}

func TestPoolInlineRunsOnCaller(t *testing.T) {
	rt := newRuntime(t)
	var callers []sched.Tid
	var boot sched.Tid

	runMain(t, rt, func() {
		boot = rt.ID()
		p, err := New(rt, 0, 0, func(string) { callers = append(callers, rt.ID()) })
		if !assert.NoError(t, err) {
			return
		}
		assert.NoError(t, p.Submit("a"))
		assert.NoError(t, p.Submit("b"))
	})

	assert.Equal(t, []sched.Tid{boot, boot}, callers)
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	for _, workers := range []int{0, 2} {
		rt := newRuntime(t)
		var err error

		runMain(t, rt, func() {
			p, nerr := New(rt, workers, 4, func(int) {})
			if !assert.NoError(t, nerr) {
				return
			}
			assert.NoError(t, p.Shutdown())
			err = p.Submit(1)
		})

		assert.ErrorIs(t, err, ErrClosed, "workers=%d", workers)
	}
}

func TestPoolShutdownDrains(t *testing.T) {
	rt := newRuntime(t)
	var got []int

	runMain(t, rt, func() {
		p, err := New(rt, 1, 4, func(v int) { got = append(got, v) })
		if !assert.NoError(t, err) {
			return
		}
		for i := 0; i < 4; i++ {
			assert.NoError(t, p.Submit(i))
		}
		assert.Equal(t, 4, p.Len(), "worker should not have run yet")
		assert.NoError(t, p.Shutdown())
	})

	assert.Equal(t, []int{0, 1, 2, 3}, got)
}

func TestPoolInvalidParameters(t *testing.T) {
	rt := newRuntime(t)
	errs := map[string]error{}

	runMain(t, rt, func() {
		_, errs["nil handler"] = New[int](rt, 1, 1, nil)
		_, errs["negative workers"] = New(rt, -1, 1, func(int) {})
		_, errs["zero capacity"] = New(rt, 2, 0, func(int) {})
	})

	require.Len(t, errs, 3)
	for name, err := range errs {
		assert.ErrorIs(t, err, ErrConfig, name)
	}
}

func TestPoolWorkerCreateFailure(t *testing.T) {
	cfg := config.Default()
	cfg.MaxThreads = 3
	rt, err := sched.New(cfg, sched.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	var perr error

	runMain(t, rt, func() {
		_, perr = New(rt, 4, 4, func(int) {})
	})

	assert.ErrorIs(t, perr, sched.ErrNoMore)
	assert.Equal(t, 0, rt.Stats().Stacks.InUse)
}

// TestPoolShutdownAfterIDReuse: a worker exits during the drain and its
// identifier goes to a thread the handler creates. Shutdown must wait for
// the workers only, never for that thread.
func TestPoolShutdownAfterIDReuse(t *testing.T) {
	rt := newRuntime(t)
	var workers []sched.Tid
	stranger := sched.NoThread
	var serr error
	var handled uint64

	runMain(t, rt, func() {
		park := rt.NewWaitQueue()
		p, err := New(rt, 2, 1, func(int) {
			// Let the idle worker see exiting and leave.
			_, _ = rt.Yield(sched.Any)
			if stranger == sched.NoThread {
				stranger, _ = rt.Create(func(any) { _, _ = rt.Sleep(park) }, nil)
			}
		})
		if !assert.NoError(t, err) {
			return
		}
		workers = p.Workers()
		assert.NoError(t, p.Submit(1))
		serr = p.Shutdown()
		handled = p.Handled()

		_, _ = rt.Yield(sched.Any) // the stranger parks
		assert.Equal(t, 1, rt.Wakeup(park, true))
	})

	assert.NoError(t, serr)
	assert.Equal(t, uint64(1), handled)
	assert.Contains(t, workers, stranger, "the stranger should reuse a worker identifier")
	assert.Equal(t, 0, rt.Stats().Stacks.InUse)
}
