// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package preempt

import (
	"context"
	"sync"
	"time"
)

// Timer posts ticks to a Mask at a fixed interval until stopped.
type Timer struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// StartTimer starts posting ticks to m every interval. A non-positive
// interval returns a stopped timer that never ticks.
func StartTimer(ctx context.Context, m *Mask, interval time.Duration) *Timer {
	t := &Timer{cancel: func() {}}
	if interval <= 0 {
		return t
	}

	ctx, t.cancel = context.WithCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				m.Post()
			}
		}
	}()
	return t
}

// Stop halts the timer and waits for its goroutine to exit. Safe to call
// more than once.
func (t *Timer) Stop() {
	t.cancel()
	t.wg.Wait()
}
