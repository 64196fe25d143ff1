// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kolkov/coopthread/internal/coop/workq"
	"github.com/kolkov/coopthread/thread"
)

// scenario is a program run as the bootstrap thread.
type scenario struct {
	name  string
	brief string
	run   func(rt *thread.Runtime, out io.Writer, rf runFlags) error
}

var scenarios = []scenario{
	{"fifo", "threads take turns through the FIFO Ready Queue", runFIFO},
	{"join", "the bootstrap waits on workers that have not started yet", runJoin},
	{"kill", "a thread blocked on a lock is killed and reaped once woken", runKill},
	{"lock", "threads increment a counter under a lock, yielding inside", runLock},
	{"workq", "a bounded work queue served by worker threads", runWorkq},
}

func lookupScenario(name string) (scenario, bool) {
	for _, sc := range scenarios {
		if sc.name == name {
			return sc, true
		}
	}
	return scenario{}, false
}

func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the built-in scenarios",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, sc := range scenarios {
				fmt.Fprintf(cmd.OutOrStdout(), "%-6s %s\n", sc.name, sc.brief)
			}
		},
	}
}

// waitAll joins ids. A thread that already exited is not an error.
func waitAll(rt *thread.Runtime, ids []thread.Tid) error {
	for _, id := range ids {
		if _, err := rt.Wait(id); err != nil && !errors.Is(err, thread.ErrInvalid) {
			return err
		}
	}
	return nil
}

func runFIFO(rt *thread.Runtime, out io.Writer, rf runFlags) error {
	rounds := min(rf.items, 3)
	var ids []thread.Tid
	for i := 0; i < rf.threads; i++ {
		id, err := rt.Create(func(any) {
			for r := 0; r < rounds; r++ {
				fmt.Fprintf(out, "thread %d: round %d\n", rt.ID(), r)
				_, _ = rt.Yield(thread.Any)
			}
		}, nil)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	return waitAll(rt, ids)
}

func runJoin(rt *thread.Runtime, out io.Writer, rf runFlags) error {
	var ids []thread.Tid
	for i := 0; i < rf.threads; i++ {
		id, err := rt.Create(func(arg any) {
			for n := 0; n < arg.(int); n++ {
				_, _ = rt.Yield(thread.Any)
			}
			fmt.Fprintf(out, "thread %d: exiting after %d yields\n", rt.ID(), arg.(int))
		}, rf.threads-i)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		got, err := rt.Wait(id)
		if err != nil && !errors.Is(err, thread.ErrInvalid) {
			return err
		}
		if err == nil {
			fmt.Fprintf(out, "bootstrap: joined %d\n", got)
		}
	}
	return nil
}

func runKill(rt *thread.Runtime, out io.Writer, _ runFlags) error {
	l := rt.NewLock()
	if err := l.Acquire(); err != nil {
		return err
	}

	victim, err := rt.Create(func(any) {
		if err := l.Acquire(); err != nil {
			return
		}
		fmt.Fprintf(out, "thread %d: acquired the lock (unexpected)\n", rt.ID())
		_ = l.Release()
	}, nil)
	if err != nil {
		return err
	}
	_, _ = rt.Yield(thread.Any)

	in, _ := rt.Info(victim)
	fmt.Fprintf(out, "thread %d is %s in wait queue %d\n", victim, in.State, in.QueueID)
	if _, err := rt.Kill(victim); err != nil {
		return err
	}
	in, live := rt.Info(victim)
	fmt.Fprintf(out, "after kill: live=%v killed=%v\n", live, in.Condemned)

	if err := l.Release(); err != nil {
		return err
	}
	if _, err := rt.Yield(thread.Any); err != nil {
		return err
	}
	_, live = rt.Info(victim)
	fmt.Fprintf(out, "after release and yield: live=%v\n", live)
	return nil
}

func runLock(rt *thread.Runtime, out io.Writer, rf runFlags) error {
	l := rt.NewLock()
	counter := 0
	var ids []thread.Tid
	for i := 0; i < rf.threads; i++ {
		id, err := rt.Create(func(any) {
			for r := 0; r < rf.items; r++ {
				if err := l.Acquire(); err != nil {
					return
				}
				v := counter
				_, _ = rt.Yield(thread.Any)
				counter = v + 1
				_ = l.Release()
			}
		}, nil)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := waitAll(rt, ids); err != nil {
		return err
	}
	fmt.Fprintf(out, "counter = %d (want %d)\n", counter, rf.threads*rf.items)
	if counter != rf.threads*rf.items {
		return fmt.Errorf("lost updates: counter %d, want %d", counter, rf.threads*rf.items)
	}
	return l.Destroy()
}

func runWorkq(rt *thread.Runtime, out io.Writer, rf runFlags) error {
	perWorker := map[thread.Tid]int{}
	capacity := max(rf.threads/2, 1)
	p, err := workq.New(rt, rf.threads, capacity, func(item int) {
		perWorker[rt.ID()]++
		if item%3 == 0 {
			_, _ = rt.Yield(thread.Any)
		}
	})
	if err != nil {
		return err
	}
	for i := 0; i < rf.items; i++ {
		if err := p.Submit(i); err != nil {
			return err
		}
	}
	if err := p.Shutdown(); err != nil {
		return err
	}
	for _, id := range p.Workers() {
		fmt.Fprintf(out, "worker %d handled %d\n", id, perWorker[id])
	}
	fmt.Fprintf(out, "handled %d of %d\n", p.Handled(), rf.items)
	return nil
}
