// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package thread

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kolkov/coopthread/internal/config"
	"github.com/kolkov/coopthread/internal/coop/sched"
)

// Runtime is one cooperative threading runtime. See [sched.Runtime].
type Runtime = sched.Runtime

// Tid identifies a thread.
type Tid = sched.Tid

// WaitQueue is a queue of threads blocked pending a Wakeup.
type WaitQueue = sched.WaitQueue

// Lock is a mutual-exclusion lock for threads of one runtime.
type Lock = sched.Lock

// Cond is a condition variable used with a Lock.
type Cond = sched.Cond

// Error describes a failed operation; errors.Is matches its cause.
type Error = sched.Error

// Stats is a snapshot of scheduler counters.
type Stats = sched.Stats

// ThreadInfo is a read-only snapshot of one thread.
type ThreadInfo = sched.ThreadInfo

// Config is the runtime configuration.
type Config = config.Config

// Option configures a Runtime.
type Option = sched.Option

// Special Yield targets.
const (
	// Any runs the head of the Ready Queue.
	Any = sched.Any

	// Self keeps running the caller.
	Self = sched.Self
)

// Error causes.
var (
	ErrInvalid  = sched.ErrInvalid
	ErrNoMore   = sched.ErrNoMore
	ErrNoMemory = sched.ErrNoMemory
	ErrNone     = sched.ErrNone
)

// New creates a runtime. Start it with Runtime.Run, or Runtime.Init to
// adopt the calling goroutine as the first thread.
//
// Example:
//
//	cfg := thread.DefaultConfig()
//	cfg.MaxThreads = 64
//	rt, err := thread.New(cfg, thread.WithLogger(logger))
func New(cfg Config, opts ...Option) (*Runtime, error) {
	return sched.New(cfg, opts...)
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return config.Default()
}

// LoadConfig reads the YAML file at path (optional) and COOPTHREAD_*
// environment overrides on top of the defaults.
func LoadConfig(path string) (Config, error) {
	return config.Load(path)
}

// WithLogger sets the runtime's structured logger.
func WithLogger(l *slog.Logger) Option {
	return sched.WithLogger(l)
}

// WithRegisterer registers the runtime's metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return sched.WithRegisterer(reg)
}

// WithHalt replaces the action taken when the last thread of a runtime
// started with Init exits. The default is os.Exit.
func WithHalt(fn func(code int)) Option {
	return sched.WithHalt(fn)
}
