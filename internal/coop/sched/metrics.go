// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sched

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// =============================================================================
// Prometheus Metrics for the Scheduler
// =============================================================================

// metrics holds one runtime's collectors. They are per-runtime rather than
// promauto globals so several runtimes (one per test) can coexist.
type metrics struct {
	// switches counts context switches, self round trips included.
	switches prometheus.Counter

	// created counts successful Create calls.
	created prometheus.Counter

	// terminated counts terminations.
	// Labels: reason (exit, kill)
	terminated *prometheus.CounterVec

	// reaped counts TCBs whose resources were reclaimed.
	reaped prometheus.Counter

	// preemptions counts forced yields delivered from timer ticks.
	preemptions prometheus.Counter

	// refusals counts operations refused with ErrNone.
	// Labels: op
	refusals *prometheus.CounterVec

	// live tracks registry occupancy.
	live prometheus.Gauge

	// ready tracks the Ready Queue length.
	ready prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	const ns, sub = "coopthread", "sched"
	m := &metrics{
		switches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "context_switches_total",
			Help: "Total context switches performed by the scheduler",
		}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "threads_created_total",
			Help: "Total threads created",
		}),
		terminated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "threads_terminated_total",
			Help: "Total threads terminated by reason",
		}, []string{"reason"}),
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "threads_reaped_total",
			Help: "Total terminated threads whose resources were reclaimed",
		}),
		preemptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "preemptions_total",
			Help: "Total forced yields delivered from timer ticks",
		}),
		refusals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "no_runnable_total",
			Help: "Total operations refused because no other thread was runnable",
		}, []string{"op"}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "live_threads",
			Help: "Number of live thread identifiers",
		}),
		ready: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "ready_queue_length",
			Help: "Number of threads in the Ready Queue",
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.switches, m.created, m.terminated, m.reaped,
		m.preemptions, m.refusals, m.live, m.ready,
	} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register scheduler metrics: %w", err)
		}
	}
	return m, nil
}
