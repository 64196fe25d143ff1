// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kolkov/coopthread/thread"
)

// runFlags configure the run command.
type runFlags struct {
	metricsAddr string
	threads     int
	items       int
	preempt     time.Duration
	dump        bool
}

func newRunCmd(gf *globalFlags) *cobra.Command {
	var rf runFlags

	cmd := &cobra.Command{
		Use:   "run <scenario>",
		Short: "Run a scenario and print scheduler counters",
		Long: `Run executes one built-in scenario as the bootstrap thread of a fresh
runtime and returns when its last thread exits. See "coopthread scenarios".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(gf)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("preempt") {
				cfg.PreemptInterval = rf.preempt
			}
			return runScenario(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, args[0], rf)
		},
	}

	cmd.Flags().StringVar(&rf.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the scenario runs")
	cmd.Flags().IntVar(&rf.threads, "threads", 4, "number of threads (workers) the scenario starts")
	cmd.Flags().IntVar(&rf.items, "items", 20, "number of work items or rounds")
	cmd.Flags().DurationVar(&rf.preempt, "preempt", 0, "simulated timer interval (overrides config)")
	cmd.Flags().BoolVar(&rf.dump, "dump", false, "print the thread table before the bootstrap thread exits")
	return cmd
}

// runScenario runs the named scenario next to an optional metrics server.
// The server is shut down once the scenario finishes.
func runScenario(ctx context.Context, out, errOut io.Writer, cfg thread.Config, name string, rf runFlags) error {
	sc, ok := lookupScenario(name)
	if !ok {
		return fmt.Errorf("unknown scenario %q (see 'coopthread scenarios')", name)
	}
	if rf.threads < 1 || rf.items < 1 {
		return fmt.Errorf("--threads and --items must be positive")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	log := newLogger(errOut, cfg)
	rt, err := thread.New(cfg, thread.WithLogger(log), thread.WithRegisterer(reg))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	if rf.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: rf.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info("serving metrics", "addr", rf.metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var scErr error
	g.Go(func() error {
		defer cancel()
		start := time.Now()
		err := rt.Run(func(any) {
			scErr = sc.run(rt, out, rf)
			if rf.dump {
				rt.Dump(out)
			}
		}, nil)
		if err != nil {
			return err
		}
		log.Debug("scenario finished", "scenario", name, "elapsed", time.Since(start))
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if scErr != nil {
		return fmt.Errorf("scenario %s: %w", name, scErr)
	}
	printStats(out, rt.Stats())
	return nil
}

func printStats(w io.Writer, s thread.Stats) {
	fmt.Fprintf(w, "------------------\n")
	fmt.Fprintf(w, "created=%d exited=%d killed=%d reaped=%d\n", s.Created, s.Exited, s.Killed, s.Reaped)
	fmt.Fprintf(w, "switches=%d preemptions=%d\n", s.Switches, s.Preemptions)
	fmt.Fprintf(w, "stacks: allocs=%d frees=%d failures=%d in_use=%d\n",
		s.Stacks.Allocs, s.Stacks.Frees, s.Stacks.Failures, s.Stacks.InUse)
}
