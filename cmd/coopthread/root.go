// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kolkov/coopthread/internal/config"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var gf globalFlags

	root := &cobra.Command{
		Use:   "coopthread",
		Short: "Run scenarios on a cooperative user-level threading runtime",
		Long: `coopthread runs built-in scenarios on a single-core cooperative
threading runtime: FIFO scheduling, join, kill of blocked threads, locks and
a bounded work queue. Scheduler counters are printed when a scenario ends and
can be scraped from a Prometheus endpoint while it runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&gf.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&gf.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newRunCmd(&gf),
		newScenariosCmd(),
		newVersionCmd(),
	)
	return root
}

// loadConfig resolves configuration from the file, the environment and the
// global flags.
func loadConfig(gf *globalFlags) (config.Config, error) {
	cfg, err := config.Load(gf.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if gf.logLevel != "" {
		if _, err := config.ParseLevel(gf.logLevel); err != nil {
			return config.Config{}, fmt.Errorf("--log-level: %w", err)
		}
		cfg.LogLevel = gf.logLevel
	}
	return cfg, nil
}

// newLogger builds the text logger used by the CLI.
func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}
