// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package main implements the coopthread CLI tool.
//
// The tool runs built-in scenarios on a cooperative threading runtime and
// prints what the scheduler did. It is a demonstration and smoke-test
// harness for the runtime:
//
//  1. Load configuration (YAML file, COOPTHREAD_* environment, flags)
//  2. Build a runtime with structured logging and Prometheus metrics
//  3. Run the scenario as the bootstrap thread until the last thread exits
//  4. Print the scheduler counters
//
// Usage:
//
//	coopthread run fifo                       # FIFO turn-taking
//	coopthread run kill --log-level debug     # kill of a blocked thread
//	coopthread run workq --workers 4 --items 100 --metrics-addr :9090
//	coopthread scenarios                      # list scenarios
//	coopthread version --require v0.1.0       # check compatibility
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
