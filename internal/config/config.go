// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads runtime configuration for coopthread.
//
// Values are resolved in three layers, later layers winning:
//
//  1. Built-in defaults (Default)
//  2. Optional YAML file
//  3. COOPTHREAD_* environment variables
//
// Example file:
//
//	max_threads: 256
//	stack_size: 65536
//	memory_limit: 16777216
//	preempt_interval: 10ms
//	log_level: debug
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxThreads bounds the identifier space.
	DefaultMaxThreads = 1024

	// DefaultStackSize is the per-thread stack reservation in bytes.
	DefaultStackSize = 32 << 10

	// maxThreadsCeiling keeps the identifier table a sane size.
	maxThreadsCeiling = 1 << 16
)

// Config is the runtime configuration.
//
// Thread Safety: Safe to read concurrently. Not safe to modify after the
// runtime is created.
type Config struct {
	// MaxThreads is the number of identifier slots, bootstrap included.
	MaxThreads int `json:"max_threads" yaml:"max_threads"`

	// StackSize is the per-thread stack reservation in bytes.
	StackSize int `json:"stack_size" yaml:"stack_size"`

	// MemoryLimit caps the total bytes of stack reservations. 0 = unlimited.
	MemoryLimit int64 `json:"memory_limit" yaml:"memory_limit"`

	// PreemptInterval is the simulated timer period. 0 disables preemption.
	PreemptInterval time.Duration `json:"preempt_interval" yaml:"preempt_interval"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Strict makes every scheduler entry verify that it is called from the
	// goroutine hosting the current thread. Costs a stack walk per call.
	Strict bool `json:"strict" yaml:"strict"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxThreads: DefaultMaxThreads,
		StackSize:  DefaultStackSize,
		LogLevel:   "info",
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := loadEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) error {
	if v := os.Getenv("COOPTHREAD_MAX_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("COOPTHREAD_MAX_THREADS: %w", err)
		}
		cfg.MaxThreads = n
	}
	if v := os.Getenv("COOPTHREAD_STACK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("COOPTHREAD_STACK_SIZE: %w", err)
		}
		cfg.StackSize = n
	}
	if v := os.Getenv("COOPTHREAD_MEMORY_LIMIT"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("COOPTHREAD_MEMORY_LIMIT: %w", err)
		}
		cfg.MemoryLimit = n
	}
	if v := os.Getenv("COOPTHREAD_PREEMPT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("COOPTHREAD_PREEMPT_INTERVAL: %w", err)
		}
		cfg.PreemptInterval = d
	}
	if v := os.Getenv("COOPTHREAD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("COOPTHREAD_STRICT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COOPTHREAD_STRICT: %w", err)
		}
		cfg.Strict = b
	}
	return nil
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	var errs []error
	if c.MaxThreads < 1 {
		errs = append(errs, fmt.Errorf("max_threads must be at least 1, got %d", c.MaxThreads))
	}
	if c.MaxThreads > maxThreadsCeiling {
		errs = append(errs, fmt.Errorf("max_threads must be at most %d, got %d", maxThreadsCeiling, c.MaxThreads))
	}
	if c.StackSize <= 0 {
		errs = append(errs, fmt.Errorf("stack_size must be positive, got %d", c.StackSize))
	}
	if c.MemoryLimit < 0 {
		errs = append(errs, fmt.Errorf("memory_limit must not be negative, got %d", c.MemoryLimit))
	}
	if c.PreemptInterval < 0 {
		errs = append(errs, fmt.Errorf("preempt_interval must not be negative, got %s", c.PreemptInterval))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// SlogLevel returns the slog level for LogLevel, Info if unset.
func (c Config) SlogLevel() slog.Level {
	l, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseLevel maps a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log_level %q", s)
	}
}
