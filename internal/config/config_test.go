// Copyright 2025 The coopthread Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultMaxThreads, cfg.MaxThreads)
	assert.Equal(t, DefaultStackSize, cfg.StackSize)
	assert.Zero(t, cfg.PreemptInterval)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coopthread.yaml")
	data := []byte("max_threads: 16\nstack_size: 4096\nmemory_limit: 65536\npreempt_interval: 5ms\nlog_level: debug\nstrict: true\n")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.MaxThreads)
	assert.Equal(t, 4096, cfg.StackSize)
	assert.Equal(t, int64(65536), cfg.MemoryLimit)
	assert.Equal(t, 5*time.Millisecond, cfg.PreemptInterval)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.True(t, cfg.Strict)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coopthread.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_threads: 16\n"), 0o600))

	t.Setenv("COOPTHREAD_MAX_THREADS", "8")
	t.Setenv("COOPTHREAD_PREEMPT_INTERVAL", "1ms")
	t.Setenv("COOPTHREAD_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxThreads)
	assert.Equal(t, time.Millisecond, cfg.PreemptInterval)
	assert.Equal(t, slog.LevelWarn, cfg.SlogLevel())
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("max_threads: [\n"), 0o600))
		_, err := Load(path)
		assert.Error(t, err)
	})
	t.Run("bad env", func(t *testing.T) {
		t.Setenv("COOPTHREAD_STACK_SIZE", "big")
		_, err := Load("")
		assert.ErrorContains(t, err, "COOPTHREAD_STACK_SIZE")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero threads", func(c *Config) { c.MaxThreads = 0 }, "max_threads"},
		{"too many threads", func(c *Config) { c.MaxThreads = 1 << 20 }, "max_threads"},
		{"zero stack", func(c *Config) { c.StackSize = 0 }, "stack_size"},
		{"negative limit", func(c *Config) { c.MemoryLimit = -1 }, "memory_limit"},
		{"negative interval", func(c *Config) { c.PreemptInterval = -time.Second }, "preempt_interval"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}
