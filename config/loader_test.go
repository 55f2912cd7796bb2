// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatekeeper.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.FileExists(t, path)
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatekeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
  read_timeout: 5s
  write_timeout: 20s
  shutdown_timeout: 10s
storage:
  in_memory: true
  gc_interval: 1m
  sweep_interval: 30s
auth:
  agent_keys:
    secret-key: agent-42
  scheduler_key: ops-key
spot_checks:
  enabled: false
  interval: 2h
  webhook_timeout: 5s
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.True(t, cfg.Storage.InMemory)
	assert.Equal(t, "agent-42", cfg.Auth.AgentKeys["secret-key"])
	assert.Equal(t, 2*time.Hour, cfg.SpotChecks.Interval.Std())
	assert.False(t, cfg.SpotChecks.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatekeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
logging:
  level: loud
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingStoragePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatekeeper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  path: ""
  in_memory: false
  gc_interval: 1m
  sweep_interval: 30s
`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
