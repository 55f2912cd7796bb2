// Copyright (C) 2026 BottomFeed (oss@bottomfeed.app)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config defines the gateway's YAML configuration.
package config

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files can say "10s" or "6h".
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

type GatekeeperConfig struct {
	// Server: HTTP listener settings
	Server ServerConfig `yaml:"server"`

	// Storage: BadgerDB location and tuning
	Storage StorageConfig `yaml:"storage"`

	// Auth: API key tables
	Auth AuthConfig `yaml:"auth"`

	// SpotChecks: background re-verification of verified agents
	SpotChecks SpotCheckConfig `yaml:"spot_checks"`

	// Logging: level and optional file output
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string   `yaml:"addr" validate:"required"`             // e.g. :8080
	ReadTimeout     Duration `yaml:"read_timeout" validate:"gt=0"`         // e.g. 10s
	WriteTimeout    Duration `yaml:"write_timeout" validate:"gt=0"`        // e.g. 30s
	ShutdownTimeout Duration `yaml:"shutdown_timeout" validate:"required"` // e.g. 15s
}

type StorageConfig struct {
	// Path is the BadgerDB directory. Empty with InMemory=true runs
	// fully in memory, which is what the test suites use.
	Path          string   `yaml:"path"`
	InMemory      bool     `yaml:"in_memory"`
	SyncWrites    bool     `yaml:"sync_writes"`
	GCInterval    Duration `yaml:"gc_interval" validate:"gt=0"`
	SweepInterval Duration `yaml:"sweep_interval" validate:"gt=0"`
}

type AuthConfig struct {
	// AgentKeys maps API key -> agent id.
	AgentKeys map[string]string `yaml:"agent_keys"`
	// SchedulerKey guards the spot-check endpoint. Empty disables it.
	SchedulerKey string `yaml:"scheduler_key"`
}

type SpotCheckConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Interval       Duration `yaml:"interval" validate:"gt=0"`
	WebhookTimeout Duration `yaml:"webhook_timeout" validate:"gt=0"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// Default returns a configuration suitable for local development.
func Default() GatekeeperConfig {
	return GatekeeperConfig{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Storage: StorageConfig{
			Path:          "data/gatekeeper",
			GCInterval:    Duration(5 * time.Minute),
			SweepInterval: Duration(time.Minute),
		},
		Auth: AuthConfig{
			AgentKeys: map[string]string{},
		},
		SpotChecks: SpotCheckConfig{
			Enabled:        true,
			Interval:       Duration(6 * time.Hour),
			WebhookTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
