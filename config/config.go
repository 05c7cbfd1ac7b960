// Package config loads inspector configuration from environment variables,
// with an optional YAML file overlay. Grounded on vanducng-goclaw's
// internal/config (Default() supplying baseline values, Load() overlaying a
// file then env vars, one envStr-style helper per variable) adapted from
// goclaw's JSON5 file format to gopkg.in/yaml.v3, since no third-party JSON5
// library appears anywhere else in the broader example pack and yaml.v3 is
// the ecosystem-standard choice for this kind of small overlay file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds every inspector-wide setting spec.md §6 names, plus the
// YAML-only fields (MaxWriters, RotateBytes, heartbeat/ring tuning) that
// have no direct env var but are reasonable to let an operator override via
// file.
type Config struct {
	Port            int    `yaml:"port"`
	TracesDir       string `yaml:"traces_dir"`
	Debug           bool   `yaml:"debug"`
	MaxWriters      int    `yaml:"max_writers"`
	RotateBytes     int64  `yaml:"rotate_bytes"`
	RingCapacity    int    `yaml:"ring_capacity"`
	SubscriberQueue int    `yaml:"subscriber_queue"`
	HeartbeatSecs   int    `yaml:"heartbeat_seconds"`
}

// Default returns a Config with spec.md's documented defaults: port 7800,
// ~/.mcp_traces, debug off.
func Default() *Config {
	return &Config{
		Port:            7800,
		TracesDir:       defaultTracesDir(),
		MaxWriters:      50,
		RotateBytes:     100 * 1024 * 1024,
		RingCapacity:    1000,
		SubscriberQueue: 256,
		HeartbeatSecs:   15,
	}
}

func defaultTracesDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "mcp_traces")
	}
	return filepath.Join(home, ".mcp_traces")
}

// Load builds a Config by starting from Default(), overlaying an optional
// YAML file (path may be empty — a missing file is not an error), then
// applying env var overrides, which always win over the file per spec.md
// §6's environment-variable contract.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays the four environment variables spec.md §6
// names. INSPECTOR_ENABLE_PATCH is read but intentionally ignored — it is
// documented as "reserved for legacy fallback" and a fresh implementation
// has no legacy path to fall back to.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("INSPECTOR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("TRACES_DIR"); v != "" {
		c.TracesDir = v
	}
	if v := os.Getenv("INSPECTOR_DEBUG"); v != "" {
		c.Debug = true
	}
	_ = os.Getenv("INSPECTOR_ENABLE_PATCH")
}

// Addr returns the bind address for the gateway's standalone HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", c.Port)
}
