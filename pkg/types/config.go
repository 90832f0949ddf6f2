package types

import (
	"fmt"
	"time"
)

// EngineConfig contains the static engine configuration loaded from the YAML
// config file. Runtime-adjustable scheduler settings live in the settings
// table instead; the values here only act as fallbacks when a settings key
// is absent or malformed.
type EngineConfig struct {
	// Timezone is the reference timezone for uptime aggregation. Daily
	// timelines cover [00:00, 24:00) of this zone.
	Timezone string `json:"timezone" yaml:"timezone"`

	// DegradedUptimeWeight is the fraction of downtime credit a degraded
	// minute carries in the uptime percentage: 0 counts degraded minutes as
	// fully up, 1 counts them as full downtime.
	DegradedUptimeWeight float64 `json:"degraded_uptime_weight" yaml:"degraded_uptime_weight"`

	// ProbeGraceSeconds is added on top of a probe's configured timeout when
	// deriving its context deadline, so a hung target cannot hold a worker
	// past timeout + grace.
	ProbeGraceSeconds int `json:"probe_grace_seconds" yaml:"probe_grace_seconds"`

	SchedulerEnabled       bool `json:"scheduler_enabled" yaml:"scheduler_enabled"`
	SchedulerIntervalMs    int  `json:"scheduler_interval_ms" yaml:"scheduler_interval_ms"`
	WorkerPoolSize         int  `json:"worker_pool_size" yaml:"worker_pool_size"`
	DefaultIntervalSeconds int  `json:"default_interval_seconds" yaml:"default_interval_seconds"`
	DefaultTimeoutSeconds  int  `json:"default_timeout_seconds" yaml:"default_timeout_seconds"`
}

// DefaultEngineConfig returns the engine configuration used when no config
// file value overrides it.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Timezone:               "UTC",
		DegradedUptimeWeight:   0.5,
		ProbeGraceSeconds:      2,
		SchedulerEnabled:       true,
		SchedulerIntervalMs:    10000,
		WorkerPoolSize:         10,
		DefaultIntervalSeconds: 60,
		DefaultTimeoutSeconds:  10,
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *EngineConfig) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.DegradedUptimeWeight < 0 || c.DegradedUptimeWeight > 1 {
		return fmt.Errorf("degraded_uptime_weight must be between 0 and 1, got %v", c.DegradedUptimeWeight)
	}
	if c.ProbeGraceSeconds < 0 {
		return fmt.Errorf("probe_grace_seconds cannot be negative, got %d", c.ProbeGraceSeconds)
	}
	if c.SchedulerIntervalMs <= 0 {
		return fmt.Errorf("scheduler_interval_ms must be positive, got %d", c.SchedulerIntervalMs)
	}
	if c.WorkerPoolSize <= 0 {
		return fmt.Errorf("worker_pool_size must be positive, got %d", c.WorkerPoolSize)
	}
	return nil
}

// Location resolves the configured reference timezone. Validate must have
// succeeded beforehand.
func (c *EngineConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
