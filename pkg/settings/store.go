// Package settings exposes the runtime-adjustable scheduler configuration
// stored in the settings table. The scheduler takes a fresh snapshot at the
// start of every tick, so operator changes apply from the next tick without
// a restart.
package settings

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"status-probe-engine/pkg/repositories"
	"status-probe-engine/pkg/types"
)

// Recognized settings keys.
const (
	KeyEnabled                = "enabled"
	KeySchedulerIntervalMs    = "schedulerIntervalMs"
	KeyThreadPoolSize         = "threadPoolSize"
	KeyDefaultIntervalSeconds = "defaultIntervalSeconds"
	KeyDefaultTimeoutSeconds  = "defaultTimeoutSeconds"
)

// IsRecognizedKey checks whether key is one of the supported settings keys.
func IsRecognizedKey(key string) bool {
	switch key {
	case KeyEnabled, KeySchedulerIntervalMs, KeyThreadPoolSize, KeyDefaultIntervalSeconds, KeyDefaultTimeoutSeconds:
		return true
	default:
		return false
	}
}

// SchedulerSettings is one tick's immutable view of the runtime settings.
// It is passed by value into the tick's collection and dispatch phases.
type SchedulerSettings struct {
	Enabled         bool
	TickInterval    time.Duration
	PoolSize        int
	DefaultInterval time.Duration
	DefaultTimeout  time.Duration
}

// ConfigSource supplies the engine configuration used for fallback values.
// *config.Manager satisfies it; the store reads it on every Snapshot so a
// config reload applies from the next tick.
type ConfigSource interface {
	Get() *types.EngineConfig
}

// Store reads and writes runtime settings, falling back to the engine
// config defaults for absent or malformed values.
type Store struct {
	repo   repositories.SettingsRepository
	config ConfigSource
	logger *logrus.Logger
}

// NewStore creates a settings store backed by the given repository.
func NewStore(repo repositories.SettingsRepository, config ConfigSource, logger *logrus.Logger) *Store {
	return &Store{
		repo:   repo,
		config: config,
		logger: logger,
	}
}

// Snapshot assembles the current scheduler settings. A repository failure
// yields the configured defaults so the scheduler keeps running on stale
// infrastructure rather than stopping.
func (s *Store) Snapshot() SchedulerSettings {
	defaults := s.config.Get()
	snapshot := SchedulerSettings{
		Enabled:         defaults.SchedulerEnabled,
		TickInterval:    time.Duration(defaults.SchedulerIntervalMs) * time.Millisecond,
		PoolSize:        defaults.WorkerPoolSize,
		DefaultInterval: time.Duration(defaults.DefaultIntervalSeconds) * time.Second,
		DefaultTimeout:  time.Duration(defaults.DefaultTimeoutSeconds) * time.Second,
	}

	values, err := s.repo.GetAll()
	if err != nil {
		s.logger.WithField("error", err).Error("Failed to read settings, using defaults for this tick")
		return snapshot
	}

	if raw, ok := values[KeyEnabled]; ok {
		if enabled, err := strconv.ParseBool(raw); err == nil {
			snapshot.Enabled = enabled
		} else {
			s.warnMalformed(KeyEnabled, raw)
		}
	}
	if ms, ok := s.positiveInt(values, KeySchedulerIntervalMs); ok {
		snapshot.TickInterval = time.Duration(ms) * time.Millisecond
	}
	if size, ok := s.positiveInt(values, KeyThreadPoolSize); ok {
		snapshot.PoolSize = size
	}
	if secs, ok := s.positiveInt(values, KeyDefaultIntervalSeconds); ok {
		snapshot.DefaultInterval = time.Duration(secs) * time.Second
	}
	if secs, ok := s.positiveInt(values, KeyDefaultTimeoutSeconds); ok {
		snapshot.DefaultTimeout = time.Duration(secs) * time.Second
	}

	return snapshot
}

func (s *Store) positiveInt(values map[string]string, key string) (int, bool) {
	raw, ok := values[key]
	if !ok {
		return 0, false
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		s.warnMalformed(key, raw)
		return 0, false
	}
	return parsed, true
}

func (s *Store) warnMalformed(key, raw string) {
	s.logger.WithFields(logrus.Fields{
		"key":   key,
		"value": raw,
	}).Warn("Malformed setting value, falling back to default")
}

// GetAll returns the persisted settings key/value map.
func (s *Store) GetAll() (map[string]string, error) {
	return s.repo.GetAll()
}

// Set validates and persists one setting. Unrecognized keys and values the
// scheduler could not interpret are rejected.
func (s *Store) Set(key, value string) error {
	if !IsRecognizedKey(key) {
		return fmt.Errorf("unrecognized setting key: %s", key)
	}

	switch key {
	case KeyEnabled:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("setting %s must be a boolean, got %q", key, value)
		}
	default:
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return fmt.Errorf("setting %s must be a positive integer, got %q", key, value)
		}
	}

	return s.repo.Set(key, value)
}
