// Package config loads the engine configuration file and keeps it fresh
// through filesystem watching, so deployments that mount the file as a
// ConfigMap pick up edits without a restart.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"status-probe-engine/pkg/types"
)

// Load reads an engine configuration from a YAML file. Fields absent from
// the file keep their default values; the result is validated before it is
// returned.
func Load(path string) (*types.EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := types.DefaultEngineConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}
