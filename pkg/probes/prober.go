// Package probes contains the protocol-specific availability checks. Each
// prober converts every error it encounters into a failed Outcome; probe
// failures are expected negative results, never engine errors.
package probes

import (
	"context"
	"fmt"
	"time"

	"status-probe-engine/pkg/types"
)

// DefaultExpectedStatus is the HTTP status code expected when none is configured.
const DefaultExpectedStatus = 200

// Outcome is the result of a single probe execution.
type Outcome struct {
	Success bool
	Message string
	Latency time.Duration
}

// Prober executes one availability check against a fixed target.
type Prober interface {
	Probe(ctx context.Context) Outcome
}

// Config selects and parameterizes a prober.
type Config struct {
	Type           types.CheckType
	Target         string
	Timeout        time.Duration
	ExpectedStatus int
}

// New creates the prober for a check configuration.
func New(cfg Config) (Prober, error) {
	if cfg.Target == "" {
		return nil, fmt.Errorf("check target is empty")
	}

	switch cfg.Type {
	case types.CheckTypePing:
		return NewPingProber(cfg.Target, cfg.Timeout), nil
	case types.CheckTypeTCPPort:
		return NewTCPProber(cfg.Target, cfg.Timeout), nil
	case types.CheckTypeHTTPGet:
		expected := cfg.ExpectedStatus
		if expected == 0 {
			expected = DefaultExpectedStatus
		}
		return NewHTTPProber(cfg.Target, expected, cfg.Timeout), nil
	case types.CheckTypeServiceHealth:
		return NewServiceHealthProber(cfg.Target, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unsupported check type: %s", cfg.Type)
	}
}

func failedOutcome(context string, err error, latency time.Duration) Outcome {
	return Outcome{
		Success: false,
		Message: fmt.Sprintf("%s: %s", context, err.Error()),
		Latency: latency,
	}
}
