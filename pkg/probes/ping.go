package probes

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// PingProber checks network-layer reachability of a host.
type PingProber struct {
	host    string
	timeout time.Duration
}

// NewPingProber creates a prober for a PING check.
func NewPingProber(host string, timeout time.Duration) *PingProber {
	return &PingProber{
		host:    host,
		timeout: timeout,
	}
}

// Probe sends a single echo request. Unprivileged UDP mode is used so the
// engine does not need raw socket capabilities.
func (p *PingProber) Probe(ctx context.Context) Outcome {
	start := time.Now()

	pinger, err := probing.NewPinger(p.host)
	if err != nil {
		return failedOutcome("Host resolution failed", err, time.Since(start))
	}
	pinger.SetPrivileged(false)
	pinger.Count = 1
	pinger.Timeout = p.timeout

	if err := pinger.RunWithContext(ctx); err != nil {
		return failedOutcome("Ping failed", err, time.Since(start))
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return Outcome{
			Success: false,
			Message: fmt.Sprintf("No reply from %s within %s", p.host, p.timeout),
			Latency: time.Since(start),
		}
	}

	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Reply from %s in %s", p.host, stats.AvgRtt),
		Latency: stats.AvgRtt,
	}
}
