package probes

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPProber checks that a TCP connection to host:port can be established.
type TCPProber struct {
	address string
	timeout time.Duration
}

// NewTCPProber creates a prober for a TCP_PORT check. The address must be in
// host:port form.
func NewTCPProber(address string, timeout time.Duration) *TCPProber {
	return &TCPProber{
		address: address,
		timeout: timeout,
	}
}

// Probe attempts the connection; success means it was established within the timeout.
func (p *TCPProber) Probe(ctx context.Context) Outcome {
	start := time.Now()

	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	latency := time.Since(start)
	if err != nil {
		return failedOutcome("Connect failed", err, latency)
	}
	_ = conn.Close()

	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Connected to %s", p.address),
		Latency: latency,
	}
}
