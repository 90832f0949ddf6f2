package probes

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPProberProbe(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	prober := NewTCPProber(listener.Addr().String(), time.Second)
	outcome := prober.Probe(context.Background())

	assert.True(t, outcome.Success)
	assert.Contains(t, outcome.Message, "Connected to")
}

func TestTCPProberConnectionRefused(t *testing.T) {
	// Grab a free port and close it again so nothing is listening there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()
	require.NoError(t, listener.Close())

	prober := NewTCPProber(address, time.Second)
	outcome := prober.Probe(context.Background())

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Message, "Connect failed")
}
