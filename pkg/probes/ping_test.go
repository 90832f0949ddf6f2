package probes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPingProberUnresolvableHost(t *testing.T) {
	// .invalid is reserved and never resolves.
	prober := NewPingProber("host.invalid", time.Second)
	outcome := prober.Probe(context.Background())

	assert.False(t, outcome.Success)
	assert.NotEmpty(t, outcome.Message)
}
