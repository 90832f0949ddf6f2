package probes

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HTTPProber checks that an HTTP GET against a URL returns the expected status code.
type HTTPProber struct {
	url            string
	expectedStatus int
	timeout        time.Duration
}

// NewHTTPProber creates a prober for an HTTP_GET check.
func NewHTTPProber(url string, expectedStatus int, timeout time.Duration) *HTTPProber {
	return &HTTPProber{
		url:            url,
		expectedStatus: expectedStatus,
		timeout:        timeout,
	}
}

// Probe issues the GET request with the configured timeout as the full
// request deadline.
func (p *HTTPProber) Probe(ctx context.Context) Outcome {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return failedOutcome("Invalid request", err, time.Since(start))
	}

	client := &http.Client{Timeout: p.timeout}
	resp, err := client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return failedOutcome("Network error", err, latency)
	}
	defer resp.Body.Close()

	if resp.StatusCode != p.expectedStatus {
		return Outcome{
			Success: false,
			Message: fmt.Sprintf("Status code %d (expected %d)", resp.StatusCode, p.expectedStatus),
			Latency: latency,
		}
	}

	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Status code %d (expected %d)", resp.StatusCode, p.expectedStatus),
		Latency: latency,
	}
}
