package probes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ServiceHealthProber checks a structured health endpoint: the response must
// be 2xx and carry a JSON body whose top-level status field denotes "up".
type ServiceHealthProber struct {
	url     string
	timeout time.Duration
}

// NewServiceHealthProber creates a prober for a SERVICE_HEALTH check.
func NewServiceHealthProber(url string, timeout time.Duration) *ServiceHealthProber {
	return &ServiceHealthProber{
		url:     url,
		timeout: timeout,
	}
}

// healthyValues are the accepted spellings of a healthy status indicator.
var healthyValues = map[string]bool{
	"up":      true,
	"ok":      true,
	"healthy": true,
	"pass":    true,
	"passing": true,
	"true":    true,
}

func isHealthyIndicator(value interface{}) bool {
	switch v := value.(type) {
	case string:
		return healthyValues[strings.ToLower(strings.TrimSpace(v))]
	case bool:
		return v
	default:
		return false
	}
}

// Probe fetches and parses the health payload.
func (p *ServiceHealthProber) Probe(ctx context.Context) Outcome {
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

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{
			Success: false,
			Message: fmt.Sprintf("Health endpoint returned status code %d", resp.StatusCode),
			Latency: latency,
		}
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return failedOutcome("Invalid health payload", err, latency)
	}

	indicator, ok := payload["status"]
	if !ok {
		return Outcome{
			Success: false,
			Message: "Health payload has no status field",
			Latency: latency,
		}
	}

	if !isHealthyIndicator(indicator) {
		return Outcome{
			Success: false,
			Message: fmt.Sprintf("Service reports status %v", indicator),
			Latency: latency,
		}
	}

	return Outcome{
		Success: true,
		Message: fmt.Sprintf("Service reports status %v", indicator),
		Latency: latency,
	}
}
