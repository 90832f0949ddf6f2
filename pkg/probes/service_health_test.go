package probes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServiceHealthProberProbe(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		body        string
		wantSuccess bool
		wantMessage string
	}{
		{
			name:        "status up",
			statusCode:  http.StatusOK,
			body:        `{"status":"UP"}`,
			wantSuccess: true,
			wantMessage: "Service reports status UP",
		},
		{
			name:        "status ok",
			statusCode:  http.StatusOK,
			body:        `{"status":"ok"}`,
			wantSuccess: true,
		},
		{
			name:        "status healthy with extra fields",
			statusCode:  http.StatusOK,
			body:        `{"status":"healthy","components":{"db":"up"}}`,
			wantSuccess: true,
		},
		{
			name:        "boolean true indicator",
			statusCode:  http.StatusOK,
			body:        `{"status":true}`,
			wantSuccess: true,
		},
		{
			name:        "status down",
			statusCode:  http.StatusOK,
			body:        `{"status":"DOWN"}`,
			wantSuccess: false,
			wantMessage: "Service reports status DOWN",
		},
		{
			name:        "non-2xx response",
			statusCode:  http.StatusServiceUnavailable,
			body:        `{"status":"UP"}`,
			wantSuccess: false,
			wantMessage: "Health endpoint returned status code 503",
		},
		{
			name:        "malformed payload",
			statusCode:  http.StatusOK,
			body:        `{"status":`,
			wantSuccess: false,
			wantMessage: "Invalid health payload",
		},
		{
			name:        "missing status field",
			statusCode:  http.StatusOK,
			body:        `{"state":"UP"}`,
			wantSuccess: false,
			wantMessage: "Health payload has no status field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			prober := NewServiceHealthProber(server.URL, time.Second)
			outcome := prober.Probe(context.Background())

			assert.Equal(t, tt.wantSuccess, outcome.Success)
			if tt.wantMessage != "" {
				assert.Contains(t, outcome.Message, tt.wantMessage)
			}
		})
	}
}
