// mock-target is a controllable HTTP endpoint for exercising probes in
// development: its status code, health payload, and TCP acceptance can be
// flipped at runtime.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"net/http"
	"sync"
)

type targetState struct {
	mu           sync.RWMutex
	statusCode   int
	healthStatus string
}

func newTargetState() *targetState {
	return &targetState{statusCode: 200, healthStatus: "ok"}
}

func (s *targetState) get() (int, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusCode, s.healthStatus
}

func (s *targetState) set(code int, health string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCode = code
	s.healthStatus = health
}

func (s *targetState) statusHandler(w http.ResponseWriter, r *http.Request) {
	code, _ := s.get()
	w.WriteHeader(code)
	fmt.Fprintf(w, "Status: %d\n", code)
}

func (s *targetState) healthHandler(w http.ResponseWriter, r *http.Request) {
	code, health := s.get()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": health})
}

func (s *targetState) upHandler(w http.ResponseWriter, r *http.Request) {
	s.set(200, "ok")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Target is up")
}

func (s *targetState) downHandler(w http.ResponseWriter, r *http.Request) {
	s.set(503, "down")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Target is down")
}

func (s *targetState) degradeHandler(w http.ResponseWriter, r *http.Request) {
	// Serves 200 while reporting unhealthy, to distinguish http_get from
	// service_health probes.
	s.set(200, "degraded")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "Target is degraded")
}

// tcpListener accepts and immediately closes connections, enough for a
// tcp_port probe to succeed.
func tcpListener(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	return nil
}

func main() {
	port := flag.String("port", "8080", "HTTP port to listen on")
	tcpPort := flag.String("tcp-port", "9090", "TCP port to accept connections on")
	flag.Parse()

	state := newTargetState()
	http.HandleFunc("/status", state.statusHandler)
	http.HandleFunc("/healthz", state.healthHandler)
	http.HandleFunc("/up", state.upHandler)
	http.HandleFunc("/down", state.downHandler)
	http.HandleFunc("/degrade", state.degradeHandler)

	if err := tcpListener(":" + *tcpPort); err != nil {
		fmt.Printf("TCP listener failed: %v\n", err)
		return
	}
	fmt.Printf("Mock target accepting TCP on :%s\n", *tcpPort)

	addr := ":" + *port
	fmt.Printf("Mock target HTTP server starting on %s\n", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		fmt.Printf("Server failed: %v\n", err)
	}
}
