package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server is the operator-facing HTTP API of the probe engine.
type Server struct {
	logger     *logrus.Logger
	handlers   *Handlers
	registry   *prometheus.Registry
	corsOrigin string
	hmacSecret []byte
	httpServer *http.Server
}

// NewServer creates a new Server instance.
func NewServer(handlers *Handlers, registry *prometheus.Registry, logger *logrus.Logger, corsOrigin string, hmacSecret []byte) *Server {
	return &Server{
		logger:     logger,
		handlers:   handlers,
		registry:   registry,
		corsOrigin: corsOrigin,
		hmacSecret: hmacSecret,
	}
}

type route struct {
	path      string
	method    string
	handler   func(http.ResponseWriter, *http.Request)
	protected bool
}

func (s *Server) setupRoutes() http.Handler {
	routes := []route{
		{
			path:      "/health",
			method:    http.MethodGet,
			handler:   s.handlers.HealthJSON,
			protected: false,
		},
		{
			path:      "/api/checks",
			method:    http.MethodGet,
			handler:   s.handlers.GetChecksJSON,
			protected: false,
		},
		{
			path:      "/api/checks/trigger",
			method:    http.MethodPost,
			handler:   s.handlers.TriggerAllChecksJSON,
			protected: true,
		},
		{
			path:      "/api/checks/{entityId:[0-9]+}/trigger",
			method:    http.MethodPost,
			handler:   s.handlers.TriggerEntityCheckJSON,
			protected: true,
		},
		{
			path:      "/api/uptime/backfill",
			method:    http.MethodPost,
			handler:   s.handlers.BackfillUptimeJSON,
			protected: true,
		},
		{
			path:      "/api/uptime/recompute",
			method:    http.MethodPost,
			handler:   s.handlers.RecomputeUptimeJSON,
			protected: true,
		},
		{
			path:      "/api/uptime/daily",
			method:    http.MethodPost,
			handler:   s.handlers.RunDailyUptimeJSON,
			protected: true,
		},
		{
			path:      "/api/settings",
			method:    http.MethodGet,
			handler:   s.handlers.GetSettingsJSON,
			protected: false,
		},
		{
			path:      "/api/settings",
			method:    http.MethodPut,
			handler:   s.handlers.UpdateSettingsJSON,
			protected: true,
		},
	}

	router := mux.NewRouter()
	protectedRouter := router.Name("protected").Subrouter()
	protectedRouter.Use(func(next http.Handler) http.Handler {
		return newAuthMiddleware(s.logger, s.hmacSecret, next)
	})

	for _, route := range routes {
		if route.protected {
			protectedRouter.HandleFunc(route.path, route.handler).Methods(route.method)
		} else {
			router.HandleFunc(route.path, route.handler).Methods(route.method)
		}
	}

	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	corsHandler := handlers.CORS(
		handlers.AllowedOrigins([]string{s.corsOrigin}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Forwarded-User", "GAP-Signature"}),
		handlers.AllowCredentials(),
	)(router)

	return s.loggingMiddleware(corsHandler)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Info("Request processed")
	})
}

// Start begins listening for HTTP requests on the specified address.
func (s *Server) Start(addr string) error {
	handler := s.setupRoutes()
	s.logger.Infof("Starting probe engine API on %s", addr)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down probe engine API")
	return s.httpServer.Shutdown(ctx)
}
