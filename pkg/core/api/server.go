/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api is the pulse HTTP surface: ingestion, dashboard reads, alert
// configuration, project provisioning and the live stream.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carverauto/pulse/pkg/broadcast"
	phttp "github.com/carverauto/pulse/pkg/http"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 60 * time.Second
	defaultAddr         = ":8080"
)

// APIServer routes the JSON API. Start and Stop make it a lifecycle.Service.
type APIServer struct {
	router     *mux.Router
	handler    http.Handler
	corsConfig models.CORSConfig
	logger     logger.Logger
	addr       string

	projects    ProjectStore
	resolver    *phttp.CachedResolver
	keyCacheTTL time.Duration
	masterKey   string

	ingestor    Ingestor
	recorder    MetricRecorder
	reader      Reader
	patterns    PatternFinder
	evaluator   RuleEvaluator
	config      ConfigStore
	broadcaster broadcast.Broadcaster
	hub         LiveHub
	pinger      Pinger
	mcp         MCPRouteRegistrar

	now func() time.Time

	mu  sync.Mutex
	srv *http.Server
}

func NewAPIServer(config models.CORSConfig, options ...func(server *APIServer)) *APIServer {
	s := &APIServer{
		router:      mux.NewRouter(),
		corsConfig:  config,
		logger:      logger.NewTestLogger(),
		addr:        defaultAddr,
		broadcaster: broadcast.Nop{},
		now:         time.Now,
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

func WithLogger(log logger.Logger) func(*APIServer) {
	return func(s *APIServer) {
		if log != nil {
			s.logger = log
		}
	}
}

func WithAddr(addr string) func(*APIServer) {
	return func(s *APIServer) {
		s.addr = addr
	}
}

// WithProjectStore enables key authentication and provisioning.
func WithProjectStore(p ProjectStore, cacheTTL time.Duration) func(*APIServer) {
	return func(s *APIServer) {
		s.projects = p
		s.keyCacheTTL = cacheTTL
	}
}

func WithMasterKey(key string) func(*APIServer) {
	return func(s *APIServer) {
		s.masterKey = key
	}
}

func WithIngestor(i Ingestor) func(*APIServer) {
	return func(s *APIServer) {
		s.ingestor = i
	}
}

func WithMetricRecorder(r MetricRecorder) func(*APIServer) {
	return func(s *APIServer) {
		s.recorder = r
	}
}

func WithReader(r Reader) func(*APIServer) {
	return func(s *APIServer) {
		s.reader = r
	}
}

func WithPatternFinder(p PatternFinder) func(*APIServer) {
	return func(s *APIServer) {
		s.patterns = p
	}
}

func WithRuleEvaluator(e RuleEvaluator) func(*APIServer) {
	return func(s *APIServer) {
		s.evaluator = e
	}
}

func WithConfigStore(c ConfigStore) func(*APIServer) {
	return func(s *APIServer) {
		s.config = c
	}
}

// WithBroadcaster publishes configuration changes to live clients.
func WithBroadcaster(b broadcast.Broadcaster) func(*APIServer) {
	return func(s *APIServer) {
		if b != nil {
			s.broadcaster = b
		}
	}
}

func WithLiveHub(h LiveHub) func(*APIServer) {
	return func(s *APIServer) {
		s.hub = h
	}
}

func WithPinger(p Pinger) func(*APIServer) {
	return func(s *APIServer) {
		s.pinger = p
	}
}

func WithMCP(m MCPRouteRegistrar) func(*APIServer) {
	return func(s *APIServer) {
		s.mcp = m
	}
}

func (s *APIServer) setupRoutes() {
	if s.projects != nil {
		s.resolver = phttp.NewCachedResolver(s.projects, s.keyCacheTTL)
	}

	s.router.Use(s.instrument)
	s.setupProbeRoutes()
	s.setupProjectRoutes()
	s.setupBrowserRoutes()
	s.setupProtectedRoutes()

	s.handler = s.browserCORS(phttp.CommonMiddleware(s.router, s.corsConfig, s.logger))
}

func (s *APIServer) setupProbeRoutes() {
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.ready).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

func (s *APIServer) setupProjectRoutes() {
	provision := s.requireMasterKey(http.HandlerFunc(s.provisionProject))

	s.router.Handle("/api/v1/projects", provision).Methods(http.MethodPost)
	s.router.Handle("/api/v1/projects/provision", provision).Methods(http.MethodPost)
	s.router.Handle("/api/v1/projects/lookup", s.requireMasterKey(http.HandlerFunc(s.lookupProject))).Methods(http.MethodGet)
}

func (s *APIServer) setupBrowserRoutes() {
	auth := phttp.APIKeyMiddlewareWithOptions(phttp.APIKeyOptions{
		Resolver:        s.resolver,
		AllowIngestKey:  true,
		LogUnauthorized: true,
		Logger:          s.logger,
	})

	s.router.Handle("/api/v1/browser", auth(s.checkBrowserOrigin(http.HandlerFunc(s.ingestBrowser)))).
		Methods(http.MethodPost)
}

// setupProtectedRoutes configures the project-scoped API routes.
func (s *APIServer) setupProtectedRoutes() {
	protected := s.router.PathPrefix("/api/v1").Subrouter()
	protected.Use(phttp.APIKeyMiddlewareWithOptions(phttp.APIKeyOptions{
		Resolver:        s.resolver,
		LogUnauthorized: true,
		Logger:          s.logger,
	}))

	protected.HandleFunc("/traces", s.createTrace).Methods(http.MethodPost)
	protected.HandleFunc("/traces/batch", s.batchTraces).Methods(http.MethodPost)
	protected.HandleFunc("/traces", s.listTraces).Methods(http.MethodGet)
	protected.HandleFunc("/traces/{trace_id}", s.getTrace).Methods(http.MethodGet)
	protected.HandleFunc("/traces/{trace_id}/spans", s.appendSpans).Methods(http.MethodPost)
	protected.HandleFunc("/spans", s.createSpan).Methods(http.MethodPost)
	protected.HandleFunc("/spans/batch", s.batchSpans).Methods(http.MethodPost)

	protected.HandleFunc("/metrics", s.createMetric).Methods(http.MethodPost)
	protected.HandleFunc("/metrics/batch", s.batchMetrics).Methods(http.MethodPost)
	protected.HandleFunc("/metrics", s.listMetrics).Methods(http.MethodGet)
	protected.HandleFunc("/metrics/{name}/stats", s.metricStats).Methods(http.MethodGet)

	protected.HandleFunc("/overview", s.overview).Methods(http.MethodGet)
	protected.HandleFunc("/endpoints", s.endpoints).Methods(http.MethodGet)
	protected.HandleFunc("/throughput", s.throughput).Methods(http.MethodGet)
	protected.HandleFunc("/queries", s.queries).Methods(http.MethodGet)
	protected.HandleFunc("/n_plus_one", s.nPlusOne).Methods(http.MethodGet)

	protected.HandleFunc("/alert_rules", s.listAlertRules).Methods(http.MethodGet)
	protected.HandleFunc("/alert_rules", s.createAlertRule).Methods(http.MethodPost)
	protected.HandleFunc("/alert_rules/{id}", s.getAlertRule).Methods(http.MethodGet)
	protected.HandleFunc("/alert_rules/{id}", s.updateAlertRule).Methods(http.MethodPut)
	protected.HandleFunc("/alert_rules/{id}", s.deleteAlertRule).Methods(http.MethodDelete)
	protected.HandleFunc("/alert_rules/{id}/evaluate", s.evaluateAlertRule).Methods(http.MethodPost)
	protected.HandleFunc("/alerts", s.listAlerts).Methods(http.MethodGet)

	protected.HandleFunc("/channels", s.listChannels).Methods(http.MethodGet)
	protected.HandleFunc("/channels", s.createChannel).Methods(http.MethodPost)
	protected.HandleFunc("/channels/{id}", s.getChannel).Methods(http.MethodGet)
	protected.HandleFunc("/channels/{id}", s.updateChannel).Methods(http.MethodPut)
	protected.HandleFunc("/channels/{id}", s.deleteChannel).Methods(http.MethodDelete)

	protected.HandleFunc("/live", s.live).Methods(http.MethodGet)

	if s.mcp != nil {
		authed := s.router.NewRoute().Subrouter()
		authed.Use(phttp.APIKeyMiddlewareWithOptions(phttp.APIKeyOptions{
			Resolver:        s.resolver,
			LogUnauthorized: true,
			Logger:          s.logger,
		}))
		s.mcp.RegisterRoutes(authed)
	}
}

// ServeHTTP makes the server usable directly in tests and behind other muxes.
func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start listens in the background; serve errors are logged.
func (s *APIServer) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadTimeout:       defaultReadTimeout,
		ReadHeaderTimeout: defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}

	srv := s.srv

	go func() {
		s.logger.Info().Str("addr", srv.Addr).Msg("Starting API server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("API server stopped")
		}
	}()

	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *APIServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}
