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

// Package app assembles the pulse process for the api and worker roles.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carverauto/pulse/pkg/aggregator"
	"github.com/carverauto/pulse/pkg/alerts"
	"github.com/carverauto/pulse/pkg/broadcast"
	"github.com/carverauto/pulse/pkg/config"
	"github.com/carverauto/pulse/pkg/consumers/worker"
	"github.com/carverauto/pulse/pkg/core/api"
	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/ingest"
	"github.com/carverauto/pulse/pkg/jobs"
	"github.com/carverauto/pulse/pkg/lifecycle"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/mcp"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/natsutil"
	"github.com/carverauto/pulse/pkg/notify"
	"github.com/carverauto/pulse/pkg/nplusone"
	"github.com/carverauto/pulse/pkg/query"
	"github.com/carverauto/pulse/pkg/scheduler"
	"github.com/carverauto/pulse/pkg/version"
)

const (
	RoleAPI    = "api"
	RoleWorker = "worker"
	RoleAll    = "all"

	serviceName       = "pulse"
	jobBuffer         = 4096
	metricsReadHeader = 5 * time.Second
)

var errUnknownRole = errors.New("unknown role")

// Options contains runtime configuration derived from CLI flags.
type Options struct {
	ConfigPath string
	Role       string
}

// Run boots the requested role and blocks until shutdown.
func Run(ctx context.Context, opts Options) error {
	if !slices.Contains([]string{RoleAPI, RoleWorker, RoleAll}, opts.Role) {
		return fmt.Errorf("%w: %q", errUnknownRole, opts.Role)
	}

	boot := logger.NewTestLogger()

	cfg, err := config.Load(ctx, opts.ConfigPath, boot)
	if err != nil {
		return err
	}

	mainLogger, err := lifecycle.CreateComponentLogger(ctx, "pulse-"+opts.Role, &cfg.Logging)
	if err != nil {
		return err
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			mainLogger.Error().Err(err).Msg("Error shutting down logger")
		}
	}()

	tp, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetFullVersion(),
		OTel:           &cfg.Logging.OTel,
	})
	if err != nil {
		return err
	}

	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			mainLogger.Error().Err(err).Msg("Error shutting down tracer provider")
		}
	}()

	if _, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName:    serviceName,
		ServiceVersion: version.GetFullVersion(),
		OTel:           &cfg.Logging.OTel,
	}); err != nil && !errors.Is(err, logger.ErrOTelMetricsDisabled) {
		return err
	}

	svc, err := build(ctx, cfg, opts.Role, mainLogger)
	if err != nil {
		return err
	}

	mainLogger.Info().
		Str("role", opts.Role).
		Str("version", version.GetFullVersion()).
		Msg("Starting pulse")

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ServiceName: serviceName + "-" + opts.Role,
		Service:     svc,
		Logger:      mainLogger,
	})
}

// deps are the connections shared by both roles.
type deps struct {
	cfg         *config.Config
	log         logger.Logger
	db          *db.DB
	nc          *nats.Conn
	dispatcher  *jobs.Dispatcher
	broadcaster broadcast.Broadcaster
}

func build(ctx context.Context, cfg *config.Config, role string, log logger.Logger) (*group, error) {
	database, err := db.New(ctx, &cfg.Database, log)
	if err != nil {
		return nil, err
	}

	nc, err := natsutil.ConnectWithSecurity(cfg.NATS.URL, cfg.NATS.Security, log, nats.Name(serviceName+"-"+role))
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	js, err := natsutil.NewJetStream(nc, cfg.NATS.Domain)
	if err != nil {
		nc.Close()
		_ = database.Close()

		return nil, err
	}

	if _, err := natsutil.EnsureStream(ctx, js, cfg.NATS.StreamName, []string{jobs.SubjectWildcard}); err != nil {
		nc.Close()
		_ = database.Close()

		return nil, err
	}

	d := &deps{
		cfg:         cfg,
		log:         log,
		db:          database,
		nc:          nc,
		dispatcher:  jobs.NewDispatcher(natsutil.NewPublisher(js, log), jobBuffer, log),
		broadcaster: broadcast.NewNATSPublisher(nc),
	}

	g := &group{
		log: log,
		cleanup: func() {
			d.dispatcher.Close()
			nc.Close()

			if err := database.Close(); err != nil {
				log.Warn().Err(err).Msg("Error closing database")
			}
		},
	}

	g.add("job dispatcher", runFunc(func(ctx context.Context) error {
		d.dispatcher.Run(ctx)
		return nil
	}))

	if role == RoleAPI || role == RoleAll {
		d.addAPI(g)
	}

	if role == RoleWorker || role == RoleAll {
		if err := d.addWorker(g); err != nil {
			g.cleanup()
			return nil, err
		}
	}

	return g, nil
}

func (d *deps) addAPI(g *group) {
	hub := broadcast.NewHub(d.log, func(r *http.Request) bool {
		return api.OriginAllowed(r.Header.Get("Origin"), d.cfg.CORS.AllowedOrigins)
	})

	repo := ingest.NewDBRepository(d.db)
	reader := query.NewService(d.db, d.log)
	detector := nplusone.NewDetector(d.db, d.log)
	evaluator := alerts.NewEvaluator(d.db, d.broadcaster, d.dispatcher, d.log)

	server := api.NewAPIServer(d.cfg.CORS,
		api.WithLogger(d.log),
		api.WithAddr(d.cfg.ListenAddr),
		api.WithProjectStore(d.db, time.Duration(d.cfg.APIKeyCacheTTL)),
		api.WithMasterKey(d.cfg.MasterKey),
		api.WithIngestor(ingest.NewTraceProcessor(repo, d.broadcaster, d.dispatcher, d.log)),
		api.WithMetricRecorder(ingest.NewMetricRecorder(repo, d.log)),
		api.WithReader(reader),
		api.WithPatternFinder(detector),
		api.WithRuleEvaluator(evaluator),
		api.WithConfigStore(d.db),
		api.WithBroadcaster(d.broadcaster),
		api.WithLiveHub(hub),
		api.WithPinger(d.db),
		api.WithMCP(mcp.NewMCPServer(reader, detector, d.log, &mcp.MCPConfig{Enabled: !d.cfg.DisableMCP})),
	)

	g.add("live relay", broadcast.NewRelay(d.nc, hub, d.log))
	g.add("api server", blockUntilDone(server))
	g.onStop(hub.Close)
}

func (d *deps) addWorker(g *group) error {
	client := &http.Client{Timeout: time.Duration(d.cfg.NotifyTimeout)}

	notifier := notify.NewDispatcher(d.db, map[models.ChannelKind]notify.Transport{
		models.ChannelKindWebhook:   notify.NewWebhook(client),
		models.ChannelKindSlack:     notify.NewSlack(client),
		models.ChannelKindPagerDuty: notify.NewPagerDuty(client, notify.PagerDutyEventsURL),
		models.ChannelKindEmail: notify.NewEmail(notify.EmailConfig{
			Host:     d.cfg.SMTP.Host,
			Port:     d.cfg.SMTP.Port,
			Username: d.cfg.SMTP.Username,
			Password: d.cfg.SMTP.Password,
			From:     d.cfg.SMTP.From,
		}),
	}, d.log)

	agg := aggregator.New(d.db, d.log)

	consumer, err := worker.NewService(worker.Config{
		NATS:       d.cfg.NATS,
		PoolSize:   d.cfg.Worker.PoolSize,
		FetchBatch: d.cfg.Worker.FetchBatch,
	}, worker.NewProcessor(agg, notifier, d.log), d.log)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Config{
		Specs: scheduler.Specs{
			AlertEvaluation: d.cfg.Schedule.AlertEvaluation,
			PendingNotify:   d.cfg.Schedule.PendingNotify,
			HourlyRollup:    d.cfg.Schedule.HourlyRollup,
			DailyRollup:     d.cfg.Schedule.DailyRollup,
			Retention:       d.cfg.Schedule.Retention,
		},
		RetentionDays: d.cfg.RetentionDays,
	}, alerts.NewEvaluator(d.db, d.broadcaster, d.dispatcher, d.log), d.db, agg, d.dispatcher, d.log)
	if err != nil {
		return err
	}

	g.add("job consumer", consumer)
	g.add("scheduler", sched)

	if d.cfg.WorkerMetricsAddr != "" {
		g.add("worker metrics", newMetricsServer(d.cfg.WorkerMetricsAddr, d.log))
	}

	return nil
}

// metricsServer exposes /metrics for the worker role, which has no API server.
type metricsServer struct {
	srv *http.Server
	log logger.Logger
}

func newMetricsServer(addr string, log logger.Logger) *metricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &metricsServer{
		srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: metricsReadHeader},
		log: log,
	}
}

func (m *metricsServer) Start(context.Context) error {
	m.log.Info().Str("addr", m.srv.Addr).Msg("Serving worker metrics")

	if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (m *metricsServer) Stop(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
