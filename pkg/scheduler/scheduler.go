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

// Package scheduler runs the periodic pulse sweeps on cron schedules: alert
// evaluation, redelivery of pending notifications, hour and day rollups and
// retention cleanup.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	cron "github.com/robfig/cron/v3"

	"github.com/carverauto/pulse/pkg/alerts"
	"github.com/carverauto/pulse/pkg/jobs"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

const (
	// pendingGrace leaves freshly created notifications to the inline enqueue.
	pendingGrace = time.Minute
	pendingLimit = 500
	sweepTimeout = 5 * time.Minute
)

var errRetentionDays = errors.New("retention days must be positive")

//go:generate mockgen -destination=mock_scheduler.go -package=scheduler github.com/carverauto/pulse/pkg/scheduler AlertSweeper,Store,Roller

// AlertSweeper evaluates every enabled rule of every project.
type AlertSweeper interface {
	EvaluateAll(ctx context.Context) (alerts.Summary, error)
}

// Store is the persistence the sweeps read and prune.
type Store interface {
	ListProjects(ctx context.Context) ([]*models.Project, error)
	ListPendingNotifications(ctx context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error)
	DeleteTracesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteMetricPointsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteAggregatedMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Roller folds finer rollups into coarser ones.
type Roller interface {
	Rollup(ctx context.Context, projectID uuid.UUID, from, to time.Time, g models.Granularity) (int, error)
}

// Specs are cron expressions, or descriptors such as "@every 1m", per sweep.
// An empty spec disables the sweep.
type Specs struct {
	AlertEvaluation string
	PendingNotify   string
	HourlyRollup    string
	DailyRollup     string
	Retention       string
}

type Config struct {
	Specs         Specs
	RetentionDays int
}

// Scheduler owns the cron runner. Overlapping runs of one sweep are skipped.
type Scheduler struct {
	cfg      Config
	alerts   AlertSweeper
	store    Store
	roller   Roller
	enqueuer jobs.Enqueuer
	logger   logger.Logger
	cron     *cron.Cron
	now      func() time.Time
	ctx      context.Context
	cancel   context.CancelFunc
	entries  map[string]cron.EntryID
}

// New registers every configured sweep. Invalid specs fail here rather than at runtime.
func New(cfg Config, sweeper AlertSweeper, store Store, roller Roller, enqueuer jobs.Enqueuer, log logger.Logger) (*Scheduler, error) {
	if cfg.RetentionDays <= 0 {
		return nil, errRetentionDays
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	cl := cronLogger{log: log}

	s := &Scheduler{
		cfg:      cfg,
		alerts:   sweeper,
		store:    store,
		roller:   roller,
		enqueuer: enqueuer,
		logger:   log,
		now:      time.Now,
		entries:  make(map[string]cron.EntryID),
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	sweeps := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"alert_evaluation", cfg.Specs.AlertEvaluation, s.EvaluateAlerts},
		{"pending_notifications", cfg.Specs.PendingNotify, s.RequeuePending},
		{"hourly_rollup", cfg.Specs.HourlyRollup, s.RollupHours},
		{"daily_rollup", cfg.Specs.DailyRollup, s.RollupDays},
		{"retention", cfg.Specs.Retention, s.Prune},
	}

	for _, sw := range sweeps {
		if sw.spec == "" {
			continue
		}

		if err := s.register(sw.name, sw.spec, sw.run); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Scheduler) register(name, spec string, run func(context.Context) error) error {
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(s.ctx, sweepTimeout)
		defer cancel()

		start := time.Now()
		err := run(ctx)

		sweepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		if err != nil {
			sweepsTotal.WithLabelValues(name, "error").Inc()
			s.logger.Error().Err(err).Str("sweep", name).Msg("Scheduled sweep failed")

			return
		}

		sweepsTotal.WithLabelValues(name, "ok").Inc()
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}

	s.entries[name] = id

	return nil
}

// Entries returns the registered sweep names with their next run time.
func (s *Scheduler) Entries() map[string]time.Time {
	out := make(map[string]time.Time, len(s.entries))
	for name, id := range s.entries {
		out[name] = s.cron.Entry(id).Next
	}

	return out
}

// Start runs the cron loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info().Int("sweeps", len(s.entries)).Msg("Starting scheduler")
	s.cron.Start()

	<-ctx.Done()

	return nil
}

// Stop cancels running sweeps and waits for them to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()

	done := s.cron.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EvaluateAlerts runs one alert evaluation sweep.
func (s *Scheduler) EvaluateAlerts(ctx context.Context) error {
	sum, err := s.alerts.EvaluateAll(ctx)
	if err != nil {
		return err
	}

	s.logger.Debug().
		Int("projects", sum.Projects).
		Int("rules", sum.Rules).
		Int("fired", sum.Fired).
		Int("resolved", sum.Resolved).
		Int("failed", sum.Failed).
		Msg("Evaluated alert rules")

	return nil
}

// RequeuePending enqueues delivery jobs for notifications still pending past the grace period.
func (s *Scheduler) RequeuePending(ctx context.Context) error {
	ids, err := s.store.ListPendingNotifications(ctx, s.now().Add(-pendingGrace), pendingLimit)
	if err != nil {
		return err
	}

	dropped := 0

	for _, id := range ids {
		if !s.enqueuer.Enqueue(jobs.SendNotification(id)) {
			dropped++
		}
	}

	if len(ids) > 0 {
		s.logger.Info().Int("pending", len(ids)).Int("dropped", dropped).Msg("Requeued pending notifications")
	}

	return nil
}

// RollupHours folds minute rows of the previous and current hour.
func (s *Scheduler) RollupHours(ctx context.Context) error {
	now := s.now().UTC()
	return s.rollup(ctx, now.Truncate(time.Hour).Add(-time.Hour), now, models.GranularityHour)
}

// RollupDays folds hour rows of the previous and current day.
func (s *Scheduler) RollupDays(ctx context.Context) error {
	now := s.now().UTC()
	return s.rollup(ctx, models.GranularityDay.Truncate(now).AddDate(0, 0, -1), now, models.GranularityDay)
}

func (s *Scheduler) rollup(ctx context.Context, from, to time.Time, g models.Granularity) error {
	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	var errs []error

	for _, p := range projects {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if _, err := s.roller.Rollup(ctx, p.ID, from, to, g); err != nil {
			errs = append(errs, fmt.Errorf("project %s: %w", p.Slug, err))
		}
	}

	return errors.Join(errs...)
}

// Prune deletes traces, metric points and rollups older than the retention period.
func (s *Scheduler) Prune(ctx context.Context) error {
	cutoff := s.now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)

	traces, err := s.store.DeleteTracesBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	points, err := s.store.DeleteMetricPointsBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	rollups, err := s.store.DeleteAggregatedMetricsBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	s.logger.Info().
		Time("cutoff", cutoff).
		Int64("traces", traces).
		Int64("metric_points", points).
		Int64("rollups", rollups).
		Msg("Pruned expired data")

	return nil
}

// cronLogger adapts the injected logger to cron's logging interface.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
