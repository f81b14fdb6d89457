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

package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/pulse/pkg/models"
)

//go:generate mockgen -destination=mock_db.go -package=db github.com/carverauto/pulse/pkg/db Service

// Service is every storage operation pulse performs. Consumers depend on the
// narrow slice they need; *DB satisfies all of them.
type Service interface {
	Close() error
	Ping(ctx context.Context) error

	// Projects.

	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error)
	GetProjectByAPIKey(ctx context.Context, key string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)

	// Trace and span writes.

	FindTracesByTraceIDs(ctx context.Context, traceIDs []string) (map[string]*models.Trace, error)
	FindTracesByRequestIDs(ctx context.Context, projectID uuid.UUID, requestIDs []string) (map[string]*models.Trace, error)
	InsertTraces(ctx context.Context, traces []*models.Trace) error
	InsertSpans(ctx context.Context, spans []*models.Span) error
	CompleteTraces(ctx context.Context, traces []*models.Trace) error
	RecomputeRollups(ctx context.Context, traceRowIDs []uuid.UUID) (map[uuid.UUID]models.Rollups, error)

	// Trace and span reads.

	GetTrace(ctx context.Context, projectID uuid.UUID, traceID string) (*models.Trace, error)
	ListTraces(ctx context.Context, projectID uuid.UUID, f models.TraceFilter) ([]*models.Trace, error)
	ListTracesInWindow(ctx context.Context, q WindowQuery) ([]*models.Trace, error)
	ListTraceSpans(ctx context.Context, traceRowID uuid.UUID, kinds ...models.SpanKind) ([]*models.Span, error)
	ListDBSpansForTraces(ctx context.Context, traceRowIDs []uuid.UUID) (map[uuid.UUID][]*models.Span, error)
	ListBucketSpans(ctx context.Context, projectID uuid.UUID, kind models.SpanKind, from, to time.Time) ([]*models.Span, error)
	ListDBSpanRecords(ctx context.Context, projectID uuid.UUID, since time.Time, minDurationMs float64, limit int) ([]models.DBSpanRecord, error)
	CountTracesSince(ctx context.Context, projectID uuid.UUID, since time.Time) (int, error)
	RequestOverview(ctx context.Context, projectID uuid.UUID, since time.Time, thresholdMs float64) (*OverviewCounts, error)
	EndpointStats(ctx context.Context, projectID uuid.UUID, since time.Time, sort EndpointSort, limit int) ([]models.EndpointStat, error)
	RequestTimeSeries(ctx context.Context, projectID uuid.UUID, since time.Time, granularity models.Granularity) ([]models.TimeBucket, error)

	// Custom metrics and rollups.

	EnsureMetrics(ctx context.Context, projectID uuid.UUID, defs []models.Metric) (map[string]*models.Metric, error)
	InsertMetricPoints(ctx context.Context, points []models.MetricPoint) error
	ListMetrics(ctx context.Context, projectID uuid.UUID) ([]*models.Metric, error)
	GetMetricByName(ctx context.Context, projectID uuid.UUID, name string) (*models.Metric, error)
	MetricStats(ctx context.Context, metricID uuid.UUID, granularity models.Granularity, since time.Time) ([]models.MetricStat, error)
	MetricValues(ctx context.Context, projectID uuid.UUID, name string, since time.Time) ([]float64, error)
	UpsertAggregatedMetrics(ctx context.Context, rows []models.AggregatedMetric) error
	ListAggregatedMetrics(ctx context.Context, q AggregateQuery) ([]models.AggregatedMetric, error)

	// Alert rules and alerts.

	CreateAlertRule(ctx context.Context, r *models.AlertRule) error
	UpdateAlertRule(ctx context.Context, r *models.AlertRule) error
	DeleteAlertRule(ctx context.Context, projectID, id uuid.UUID) error
	GetAlertRule(ctx context.Context, projectID, id uuid.UUID) (*models.AlertRule, error)
	ListAlertRules(ctx context.Context, projectID uuid.UUID, enabledOnly bool) ([]*models.AlertRule, error)
	TouchAlertRule(ctx context.Context, ruleID uuid.UUID, at time.Time) error
	TriggerAlertRule(ctx context.Context, alert *models.Alert) ([]uuid.UUID, error)
	ResolveAlertRule(ctx context.Context, ruleID uuid.UUID, at time.Time) (int64, error)
	ListAlerts(ctx context.Context, projectID uuid.UUID, f AlertFilter) ([]*models.Alert, error)

	// Notification channels and deliveries.

	CreateChannel(ctx context.Context, c *models.NotificationChannel) error
	UpdateChannel(ctx context.Context, c *models.NotificationChannel) error
	DeleteChannel(ctx context.Context, projectID, id uuid.UUID) error
	GetChannel(ctx context.Context, projectID, id uuid.UUID) (*models.NotificationChannel, error)
	ListChannels(ctx context.Context, projectID uuid.UUID) ([]*models.NotificationChannel, error)
	GetNotificationDelivery(ctx context.Context, id uuid.UUID) (*models.NotificationDelivery, error)
	MarkNotificationSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkNotificationFailed(ctx context.Context, id uuid.UUID, msg string, at time.Time) (bool, error)
	ListPendingNotifications(ctx context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error)

	// Retention.

	DeleteTracesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteMetricPointsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteAggregatedMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ Service = (*DB)(nil)
