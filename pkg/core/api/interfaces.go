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

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/carverauto/pulse/pkg/alerts"
	"github.com/carverauto/pulse/pkg/broadcast"
	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/ingest"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/nplusone"
	"github.com/carverauto/pulse/pkg/query"
)

// Ingestor writes traces, spans and browser events.
type Ingestor interface {
	Process(ctx context.Context, rc ingest.RequestContext, payload models.TracePayload) (*models.Trace, error)
	ProcessBatch(ctx context.Context, rc ingest.RequestContext, payloads []models.TracePayload) ([]*models.Trace, error)
	AppendSpans(
		ctx context.Context, rc ingest.RequestContext, traceID string, payloads []models.SpanPayload,
	) (*models.Trace, []*models.Span, error)
	ProcessSpanBatch(ctx context.Context, rc ingest.RequestContext, payloads []models.SpanPayload) ([]ingest.SpanResult, error)
	IngestBrowser(
		ctx context.Context, rc ingest.RequestContext, payload ingest.BrowserPayload, tc *ingest.TraceContext,
	) (ingest.BrowserResult, error)
}

// MetricRecorder writes custom metric samples.
type MetricRecorder interface {
	Record(ctx context.Context, rc ingest.RequestContext, payloads []models.MetricPayload) ([]*models.Metric, error)
}

// Reader serves the dashboard reads.
type Reader interface {
	Overview(ctx context.Context, project *models.Project, since time.Time) (*models.Overview, error)
	Endpoints(
		ctx context.Context, project *models.Project, since time.Time, sort db.EndpointSort, limit int) ([]models.EndpointStat, error)
	Throughput(
		ctx context.Context, project *models.Project, since time.Time, g models.Granularity) (*query.Throughput, error)
	Traces(ctx context.Context, project *models.Project, f models.TraceFilter) ([]*models.Trace, error)
	Trace(ctx context.Context, project *models.Project, traceID string) (*models.TraceDetail, error)
	Metrics(ctx context.Context, project *models.Project) ([]*models.Metric, error)
	Metric(
		ctx context.Context, project *models.Project, name string, g models.Granularity, since time.Time) (*query.MetricSeries, error)
	Queries(ctx context.Context, project *models.Project, since time.Time) (*query.QueryReport, error)
}

// PatternFinder reports N+1 query patterns.
type PatternFinder interface {
	FindAffectedTraces(ctx context.Context, projectID uuid.UUID, window time.Duration, limit int) ([]nplusone.AffectedTrace, error)
	AggregatePatterns(ctx context.Context, projectID uuid.UUID, window time.Duration, limit int) ([]nplusone.AggregatedPattern, error)
}

// RuleEvaluator evaluates one alert rule on demand.
type RuleEvaluator interface {
	EvaluateRule(ctx context.Context, project *models.Project, rule *models.AlertRule) (*alerts.Outcome, error)
}

// ConfigStore persists alert rules and notification channels.
type ConfigStore interface {
	CreateAlertRule(ctx context.Context, r *models.AlertRule) error
	UpdateAlertRule(ctx context.Context, r *models.AlertRule) error
	DeleteAlertRule(ctx context.Context, projectID, id uuid.UUID) error
	GetAlertRule(ctx context.Context, projectID, id uuid.UUID) (*models.AlertRule, error)
	ListAlertRules(ctx context.Context, projectID uuid.UUID, enabledOnly bool) ([]*models.AlertRule, error)
	ListAlerts(ctx context.Context, projectID uuid.UUID, f db.AlertFilter) ([]*models.Alert, error)

	CreateChannel(ctx context.Context, c *models.NotificationChannel) error
	UpdateChannel(ctx context.Context, c *models.NotificationChannel) error
	DeleteChannel(ctx context.Context, projectID, id uuid.UUID) error
	GetChannel(ctx context.Context, projectID, id uuid.UUID) (*models.NotificationChannel, error)
	ListChannels(ctx context.Context, projectID uuid.UUID) ([]*models.NotificationChannel, error)
}

// ProjectStore resolves and provisions projects.
type ProjectStore interface {
	GetProjectByAPIKey(ctx context.Context, key string) (*models.Project, error)
	GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error)
	CreateProject(ctx context.Context, p *models.Project) error
}

// Pinger backs the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LiveHub upgrades live-stream requests.
type LiveHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, projectID uuid.UUID, channels []broadcast.Channel)
}

// MCPRouteRegistrar mounts the MCP endpoints on an authenticated router.
type MCPRouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}
