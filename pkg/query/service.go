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

// Package query serves the read side: overview, endpoint breakdown, trace
// detail, time series and the database query analyzer.
package query

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/pulse/pkg/apdex"
	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/stats"
)

// ErrNotFound is returned when a trace or metric does not exist in the project.
var ErrNotFound = errors.New("not found")

// Store is the read model. *db.DB satisfies it.
type Store interface {
	RequestOverview(ctx context.Context, projectID uuid.UUID, since time.Time, thresholdMs float64) (*db.OverviewCounts, error)
	EndpointStats(
		ctx context.Context, projectID uuid.UUID, since time.Time, sort db.EndpointSort, limit int) ([]models.EndpointStat, error)
	RequestTimeSeries(
		ctx context.Context, projectID uuid.UUID, since time.Time, granularity models.Granularity) ([]models.TimeBucket, error)
	GetTrace(ctx context.Context, projectID uuid.UUID, traceID string) (*models.Trace, error)
	ListTraces(ctx context.Context, projectID uuid.UUID, f models.TraceFilter) ([]*models.Trace, error)
	ListTraceSpans(ctx context.Context, traceRowID uuid.UUID, kinds ...models.SpanKind) ([]*models.Span, error)
	ListDBSpanRecords(
		ctx context.Context, projectID uuid.UUID, since time.Time, minDurationMs float64, limit int) ([]models.DBSpanRecord, error)
	CountTracesSince(ctx context.Context, projectID uuid.UUID, since time.Time) (int, error)
	ListMetrics(ctx context.Context, projectID uuid.UUID) ([]*models.Metric, error)
	GetMetricByName(ctx context.Context, projectID uuid.UUID, name string) (*models.Metric, error)
	MetricStats(
		ctx context.Context, metricID uuid.UUID, granularity models.Granularity, since time.Time) ([]models.MetricStat, error)
}

// Service answers dashboard and tool queries for one project at a time.
type Service struct {
	store  Store
	logger logger.Logger
	now    func() time.Time
}

func NewService(store Store, log logger.Logger) *Service {
	return &Service{
		store:  store,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Overview summarizes request traffic since the cutoff. Apdex is scored over
// completed requests; throughput and error rate count every request.
func (s *Service) Overview(ctx context.Context, project *models.Project, since time.Time) (*models.Overview, error) {
	c, err := s.store.RequestOverview(ctx, project.ID, since, project.Threshold()*1000)
	if err != nil {
		return nil, err
	}

	minutes := s.now().Sub(since).Minutes()

	out := &models.Overview{
		WindowMinutes: math.Round(minutes*10) / 10,
		Apdex:         apdex.FromCounts(c.Satisfied, c.Tolerating, c.Completed),
		Throughput:    c.Total,
		ErrorCount:    c.Errors,
		ErrorRate:     stats.Rate(c.Errors, c.Total),
		P95DurationMs: c.P95Ms,
		P99DurationMs: c.P99Ms,
	}

	if minutes > 0 {
		out.RPM = math.Round(float64(c.Total)/minutes*10) / 10
	}

	if c.AvgMs != nil {
		avg := models.Round2(*c.AvgMs)
		out.AvgDurationMs = &avg
	}

	return out, nil
}

// Endpoints ranks request endpoints.
func (s *Service) Endpoints(
	ctx context.Context, project *models.Project, since time.Time, sort db.EndpointSort, limit int) ([]models.EndpointStat, error) {
	return s.store.EndpointStats(ctx, project.ID, since, sort, limit)
}

// Throughput is the request count per bucket.
type Throughput struct {
	Series      []models.TimeBucket `json:"throughput"`
	Granularity models.Granularity  `json:"granularity"`
	Total       int                 `json:"total"`
}

func (s *Service) Throughput(
	ctx context.Context, project *models.Project, since time.Time, g models.Granularity) (*Throughput, error) {
	if !g.Valid() {
		g = models.GranularityMinute
	}

	series, err := s.store.RequestTimeSeries(ctx, project.ID, since, g)
	if err != nil {
		return nil, err
	}

	out := &Throughput{Series: series, Granularity: g}
	for _, b := range series {
		out.Total += b.Count
	}

	return out, nil
}

// Traces lists a project's traces.
func (s *Service) Traces(ctx context.Context, project *models.Project, f models.TraceFilter) ([]*models.Trace, error) {
	return s.store.ListTraces(ctx, project.ID, f)
}

// Trace loads a trace and lays its spans out as a waterfall.
func (s *Service) Trace(ctx context.Context, project *models.Project, traceID string) (*models.TraceDetail, error) {
	t, err := s.store.GetTrace(ctx, project.ID, traceID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	spans, err := s.store.ListTraceSpans(ctx, t.ID)
	if err != nil {
		return nil, err
	}

	detail := &models.TraceDetail{Trace: t, Waterfall: Waterfall(t, spans)}

	if t.DurationMs != nil {
		detail.ApdexCategory = string(apdex.Categorize(*t.DurationMs, project.Threshold()))
	}

	return detail, nil
}

// Waterfall positions spans relative to the trace start, in start order.
func Waterfall(t *models.Trace, spans []*models.Span) []models.WaterfallEntry {
	out := make([]models.WaterfallEntry, 0, len(spans))

	for _, sp := range spans {
		data := sp.Data
		if data == nil {
			data = map[string]interface{}{}
		}

		out = append(out, models.WaterfallEntry{
			ID:          sp.SpanID,
			ParentID:    sp.ParentSpanID,
			Name:        sp.Name,
			DisplayName: sp.DisplayName(),
			Kind:        sp.Kind,
			StartedAt:   sp.StartedAt,
			DurationMs:  sp.DurationMs,
			OffsetMs:    models.Round2(float64(sp.StartedAt.Sub(t.StartedAt)) / float64(time.Millisecond)),
			Data:        data,
			Error:       sp.Error,
		})
	}

	return out
}

// MetricSeries is a metric with its bucketed stats.
type MetricSeries struct {
	Metric *models.Metric      `json:"metric"`
	Stats  []models.MetricStat `json:"stats"`
}

func (s *Service) Metrics(ctx context.Context, project *models.Project) ([]*models.Metric, error) {
	return s.store.ListMetrics(ctx, project.ID)
}

// Metric buckets one named metric since the cutoff.
func (s *Service) Metric(
	ctx context.Context, project *models.Project, name string, g models.Granularity, since time.Time) (*MetricSeries, error) {
	m, err := s.store.GetMetricByName(ctx, project.ID, name)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	if !g.Valid() {
		g = models.GranularityHour
	}

	stats, err := s.store.MetricStats(ctx, m.ID, g, since)
	if err != nil {
		return nil, err
	}

	return &MetricSeries{Metric: m, Stats: stats}, nil
}
