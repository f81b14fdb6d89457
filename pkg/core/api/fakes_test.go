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
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/pulse/pkg/alerts"
	"github.com/carverauto/pulse/pkg/broadcast"
	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/ingest"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/nplusone"
	"github.com/carverauto/pulse/pkg/query"
)

type fakeProjects struct {
	mu      sync.Mutex
	bySlug  map[string]*models.Project
	created int
}

func newFakeProjects(projects ...*models.Project) *fakeProjects {
	f := &fakeProjects{bySlug: make(map[string]*models.Project)}
	for _, p := range projects {
		f.bySlug[p.Slug] = p
	}

	return f
}

func (f *fakeProjects) GetProjectByAPIKey(_ context.Context, key string) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.bySlug {
		if p.APIKey() == key || p.IngestKey() == key {
			return p, nil
		}
	}

	return nil, db.ErrNotFound
}

func (f *fakeProjects) GetProjectBySlug(_ context.Context, slug string) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.bySlug[slug]
	if !ok {
		return nil, db.ErrNotFound
	}

	return p, nil
}

func (f *fakeProjects) CreateProject(_ context.Context, p *models.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p.ID = uuid.New()
	f.bySlug[p.Slug] = p
	f.created++

	return nil
}

type fakeIngestor struct {
	rc       ingest.RequestContext
	payloads []models.TracePayload
	spans    []models.SpanPayload
	browser  ingest.BrowserPayload
	tc       *ingest.TraceContext
	err      error
}

func (f *fakeIngestor) Process(_ context.Context, rc ingest.RequestContext, p models.TracePayload) (*models.Trace, error) {
	f.rc = rc
	f.payloads = append(f.payloads, p)

	if f.err != nil {
		return nil, f.err
	}

	return &models.Trace{ID: uuid.New(), ProjectID: rc.Project.ID, TraceID: p.TraceID}, nil
}

func (f *fakeIngestor) ProcessBatch(
	_ context.Context, rc ingest.RequestContext, payloads []models.TracePayload) ([]*models.Trace, error) {
	f.rc = rc
	f.payloads = payloads

	if f.err != nil {
		return nil, f.err
	}

	out := make([]*models.Trace, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, &models.Trace{ID: uuid.New(), TraceID: p.TraceID})
	}

	return out, nil
}

func (f *fakeIngestor) AppendSpans(
	_ context.Context, rc ingest.RequestContext, traceID string, payloads []models.SpanPayload,
) (*models.Trace, []*models.Span, error) {
	f.rc = rc
	f.spans = payloads

	if f.err != nil {
		return nil, nil, f.err
	}

	spans := make([]*models.Span, 0, len(payloads))
	for _, p := range payloads {
		spans = append(spans, &models.Span{SpanID: p.SpanID})
	}

	return &models.Trace{ID: uuid.New(), TraceID: traceID}, spans, nil
}

func (f *fakeIngestor) ProcessSpanBatch(
	_ context.Context, rc ingest.RequestContext, payloads []models.SpanPayload) ([]ingest.SpanResult, error) {
	f.rc = rc
	f.spans = payloads

	if f.err != nil {
		return nil, f.err
	}

	out := make([]ingest.SpanResult, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, ingest.SpanResult{SpanID: p.SpanID, TraceID: p.TraceID})
	}

	return out, nil
}

func (f *fakeIngestor) IngestBrowser(
	_ context.Context, rc ingest.RequestContext, payload ingest.BrowserPayload, tc *ingest.TraceContext,
) (ingest.BrowserResult, error) {
	f.rc = rc
	f.browser = payload
	f.tc = tc

	if f.err != nil {
		return ingest.BrowserResult{}, f.err
	}

	var res ingest.BrowserResult

	for _, ev := range payload.Events {
		switch ev.Type {
		case "performance":
			res.Performance++
		case "network":
			res.Network++
		}
	}

	return res, nil
}

type fakeRecorder struct {
	payloads []models.MetricPayload
	err      error
}

func (f *fakeRecorder) Record(
	_ context.Context, rc ingest.RequestContext, payloads []models.MetricPayload) ([]*models.Metric, error) {
	f.payloads = payloads

	if f.err != nil {
		return nil, f.err
	}

	out := make([]*models.Metric, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, &models.Metric{ID: uuid.New(), ProjectID: rc.Project.ID, Name: p.Name})
	}

	return out, nil
}

type fakeReader struct {
	overview   *models.Overview
	since      time.Time
	filter     models.TraceFilter
	traces     []*models.Trace
	detail     *models.TraceDetail
	series     *query.MetricSeries
	report     *query.QueryReport
	endpoints  []models.EndpointStat
	sort       db.EndpointSort
	throughput *query.Throughput
}

func (f *fakeReader) Overview(_ context.Context, _ *models.Project, since time.Time) (*models.Overview, error) {
	f.since = since
	return f.overview, nil
}

func (f *fakeReader) Endpoints(
	_ context.Context, _ *models.Project, since time.Time, sort db.EndpointSort, _ int) ([]models.EndpointStat, error) {
	f.since = since
	f.sort = sort

	return f.endpoints, nil
}

func (f *fakeReader) Throughput(
	_ context.Context, _ *models.Project, since time.Time, _ models.Granularity) (*query.Throughput, error) {
	f.since = since
	return f.throughput, nil
}

func (f *fakeReader) Traces(_ context.Context, _ *models.Project, filter models.TraceFilter) ([]*models.Trace, error) {
	f.filter = filter
	return f.traces, nil
}

func (f *fakeReader) Trace(_ context.Context, _ *models.Project, _ string) (*models.TraceDetail, error) {
	if f.detail == nil {
		return nil, query.ErrNotFound
	}

	return f.detail, nil
}

func (*fakeReader) Metrics(context.Context, *models.Project) ([]*models.Metric, error) {
	return nil, nil
}

func (f *fakeReader) Metric(
	_ context.Context, _ *models.Project, _ string, _ models.Granularity, _ time.Time) (*query.MetricSeries, error) {
	if f.series == nil {
		return nil, query.ErrNotFound
	}

	return f.series, nil
}

func (f *fakeReader) Queries(_ context.Context, _ *models.Project, since time.Time) (*query.QueryReport, error) {
	f.since = since
	return f.report, nil
}

type fakePatterns struct {
	window   time.Duration
	patterns []nplusone.AggregatedPattern
}

func (f *fakePatterns) FindAffectedTraces(
	_ context.Context, _ uuid.UUID, window time.Duration, _ int) ([]nplusone.AffectedTrace, error) {
	f.window = window
	return nil, nil
}

func (f *fakePatterns) AggregatePatterns(
	_ context.Context, _ uuid.UUID, window time.Duration, _ int) ([]nplusone.AggregatedPattern, error) {
	f.window = window
	return f.patterns, nil
}

type fakeEvaluator struct {
	outcome *alerts.Outcome
}

func (f *fakeEvaluator) EvaluateRule(_ context.Context, _ *models.Project, _ *models.AlertRule) (*alerts.Outcome, error) {
	return f.outcome, nil
}

type fakeConfig struct {
	rules    map[uuid.UUID]*models.AlertRule
	channels map[uuid.UUID]*models.NotificationChannel
	filter   db.AlertFilter
}

func newFakeConfig() *fakeConfig {
	return &fakeConfig{
		rules:    make(map[uuid.UUID]*models.AlertRule),
		channels: make(map[uuid.UUID]*models.NotificationChannel),
	}
}

func (f *fakeConfig) CreateAlertRule(_ context.Context, r *models.AlertRule) error {
	r.ID = uuid.New()
	stored := *r
	f.rules[r.ID] = &stored

	return nil
}

func (f *fakeConfig) UpdateAlertRule(_ context.Context, r *models.AlertRule) error {
	if _, ok := f.rules[r.ID]; !ok {
		return db.ErrNotFound
	}

	stored := *r
	f.rules[r.ID] = &stored

	return nil
}

func (f *fakeConfig) DeleteAlertRule(_ context.Context, projectID, id uuid.UUID) error {
	r, ok := f.rules[id]
	if !ok || r.ProjectID != projectID {
		return db.ErrNotFound
	}

	delete(f.rules, id)

	return nil
}

func (f *fakeConfig) GetAlertRule(_ context.Context, projectID, id uuid.UUID) (*models.AlertRule, error) {
	r, ok := f.rules[id]
	if !ok || r.ProjectID != projectID {
		return nil, db.ErrNotFound
	}

	out := *r

	return &out, nil
}

func (f *fakeConfig) ListAlertRules(_ context.Context, projectID uuid.UUID, _ bool) ([]*models.AlertRule, error) {
	var out []*models.AlertRule

	for _, r := range f.rules {
		if r.ProjectID == projectID {
			out = append(out, r)
		}
	}

	return out, nil
}

func (f *fakeConfig) ListAlerts(_ context.Context, _ uuid.UUID, filter db.AlertFilter) ([]*models.Alert, error) {
	f.filter = filter
	return nil, nil
}

func (f *fakeConfig) CreateChannel(_ context.Context, c *models.NotificationChannel) error {
	c.ID = uuid.New()
	stored := *c
	f.channels[c.ID] = &stored

	return nil
}

func (f *fakeConfig) UpdateChannel(_ context.Context, c *models.NotificationChannel) error {
	stored := *c
	f.channels[c.ID] = &stored

	return nil
}

func (f *fakeConfig) DeleteChannel(_ context.Context, _, id uuid.UUID) error {
	if _, ok := f.channels[id]; !ok {
		return db.ErrNotFound
	}

	delete(f.channels, id)

	return nil
}

func (f *fakeConfig) GetChannel(_ context.Context, projectID, id uuid.UUID) (*models.NotificationChannel, error) {
	c, ok := f.channels[id]
	if !ok || c.ProjectID != projectID {
		return nil, db.ErrNotFound
	}

	out := *c

	return &out, nil
}

func (f *fakeConfig) ListChannels(context.Context, uuid.UUID) ([]*models.NotificationChannel, error) {
	return nil, nil
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (r *recordingBroadcaster) Broadcast(_ context.Context, ev broadcast.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)

	return nil
}

func (r *recordingBroadcaster) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}

	return out
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }
