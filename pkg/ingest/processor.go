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

// Package ingest turns telemetry payloads into stored traces, spans and metric points.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/pulse/pkg/broadcast"
	"github.com/carverauto/pulse/pkg/jobs"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/sqlnorm"
)

const tracerName = "github.com/carverauto/pulse/pkg/ingest"

var errTraceVanished = errors.New("inserted trace could not be read back")

// TraceProcessor writes traces and their spans. Every call is one transaction;
// broadcasts and aggregation jobs are issued after commit and never fail the call.
type TraceProcessor struct {
	repo        Repository
	broadcaster broadcast.Broadcaster
	queue       jobs.Enqueuer
	logger      logger.Logger
	tracer      trace.Tracer
}

// NewTraceProcessor wires a processor. A nil broadcaster discards live events.
func NewTraceProcessor(repo Repository, b broadcast.Broadcaster, queue jobs.Enqueuer, log logger.Logger) *TraceProcessor {
	if b == nil {
		b = broadcast.Nop{}
	}

	return &TraceProcessor{
		repo:        repo,
		broadcaster: b,
		queue:       queue,
		logger:      log,
		tracer:      logger.GetTracer(tracerName),
	}
}

// traceGroup collects the payloads of one trace id within a call.
type traceGroup struct {
	traceID  string
	payloads []*models.TracePayload
	trace    *models.Trace
	spans    []*models.Span
	inserted bool
}

// completion uses the last payload that carries an end time.
func (g *traceGroup) completion(now time.Time) (models.Completion, bool) {
	for i := len(g.payloads) - 1; i >= 0; i-- {
		p := g.payloads[i]
		if !p.EndedAt.Present {
			continue
		}

		return models.Completion{
			EndedAt:      p.EndedAt.Or(now),
			Error:        p.Error,
			ErrorClass:   p.ErrorClass,
			ErrorMessage: p.ErrorMessage,
		}, true
	}

	return models.Completion{}, false
}

func groupPayloads(payloads []models.TracePayload) []*traceGroup {
	groups := make([]*traceGroup, 0, len(payloads))
	index := make(map[string]*traceGroup, len(payloads))

	for i := range payloads {
		p := &payloads[i]

		g, ok := index[p.TraceID]
		if !ok {
			g = &traceGroup{traceID: p.TraceID}
			index[p.TraceID] = g
			groups = append(groups, g)
		}

		g.payloads = append(g.payloads, p)
	}

	return groups
}

// Process ingests a single trace payload. A trace id owned by another project
// is rejected with ErrTraceOwnedElsewhere.
func (p *TraceProcessor) Process(ctx context.Context, rc RequestContext, payload models.TracePayload) (*models.Trace, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	traces, err := p.run(ctx, "ingest.Process", rc, []models.TracePayload{payload}, true)
	if err != nil {
		return nil, err
	}

	return traces[0], nil
}

// ProcessBatch ingests many payloads with a constant number of statements.
// Payloads sharing a trace id resolve to one trace; trace ids owned by another
// project are skipped. The result holds one trace per distinct trace id.
func (p *TraceProcessor) ProcessBatch(ctx context.Context, rc RequestContext, payloads []models.TracePayload) ([]*models.Trace, error) {
	if len(payloads) == 0 {
		return nil, ErrEmptyBatch
	}

	var errs models.ValidationErrors
	for i := range payloads {
		errs.Merge(fmt.Sprintf("traces[%d]", i), payloads[i].Validate())
	}

	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	return p.run(ctx, "ingest.ProcessBatch", rc, payloads, false)
}

func (p *TraceProcessor) run(
	ctx context.Context, op string, rc RequestContext, payloads []models.TracePayload, strict bool,
) ([]*models.Trace, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("pulse.project", rc.Project.Slug),
		attribute.Int("pulse.payloads", len(payloads)),
	))
	defer span.End()

	groups := groupPayloads(payloads)

	var written []*traceGroup

	err := p.repo.RunInTx(ctx, func(store Store) error {
		var err error

		written, err = p.write(ctx, store, rc, groups, strict)

		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	traces := lo.Map(written, func(g *traceGroup, _ int) *models.Trace { return g.trace })

	span.SetAttributes(attribute.Int("pulse.traces", len(traces)))
	p.afterCommit(ctx, traces)

	return traces, nil
}

func (p *TraceProcessor) write(
	ctx context.Context, store Store, rc RequestContext, groups []*traceGroup, strict bool,
) ([]*traceGroup, error) {
	now := rc.now()

	existing, err := store.FindTracesByTraceIDs(ctx, lo.Map(groups, func(g *traceGroup, _ int) string { return g.traceID }))
	if err != nil {
		return nil, err
	}

	if groups, err = p.claim(rc, groups, existing, strict); err != nil {
		return nil, err
	}

	var fresh []*models.Trace

	for _, g := range groups {
		if t, ok := existing[g.traceID]; ok {
			g.trace = t
			continue
		}

		g.trace = buildTrace(rc, g.payloads[0], now)
		if c, ok := g.completion(now); ok {
			g.trace.Complete(c)
		}

		fresh = append(fresh, g.trace)
	}

	if len(fresh) > 0 {
		if groups, err = p.insertTraces(ctx, store, rc, groups, existing, fresh, strict); err != nil {
			return nil, err
		}
	}

	var spans []*models.Span

	for _, g := range groups {
		for _, payload := range g.payloads {
			for i := range payload.Spans {
				s := buildSpan(g.trace, &payload.Spans[i], now)
				g.spans = append(g.spans, s)
				spans = append(spans, s)
			}
		}
	}

	if len(spans) > 0 {
		if err := store.InsertSpans(ctx, spans); err != nil {
			return nil, err
		}
	}

	var completed []*models.Trace

	for _, g := range groups {
		if g.inserted {
			continue
		}

		if c, ok := g.completion(now); ok {
			g.trace.Complete(c)
			completed = append(completed, g.trace)
		}
	}

	if len(completed) > 0 {
		if err := store.CompleteTraces(ctx, completed); err != nil {
			return nil, err
		}
	}

	if err := recompute(ctx, store, lo.FilterMap(groups, func(g *traceGroup, _ int) (*models.Trace, bool) {
		return g.trace, len(g.spans) > 0
	})); err != nil {
		return nil, err
	}

	return groups, nil
}

// insertTraces writes new traces and swaps in the stored rows. A row that
// already existed when the insert ran belongs to a concurrent writer.
func (p *TraceProcessor) insertTraces(
	ctx context.Context,
	store Store,
	rc RequestContext,
	groups []*traceGroup,
	existing map[string]*models.Trace,
	fresh []*models.Trace,
	strict bool,
) ([]*traceGroup, error) {
	if err := store.InsertTraces(ctx, fresh); err != nil {
		return nil, err
	}

	stored, err := store.FindTracesByTraceIDs(ctx, lo.Map(fresh, func(t *models.Trace, _ int) string { return t.TraceID }))
	if err != nil {
		return nil, err
	}

	for _, g := range groups {
		if _, ok := existing[g.traceID]; ok {
			continue
		}

		s, ok := stored[g.traceID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", errTraceVanished, g.traceID)
		}

		g.inserted = s.ID == g.trace.ID
		g.trace = s
	}

	return p.claim(rc, groups, stored, strict)
}

// claim drops groups whose trace belongs to another project, or fails when strict.
func (p *TraceProcessor) claim(
	rc RequestContext, groups []*traceGroup, found map[string]*models.Trace, strict bool,
) ([]*traceGroup, error) {
	kept := make([]*traceGroup, 0, len(groups))

	for _, g := range groups {
		t, ok := found[g.traceID]
		if !ok || t.ProjectID == rc.Project.ID {
			kept = append(kept, g)
			continue
		}

		if strict {
			return nil, fmt.Errorf("%w: %s", ErrTraceOwnedElsewhere, g.traceID)
		}

		p.logger.Warn().
			Str("trace_id", g.traceID).
			Str("project", rc.Project.Slug).
			Msg("Skipping trace owned by another project")
	}

	return kept, nil
}

// AppendSpans adds spans to an existing trace of the project.
func (p *TraceProcessor) AppendSpans(
	ctx context.Context, rc RequestContext, traceID string, payloads []models.SpanPayload,
) (*models.Trace, []*models.Span, error) {
	if err := rc.validate(); err != nil {
		return nil, nil, err
	}

	var errs models.ValidationErrors
	for i := range payloads {
		errs.Merge(fmt.Sprintf("spans[%d]", i), payloads[i].Validate())
	}

	if err := errs.OrNil(); err != nil {
		return nil, nil, err
	}

	ctx, span := p.tracer.Start(ctx, "ingest.AppendSpans", trace.WithAttributes(
		attribute.String("pulse.project", rc.Project.Slug),
		attribute.Int("pulse.spans", len(payloads)),
	))
	defer span.End()

	var (
		parent *models.Trace
		spans  []*models.Span
	)

	err := p.repo.RunInTx(ctx, func(store Store) error {
		found, err := store.FindTracesByTraceIDs(ctx, []string{traceID})
		if err != nil {
			return err
		}

		t, ok := found[traceID]
		if !ok || t.ProjectID != rc.Project.ID {
			return fmt.Errorf("%w: %s", ErrTraceNotFound, traceID)
		}

		now := rc.now()
		spans = make([]*models.Span, 0, len(payloads))

		for i := range payloads {
			spans = append(spans, buildSpan(t, &payloads[i], now))
		}

		if err := store.InsertSpans(ctx, spans); err != nil {
			return err
		}

		parent = t

		return recompute(ctx, store, []*models.Trace{t})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, nil, err
	}

	if parent.Completed() {
		p.enqueue(jobs.AggregateTrace(parent.ProjectID, parent.TraceID))
	}

	return parent, spans, nil
}

// recompute refreshes rollups from the stored spans and applies them in memory.
func recompute(ctx context.Context, store Store, traces []*models.Trace) error {
	if len(traces) == 0 {
		return nil
	}

	ids := lo.Uniq(lo.Map(traces, func(t *models.Trace, _ int) uuid.UUID { return t.ID }))

	rollups, err := store.RecomputeRollups(ctx, ids)
	if err != nil {
		return err
	}

	for _, t := range traces {
		if r, ok := rollups[t.ID]; ok {
			r.Apply(t)
		}
	}

	return nil
}

type bucketKey struct {
	projectID uuid.UUID
	bucket    time.Time
}

func (p *TraceProcessor) afterCommit(ctx context.Context, traces []*models.Trace) {
	seen := make(map[bucketKey]struct{}, len(traces))

	for _, t := range traces {
		if err := p.broadcaster.Broadcast(ctx, broadcast.TraceEvent(t)); err != nil {
			p.logger.Warn().Err(err).Str("trace_id", t.TraceID).Msg("Failed to broadcast trace")
		}

		if !t.Completed() {
			continue
		}

		key := bucketKey{projectID: t.ProjectID, bucket: t.Bucket()}
		if _, dup := seen[key]; dup {
			continue
		}

		seen[key] = struct{}{}
		p.enqueue(jobs.AggregateMinute(key.projectID, key.bucket))
	}
}

func (p *TraceProcessor) enqueue(job jobs.Job) {
	if p.queue == nil {
		return
	}

	if !p.queue.Enqueue(job) {
		p.logger.Warn().Str("job_type", string(job.Type)).Msg("Job queue unavailable, dropping job")
	}
}

func buildTrace(rc RequestContext, p *models.TracePayload, now time.Time) *models.Trace {
	kind := p.Kind
	if kind == "" {
		kind = models.TraceKindRequest
	}

	executions := 1
	if p.Executions != nil && *p.Executions > 0 {
		executions = *p.Executions
	}

	environment := p.Environment
	if environment == "" {
		environment = rc.Project.Environment
	}

	return &models.Trace{
		ID:                 uuid.New(),
		ProjectID:          rc.Project.ID,
		TraceID:            p.TraceID,
		RequestID:          p.RequestID,
		Name:               TraceName(p),
		Kind:               kind,
		StartedAt:          p.StartedAt.Or(now),
		RequestMethod:      p.RequestMethod,
		RequestPath:        p.RequestPath,
		Controller:         p.Controller,
		Action:             p.Action,
		Status:             p.Status,
		JobClass:           p.JobClass,
		JobID:              p.JobID,
		Queue:              p.Queue,
		QueueWaitMs:        p.QueueWaitMs,
		Executions:         executions,
		Environment:        environment,
		Commit:             p.Commit,
		Host:               p.Host,
		UserID:             p.UserID,
		Error:              p.Error,
		ErrorClass:         p.ErrorClass,
		ErrorMessage:       p.ErrorMessage,
		ViewDurationMs:     lo.FromPtr(p.ViewMs),
		DBDurationMs:       lo.FromPtr(p.DBMs),
		ExternalDurationMs: lo.FromPtr(p.ExternalMs),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func buildSpan(t *models.Trace, p *models.SpanPayload, now time.Time) *models.Span {
	kind := p.Kind
	if kind == "" {
		kind = models.SpanKindCustom
	}

	spanID := p.SpanID
	if spanID == "" {
		spanID = newSpanID()
	}

	startedAt := p.StartedAt.Or(now)
	endedAt := p.EndedAt.Ptr()

	duration := p.DurationMs
	if duration == nil && endedAt != nil {
		d := models.DurationMs(startedAt, *endedAt)
		duration = &d
	}

	return &models.Span{
		ID:           uuid.New(),
		TraceRowID:   t.ID,
		ProjectID:    t.ProjectID,
		SpanID:       spanID,
		ParentSpanID: p.ParentSpanID,
		Name:         p.Name,
		Kind:         kind,
		StartedAt:    startedAt,
		EndedAt:      endedAt,
		DurationMs:   duration,
		Data:         spanData(kind, p.Data),
		Error:        p.Error,
		ErrorClass:   p.ErrorClass,
		ErrorMessage: p.ErrorMessage,
	}
}

// spanData copies the bag and fills operation and table for SQL spans that lack them.
func spanData(kind models.SpanKind, in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+2)
	for k, v := range in {
		out[k] = v
	}

	if kind != models.SpanKindDB {
		return out
	}

	sql, _ := out["sql"].(string)
	if sql == "" {
		return out
	}

	if _, ok := out["operation"]; !ok {
		if op := sqlnorm.Operation(sql); op != "" {
			out["operation"] = op
		}
	}

	if _, ok := out["table"]; !ok {
		if table := sqlnorm.Table(sql); table != "" {
			out["table"] = table
		}
	}

	return out
}
