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

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/pulse/pkg/jobs"
	"github.com/carverauto/pulse/pkg/models"
)

// SpanResult identifies one stored standalone span.
type SpanResult struct {
	SpanID  string `json:"span_id"`
	TraceID string `json:"trace_id"`
}

// ProcessSpanBatch stores standalone spans. Each span is attached to the trace
// named by its trace_id, else the trace matching its request_id; when neither
// exists a custom trace is created from the span. Spans sharing a trace_id or
// request_id share the created trace.
func (p *TraceProcessor) ProcessSpanBatch(ctx context.Context, rc RequestContext, payloads []models.SpanPayload) ([]SpanResult, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}

	if len(payloads) == 0 {
		return nil, ErrEmptyBatch
	}

	var errs models.ValidationErrors
	for i := range payloads {
		errs.Merge(fmt.Sprintf("spans[%d]", i), payloads[i].Validate())
	}

	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "ingest.ProcessSpanBatch", trace.WithAttributes(
		attribute.String("pulse.project", rc.Project.Slug),
		attribute.Int("pulse.spans", len(payloads)),
	))
	defer span.End()

	var (
		results []SpanResult
		touched []*models.Trace
	)

	err := p.repo.RunInTx(ctx, func(store Store) error {
		var err error

		results, touched, err = p.writeSpans(ctx, store, rc, payloads)

		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	for _, t := range touched {
		if t.Completed() {
			p.enqueue(jobs.AggregateTrace(t.ProjectID, t.TraceID))
		}
	}

	return results, nil
}

func (p *TraceProcessor) writeSpans(
	ctx context.Context, store Store, rc RequestContext, payloads []models.SpanPayload,
) ([]SpanResult, []*models.Trace, error) {
	now := rc.now()

	owners, fresh, err := p.resolveOwners(ctx, store, rc, payloads, now)
	if err != nil {
		return nil, nil, err
	}

	if len(fresh) > 0 {
		if err := p.insertSpanTraces(ctx, store, rc, owners, fresh); err != nil {
			return nil, nil, err
		}
	}

	spans := make([]*models.Span, 0, len(payloads))
	results := make([]SpanResult, 0, len(payloads))

	for i := range payloads {
		t := owners[i]
		if t == nil {
			continue
		}

		s := buildSpan(t, &payloads[i], now)
		spans = append(spans, s)
		results = append(results, SpanResult{SpanID: s.SpanID, TraceID: t.TraceID})
	}

	if err := store.InsertSpans(ctx, spans); err != nil {
		return nil, nil, err
	}

	touched := lo.UniqBy(lo.Compact(owners), func(t *models.Trace) uuid.UUID { return t.ID })

	if err := recompute(ctx, store, touched); err != nil {
		return nil, nil, err
	}

	return results, touched, nil
}

// resolveOwners maps every span to its trace, building new traces where needed.
// A nil owner marks a span whose trace belongs to another project.
func (p *TraceProcessor) resolveOwners(
	ctx context.Context, store Store, rc RequestContext, payloads []models.SpanPayload, now time.Time,
) ([]*models.Trace, []*models.Trace, error) {
	var traceIDs, requestIDs []string

	for i := range payloads {
		switch {
		case payloads[i].TraceID != "":
			traceIDs = append(traceIDs, payloads[i].TraceID)
		case payloads[i].RequestID != "":
			requestIDs = append(requestIDs, payloads[i].RequestID)
		}
	}

	byTraceID, err := store.FindTracesByTraceIDs(ctx, lo.Uniq(traceIDs))
	if err != nil {
		return nil, nil, err
	}

	byRequestID := map[string]*models.Trace{}
	if len(requestIDs) > 0 {
		if byRequestID, err = store.FindTracesByRequestIDs(ctx, rc.Project.ID, lo.Uniq(requestIDs)); err != nil {
			return nil, nil, err
		}
	}

	owners := make([]*models.Trace, len(payloads))
	created := make(map[string]*models.Trace)

	var fresh []*models.Trace

	for i := range payloads {
		sp := &payloads[i]

		var key string

		switch {
		case sp.TraceID != "":
			if t, ok := byTraceID[sp.TraceID]; ok {
				if t.ProjectID != rc.Project.ID {
					p.skipForeign(rc, sp.TraceID)
					continue
				}

				owners[i] = t

				continue
			}

			key = "trace:" + sp.TraceID
		case sp.RequestID != "":
			if t, ok := byRequestID[sp.RequestID]; ok {
				owners[i] = t
				continue
			}

			key = "request:" + sp.RequestID
		}

		if t, ok := created[key]; ok && key != "" {
			owners[i] = t
			continue
		}

		t := spanTrace(rc, sp, now)
		fresh = append(fresh, t)
		owners[i] = t

		if key != "" {
			created[key] = t
		}
	}

	return owners, fresh, nil
}

// insertSpanTraces writes traces created for spans and swaps the stored rows into owners.
func (p *TraceProcessor) insertSpanTraces(
	ctx context.Context, store Store, rc RequestContext, owners, fresh []*models.Trace,
) error {
	if err := store.InsertTraces(ctx, fresh); err != nil {
		return err
	}

	stored, err := store.FindTracesByTraceIDs(ctx, lo.Map(fresh, func(t *models.Trace, _ int) string { return t.TraceID }))
	if err != nil {
		return err
	}

	replace := make(map[*models.Trace]*models.Trace, len(fresh))

	for _, t := range fresh {
		s, ok := stored[t.TraceID]
		if !ok {
			return fmt.Errorf("%w: %s", errTraceVanished, t.TraceID)
		}

		if s.ProjectID != rc.Project.ID {
			p.skipForeign(rc, t.TraceID)
			s = nil
		}

		replace[t] = s
	}

	for i, t := range owners {
		if s, ok := replace[t]; ok {
			owners[i] = s
		}
	}

	return nil
}

func (p *TraceProcessor) skipForeign(rc RequestContext, traceID string) {
	p.logger.Warn().
		Str("trace_id", traceID).
		Str("project", rc.Project.Slug).
		Msg("Skipping span for trace owned by another project")
}

// spanTrace builds the custom trace a standalone span creates.
func spanTrace(rc RequestContext, sp *models.SpanPayload, now time.Time) *models.Trace {
	traceID := sp.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}

	name := sp.Name
	if name == "" {
		name = instrumentationSpanName
	}

	environment := sp.Environment
	if environment == "" {
		environment = rc.Project.Environment
	}

	startedAt := sp.Timestamp.Or(sp.StartedAt.Or(now))

	return &models.Trace{
		ID:          uuid.New(),
		ProjectID:   rc.Project.ID,
		TraceID:     traceID,
		RequestID:   sp.RequestID,
		Name:        name,
		Kind:        models.TraceKindCustom,
		StartedAt:   startedAt,
		Executions:  1,
		Environment: environment,
		Host:        sp.Host,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
