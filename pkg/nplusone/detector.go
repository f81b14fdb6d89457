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

// Package nplusone finds database queries repeated within a trace, the usual
// signature of N+1 ORM access.
package nplusone

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/sqlnorm"
	"github.com/carverauto/pulse/pkg/stats"
)

const (
	// MinRepeatCount is the smallest repeat count reported as a pattern.
	MinRepeatCount = 3
	// maxSampleTraces caps the trace ids kept per aggregated pattern.
	maxSampleTraces = 5
	// aggregatePageSize is how many traces AggregatePatterns loads per page.
	aggregatePageSize = 500
	candidateFactor   = 2
)

// Pattern is one repeated query shape inside a trace.
type Pattern struct {
	NormalizedSQL string   `json:"normalized_sql"`
	Fingerprint   string   `json:"fingerprint"`
	Count         int      `json:"count"`
	TotalMs       float64  `json:"total_duration_ms"`
	AvgMs         float64  `json:"avg_duration_ms"`
	Table         string   `json:"table,omitempty"`
	Operation     string   `json:"operation,omitempty"`
	ExampleSQL    string   `json:"example_sql"`
	SpanIDs       []string `json:"span_ids"`
}

// Savings is the time saved if the pattern ran once.
func (p Pattern) Savings() float64 {
	if p.Count == 0 {
		return 0
	}

	return p.TotalMs * (1 - 1/float64(p.Count))
}

// AffectedTrace is a trace with at least one pattern.
type AffectedTrace struct {
	Trace                *models.Trace `json:"trace"`
	Patterns             []Pattern     `json:"patterns"`
	TotalRepeatedQueries int           `json:"total_repeated_queries"`
	PotentialSavingsMs   float64       `json:"potential_savings_ms"`
}

// AggregatedPattern is one query shape summed over every trace it repeats in.
type AggregatedPattern struct {
	Fingerprint   string   `json:"fingerprint"`
	NormalizedSQL string   `json:"normalized_sql"`
	ExampleSQL    string   `json:"example_sql"`
	Table         string   `json:"table,omitempty"`
	Operation     string   `json:"operation,omitempty"`
	Count         int      `json:"count"`
	TraceCount    int      `json:"trace_count"`
	TotalMs       float64  `json:"total_duration_ms"`
	TraceIDs      []string `json:"trace_ids"`
}

// Store is what the detector reads.
type Store interface {
	ListTracesInWindow(ctx context.Context, q db.WindowQuery) ([]*models.Trace, error)
	ListTraceSpans(ctx context.Context, traceRowID uuid.UUID, kinds ...models.SpanKind) ([]*models.Span, error)
	ListDBSpansForTraces(ctx context.Context, traceRowIDs []uuid.UUID) (map[uuid.UUID][]*models.Span, error)
}

type Detector struct {
	store  Store
	logger logger.Logger
	now    func() time.Time
}

func NewDetector(store Store, log logger.Logger) *Detector {
	return &Detector{store: store, logger: log, now: time.Now}
}

// AnalyzeTrace loads the db spans of a trace and returns its patterns.
func (d *Detector) AnalyzeTrace(ctx context.Context, t *models.Trace) ([]Pattern, error) {
	spans, err := d.store.ListTraceSpans(ctx, t.ID, models.SpanKindDB)
	if err != nil {
		return nil, err
	}

	return Analyze(spans), nil
}

// Analyze groups db spans, ordered by start, by normalized SQL and returns the
// groups repeated at least MinRepeatCount times, most repeated first.
func Analyze(spans []*models.Span) []Pattern {
	if len(spans) < MinRepeatCount {
		return nil
	}

	type bucket struct {
		normalized string
		spans      []*models.Span
	}

	var order []*bucket

	groups := make(map[string]*bucket)

	for _, s := range spans {
		normalized, ok := sqlnorm.Normalize(s.DB().SQL())
		if !ok {
			continue
		}

		b, seen := groups[normalized]
		if !seen {
			b = &bucket{normalized: normalized}
			groups[normalized] = b
			order = append(order, b)
		}

		b.spans = append(b.spans, s)
	}

	var patterns []Pattern

	for _, b := range order {
		if len(b.spans) < MinRepeatCount {
			continue
		}

		var total float64
		for _, s := range b.spans {
			total += s.Duration()
		}

		first := b.spans[0].DB()
		patterns = append(patterns, Pattern{
			NormalizedSQL: b.normalized,
			Fingerprint:   sqlnorm.FingerprintNormalized(b.normalized),
			Count:         len(b.spans),
			TotalMs:       stats.Round2(total),
			AvgMs:         stats.Round2(total / float64(len(b.spans))),
			Table:         first.Table(),
			Operation:     first.Operation(),
			ExampleSQL:    first.SQL(),
			SpanIDs:       lo.Map(b.spans, func(s *models.Span, _ int) string { return s.SpanID }),
		})
	}

	sort.SliceStable(patterns, func(i, j int) bool { return patterns[i].Count > patterns[j].Count })

	return patterns
}

// candidates loads recent traces with enough spans to hold a pattern, and their db spans.
func (d *Detector) candidates(
	ctx context.Context, projectID uuid.UUID, window time.Duration, limit int,
) ([]*models.Trace, map[uuid.UUID][]*models.Span, error) {
	traces, err := d.store.ListTracesInWindow(ctx, db.WindowQuery{
		ProjectID:    projectID,
		From:         d.now().Add(-window),
		MinSpanCount: MinRepeatCount,
		Limit:        limit,
	})
	if err != nil {
		return nil, nil, err
	}

	spans, err := d.store.ListDBSpansForTraces(ctx, lo.Map(traces, func(t *models.Trace, _ int) uuid.UUID { return t.ID }))
	if err != nil {
		return nil, nil, err
	}

	return traces, spans, nil
}

// FindAffectedTraces scans the newest limit*2 candidate traces in the window and
// returns up to limit of those with patterns, largest potential savings first.
func (d *Detector) FindAffectedTraces(
	ctx context.Context, projectID uuid.UUID, window time.Duration, limit int,
) ([]AffectedTrace, error) {
	traces, spans, err := d.candidates(ctx, projectID, window, limit*candidateFactor)
	if err != nil {
		return nil, err
	}

	var affected []AffectedTrace

	for _, t := range traces {
		patterns := Analyze(spans[t.ID])
		if len(patterns) == 0 {
			continue
		}

		a := AffectedTrace{Trace: t, Patterns: patterns}
		for _, p := range patterns {
			a.TotalRepeatedQueries += p.Count
			a.PotentialSavingsMs += p.Savings()
		}

		a.PotentialSavingsMs = stats.Round2(a.PotentialSavingsMs)
		affected = append(affected, a)

		if len(affected) >= limit {
			break
		}
	}

	sort.SliceStable(affected, func(i, j int) bool {
		return affected[i].PotentialSavingsMs > affected[j].PotentialSavingsMs
	})

	return affected, nil
}

// AggregatePatterns sums patterns by fingerprint across every trace in the
// window and returns the limit most repeated. Traces are read a page at a time,
// newest first; only the per-fingerprint totals are kept between pages.
func (d *Detector) AggregatePatterns(
	ctx context.Context, projectID uuid.UUID, window time.Duration, limit int,
) ([]AggregatedPattern, error) {
	q := db.WindowQuery{
		ProjectID:    projectID,
		From:         d.now().Add(-window),
		MinSpanCount: MinRepeatCount,
		Limit:        aggregatePageSize,
	}

	var (
		order   []*AggregatedPattern
		scanned int
	)

	byFingerprint := make(map[string]*AggregatedPattern)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		traces, err := d.store.ListTracesInWindow(ctx, q)
		if err != nil {
			return nil, err
		}

		if len(traces) == 0 {
			break
		}

		spans, err := d.store.ListDBSpansForTraces(ctx, lo.Map(traces, func(t *models.Trace, _ int) uuid.UUID { return t.ID }))
		if err != nil {
			return nil, err
		}

		for _, t := range traces {
			for _, p := range Analyze(spans[t.ID]) {
				agg, ok := byFingerprint[p.Fingerprint]
				if !ok {
					agg = &AggregatedPattern{
						Fingerprint:   p.Fingerprint,
						NormalizedSQL: p.NormalizedSQL,
						ExampleSQL:    p.ExampleSQL,
						Table:         p.Table,
						Operation:     p.Operation,
					}
					byFingerprint[p.Fingerprint] = agg
					order = append(order, agg)
				}

				agg.Count += p.Count
				agg.TraceCount++
				agg.TotalMs = stats.Round2(agg.TotalMs + p.TotalMs)

				if len(agg.TraceIDs) < maxSampleTraces {
					agg.TraceIDs = append(agg.TraceIDs, t.TraceID)
				}
			}
		}

		scanned += len(traces)

		if len(traces) < aggregatePageSize {
			break
		}

		q.Before = db.CursorAfter(traces[len(traces)-1])
	}

	d.logger.Debug().Int("traces", scanned).Int("patterns", len(order)).Msg("Aggregated N+1 patterns")

	sort.SliceStable(order, func(i, j int) bool { return order[i].Count > order[j].Count })

	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	return lo.Map(order, func(p *AggregatedPattern, _ int) AggregatedPattern { return *p }), nil
}
