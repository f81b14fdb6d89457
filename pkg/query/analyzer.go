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

package query

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/sqlnorm"
	"github.com/carverauto/pulse/pkg/stats"
)

// Query analyzer thresholds and defaults.
const (
	SlowQueryMs          = 100
	VerySlowQueryMs      = 500
	DefaultSlowLimit     = 50
	DefaultFrequentLimit = 20
)

// QueryReport is everything the query analyzer page shows.
type QueryReport struct {
	Summary  models.QuerySummary   `json:"summary"`
	Slow     []models.SlowQuery    `json:"slow_queries"`
	Frequent []models.QueryPattern `json:"frequent_queries"`
	Tables   []models.TableStat    `json:"tables"`
}

// SlowQueries returns db spans at or above thresholdMs, slowest first.
func (s *Service) SlowQueries(
	ctx context.Context, project *models.Project, since time.Time, thresholdMs float64, limit int) ([]models.SlowQuery, error) {
	if limit <= 0 {
		limit = DefaultSlowLimit
	}

	records, err := s.store.ListDBSpanRecords(ctx, project.ID, since, thresholdMs, limit)
	if err != nil {
		return nil, err
	}

	return lo.Map(records, toSlowQuery), nil
}

func toSlowQuery(r models.DBSpanRecord, _ int) models.SlowQuery {
	v := r.Span.DB()
	normalized, _ := sqlnorm.Normalize(v.SQL())

	return models.SlowQuery{
		SpanID:        r.Span.SpanID,
		TraceID:       r.TraceID,
		TraceName:     r.TraceName,
		SQL:           v.SQL(),
		NormalizedSQL: normalized,
		Table:         v.Table(),
		Operation:     v.Operation(),
		DurationMs:    r.Span.Duration(),
		StartedAt:     r.Span.StartedAt,
	}
}

// Queries builds the full analyzer report from one read of the window's db spans.
func (s *Service) Queries(ctx context.Context, project *models.Project, since time.Time) (*QueryReport, error) {
	records, err := s.store.ListDBSpanRecords(ctx, project.ID, since, 0, 0)
	if err != nil {
		return nil, err
	}

	traces, err := s.store.CountTracesSince(ctx, project.ID, since)
	if err != nil {
		return nil, err
	}

	// records arrive slowest first
	slow := lo.Filter(records, func(r models.DBSpanRecord, _ int) bool {
		return r.Span.Duration() >= SlowQueryMs
	})
	if len(slow) > DefaultSlowLimit {
		slow = slow[:DefaultSlowLimit]
	}

	report := &QueryReport{
		Summary:  Summarize(records, traces),
		Slow:     lo.Map(slow, toSlowQuery),
		Frequent: FrequentQueries(records, DefaultFrequentLimit),
		Tables:   TableBreakdown(records),
	}

	s.logger.Debug().Int("db_spans", len(records)).Msg("Built query report")

	return report, nil
}

// Summarize computes the window summary over db span records.
func Summarize(records []models.DBSpanRecord, traceCount int) models.QuerySummary {
	sum := models.QuerySummary{Tables: []string{}}
	if len(records) == 0 {
		return sum
	}

	durations := lo.FilterMap(records, func(r models.DBSpanRecord, _ int) (float64, bool) {
		if r.Span.DurationMs == nil {
			return 0, false
		}

		return *r.Span.DurationMs, true
	})

	sum.TotalQueries = len(records)
	sum.AvgDurationMs = models.Round2(stats.Mean(durations))
	sum.SlowCount = lo.CountBy(durations, func(d float64) bool { return d >= SlowQueryMs })
	sum.VerySlowCount = lo.CountBy(durations, func(d float64) bool { return d >= VerySlowQueryMs })
	sum.Tables = lo.Uniq(lo.Compact(lo.Map(records, func(r models.DBSpanRecord, _ int) string {
		return r.Span.DB().Table()
	})))
	sum.TableCount = len(sum.Tables)
	sum.TraceCount = traceCount

	if traceCount > 0 {
		sum.QueriesPerTrace = math.Round(float64(sum.TotalQueries)/float64(traceCount)*10) / 10
	}

	return sum
}

// FrequentQueries groups db spans by fingerprint, most executed first.
func FrequentQueries(records []models.DBSpanRecord, limit int) []models.QueryPattern {
	byFingerprint := make(map[string]*models.QueryPattern)

	var order []string

	for _, r := range records {
		v := r.Span.DB()

		fp, ok := sqlnorm.Fingerprint(v.SQL())
		if !ok {
			continue
		}

		p, seen := byFingerprint[fp]
		if !seen {
			normalized, _ := sqlnorm.Normalize(v.SQL())
			p = &models.QueryPattern{
				Fingerprint:   fp,
				NormalizedSQL: normalized,
				ExampleSQL:    v.SQL(),
			}
			byFingerprint[fp] = p
			order = append(order, fp)
		}

		p.Count++
		p.TotalMs += r.Span.Duration()

		if p.Table == "" {
			p.Table = v.Table()
		}

		if p.Operation == "" {
			p.Operation = v.Operation()
		}
	}

	out := make([]models.QueryPattern, 0, len(order))

	for _, fp := range order {
		p := byFingerprint[fp]
		p.TotalMs = models.Round2(p.TotalMs)
		p.AvgMs = models.Round2(p.TotalMs / float64(p.Count))
		out = append(out, *p)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out
}

// TableBreakdown counts db spans per table, busiest first.
func TableBreakdown(records []models.DBSpanRecord) []models.TableStat {
	groups := lo.GroupBy(
		lo.Filter(records, func(r models.DBSpanRecord, _ int) bool { return r.Span.DB().Table() != "" }),
		func(r models.DBSpanRecord) string { return r.Span.DB().Table() },
	)

	out := make([]models.TableStat, 0, len(groups))

	for table, rs := range groups {
		total := lo.SumBy(rs, func(r models.DBSpanRecord) float64 { return r.Span.Duration() })
		out = append(out, models.TableStat{
			Table:   table,
			Count:   len(rs),
			TotalMs: models.Round2(total),
			AvgMs:   models.Round2(total / float64(len(rs))),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}

		return out[i].Table < out[j].Table
	})

	return out
}
