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

package alerts

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/carverauto/pulse/pkg/apdex"
	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/stats"
)

// Value computes the rule's metric over its window ending at now.
// ok is false when the window holds no data the metric can be computed from.
func (e *Evaluator) Value(
	ctx context.Context, project *models.Project, rule *models.AlertRule, now time.Time) (value float64, ok bool, err error) {
	since := now.Add(-rule.Window())

	if rule.MetricType == models.MetricTypeCustom {
		values, err := e.store.MetricValues(ctx, project.ID, rule.MetricName, since)
		if err != nil {
			return 0, false, err
		}

		value, ok = reduce(values, rule.Aggregation)

		return value, ok, nil
	}

	traces, err := e.store.ListTracesInWindow(ctx, db.WindowQuery{
		ProjectID:   project.ID,
		Kind:        models.TraceKindRequest,
		From:        since,
		RequestPath: rule.Endpoint,
		Environment: rule.Environment,
	})
	if err != nil {
		return 0, false, err
	}

	value, ok = TraceValue(rule, project.Threshold(), traces)

	return value, ok, nil
}

// TraceValue computes a trace-based metric over the traces in scope.
func TraceValue(rule *models.AlertRule, apdexT float64, traces []*models.Trace) (float64, bool) {
	durations := lo.FilterMap(traces, func(t *models.Trace, _ int) (float64, bool) {
		if t.DurationMs == nil {
			return 0, false
		}

		return *t.DurationMs, true
	})

	switch rule.MetricType {
	case models.MetricTypeApdex:
		return apdex.Calculate(durations, apdexT), true
	case models.MetricTypeErrorRate:
		errored := lo.CountBy(traces, func(t *models.Trace) bool { return t.Error })
		if len(traces) == 0 {
			return 0, true
		}

		return 100 * float64(errored) / float64(len(traces)), true
	case models.MetricTypeThroughput:
		return float64(len(traces)) / float64(rule.WindowMinutes), true
	case models.MetricTypeResponseTime:
		switch rule.Aggregation {
		case models.AggregationMax, models.AggregationMin, models.AggregationP95, models.AggregationP99:
			return reduce(durations, rule.Aggregation)
		case models.AggregationAvg, models.AggregationSum, models.AggregationCount:
		}

		return reduce(durations, models.AggregationAvg)
	case models.MetricTypeP95:
		return reduce(durations, models.AggregationP95)
	case models.MetricTypeP99:
		return reduce(durations, models.AggregationP99)
	case models.MetricTypeCustom:
	}

	return 0, false
}

// reduce applies an aggregation. Sum and count of an empty set are 0;
// every other aggregation of an empty set has no value.
func reduce(values []float64, agg models.Aggregation) (float64, bool) {
	switch agg {
	case models.AggregationSum:
		return lo.Sum(values), true
	case models.AggregationCount:
		return float64(len(values)), true
	case models.AggregationAvg, models.AggregationMax, models.AggregationMin,
		models.AggregationP95, models.AggregationP99:
	}

	if len(values) == 0 {
		return 0, false
	}

	switch agg {
	case models.AggregationMax:
		return lo.Max(values), true
	case models.AggregationMin:
		return lo.Min(values), true
	case models.AggregationP95:
		return stats.Percentile(stats.Sorted(values), 0.95), true
	case models.AggregationP99:
		return stats.Percentile(stats.Sorted(values), 0.99), true
	case models.AggregationAvg, models.AggregationSum, models.AggregationCount:
	}

	return stats.Mean(values), true
}
