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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carverauto/pulse/pkg/models"
)

func trace(ms float64, failed bool) *models.Trace {
	return &models.Trace{DurationMs: &ms, Error: failed}
}

func TestTraceValue(t *testing.T) {
	open := &models.Trace{}
	traces := []*models.Trace{
		trace(100, false), trace(200, false), trace(300, true), trace(400, false),
		trace(2500, true), open,
	}

	tests := []struct {
		name string
		rule models.AlertRule
		want float64
		ok   bool
	}{
		{"error rate counts open traces", models.AlertRule{MetricType: models.MetricTypeErrorRate}, 100 * 2.0 / 6.0, true},
		{"throughput per minute", models.AlertRule{MetricType: models.MetricTypeThroughput, WindowMinutes: 3}, 2, true},
		{"avg", models.AlertRule{MetricType: models.MetricTypeResponseTime, Aggregation: models.AggregationAvg}, 700, true},
		{"max", models.AlertRule{MetricType: models.MetricTypeResponseTime, Aggregation: models.AggregationMax}, 2500, true},
		{"min", models.AlertRule{MetricType: models.MetricTypeResponseTime, Aggregation: models.AggregationMin}, 100, true},
		{"sum falls back to avg", models.AlertRule{MetricType: models.MetricTypeResponseTime, Aggregation: models.AggregationSum}, 700, true},
		{"p95", models.AlertRule{MetricType: models.MetricTypeP95}, 2500, true},
		{"p99", models.AlertRule{MetricType: models.MetricTypeP99}, 2500, true},
		// 100..400 satisfied, 2500 tolerating against 0.8s
		{"apdex", models.AlertRule{MetricType: models.MetricTypeApdex}, 0.9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TraceValue(&tt.rule, 0.8, traces)

			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestTraceValueEmptyWindow(t *testing.T) {
	v, ok := TraceValue(&models.AlertRule{MetricType: models.MetricTypeErrorRate}, 0.5, nil)
	assert.True(t, ok)
	assert.Zero(t, v)

	_, ok = TraceValue(&models.AlertRule{MetricType: models.MetricTypeP95}, 0.5, nil)
	assert.False(t, ok)

	_, ok = TraceValue(&models.AlertRule{MetricType: models.MetricTypeResponseTime}, 0.5, []*models.Trace{{}})
	assert.False(t, ok)

	v, ok = TraceValue(&models.AlertRule{MetricType: models.MetricTypeApdex}, 0.5, nil)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, v, 0.0001)
}

func TestReduce(t *testing.T) {
	values := []float64{4, 1, 3, 2}

	tests := []struct {
		agg  models.Aggregation
		want float64
	}{
		{models.AggregationAvg, 2.5},
		{models.AggregationMax, 4},
		{models.AggregationMin, 1},
		{models.AggregationSum, 10},
		{models.AggregationCount, 4},
		{models.AggregationP95, 4},
	}

	for _, tt := range tests {
		got, ok := reduce(values, tt.agg)
		assert.True(t, ok, tt.agg)
		assert.InDelta(t, tt.want, got, 0.0001, tt.agg)
	}

	v, ok := reduce(nil, models.AggregationCount)
	assert.True(t, ok)
	assert.Zero(t, v)

	_, ok = reduce(nil, models.AggregationMax)
	assert.False(t, ok)
}
