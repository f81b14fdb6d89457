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

package models

import "time"

// Overview summarizes request traffic over a window.
type Overview struct {
	WindowMinutes float64  `json:"window_minutes"`
	Apdex         float64  `json:"apdex"`
	Throughput    int      `json:"throughput"`
	RPM           float64  `json:"rpm"`
	AvgDurationMs *float64 `json:"avg_duration"`
	P95DurationMs *float64 `json:"p95_duration"`
	P99DurationMs *float64 `json:"p99_duration"`
	ErrorRate     float64  `json:"error_rate"`
	ErrorCount    int      `json:"error_count"`
}

// EndpointStat is one row of the endpoint breakdown.
type EndpointStat struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	AvgMs      float64 `json:"avg_duration"`
	P95Ms      float64 `json:"p95_duration"`
	P99Ms      float64 `json:"p99_duration"`
	MaxMs      float64 `json:"max_duration"`
	ErrorCount int     `json:"error_count"`
	ErrorRate  float64 `json:"error_rate"`
}

// WaterfallEntry is one span positioned relative to its trace start.
type WaterfallEntry struct {
	ID          string                 `json:"id"`
	ParentID    string                 `json:"parent_id,omitempty"`
	Name        string                 `json:"name"`
	DisplayName string                 `json:"display_name"`
	Kind        SpanKind               `json:"kind"`
	StartedAt   time.Time              `json:"started_at"`
	DurationMs  *float64               `json:"duration_ms,omitempty"`
	OffsetMs    float64                `json:"offset_ms"`
	Data        map[string]interface{} `json:"data"`
	Error       bool                   `json:"error"`
}

// TraceDetail is a trace with its ordered span waterfall.
type TraceDetail struct {
	Trace         *Trace           `json:"trace"`
	ApdexCategory string           `json:"apdex_category,omitempty"`
	Waterfall     []WaterfallEntry `json:"waterfall"`
}

// SlowQuery is one db span above the slow threshold.
type SlowQuery struct {
	SpanID        string    `json:"span_id"`
	TraceID       string    `json:"trace_id"`
	TraceName     string    `json:"trace_name"`
	SQL           string    `json:"sql"`
	NormalizedSQL string    `json:"normalized_sql"`
	Table         string    `json:"table,omitempty"`
	Operation     string    `json:"operation,omitempty"`
	DurationMs    float64   `json:"duration_ms"`
	StartedAt     time.Time `json:"started_at"`
}

// QueryPattern is a fingerprint group of db spans.
type QueryPattern struct {
	Fingerprint   string  `json:"fingerprint"`
	NormalizedSQL string  `json:"normalized_sql"`
	ExampleSQL    string  `json:"example_sql"`
	Table         string  `json:"table,omitempty"`
	Operation     string  `json:"operation,omitempty"`
	Count         int     `json:"count"`
	TotalMs       float64 `json:"total_duration_ms"`
	AvgMs         float64 `json:"avg_duration_ms"`
}

// TableStat is the per-table db span breakdown.
type TableStat struct {
	Table   string  `json:"table"`
	Count   int     `json:"count"`
	TotalMs float64 `json:"total_duration_ms"`
	AvgMs   float64 `json:"avg_duration_ms"`
}

// QuerySummary is the db span summary for a window.
type QuerySummary struct {
	TotalQueries    int      `json:"total_queries"`
	AvgDurationMs   float64  `json:"avg_duration_ms"`
	SlowCount       int      `json:"slow_count"`
	VerySlowCount   int      `json:"very_slow_count"`
	Tables          []string `json:"tables"`
	TableCount      int      `json:"table_count"`
	TraceCount      int      `json:"trace_count"`
	QueriesPerTrace float64  `json:"queries_per_trace"`
}

// DBSpanRecord is a db span joined with its trace, as read by analyzers.
type DBSpanRecord struct {
	Span      *Span
	TraceID   string
	TraceName string
}

// TimeBucket is one point of a request time series.
type TimeBucket struct {
	Time  time.Time `json:"time"`
	Count int       `json:"count"`
	AvgMs *float64  `json:"avg_duration,omitempty"`
}
