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

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/nplusone"
	"github.com/carverauto/pulse/pkg/query"
)

const (
	defaultToolLimit     = 20
	defaultSlowThreshold = 1000.0
	maxMessageRunes      = 200
)

var errTraceIDRequired = errors.New("trace_id is required")

// windowArgs is shared by every tool that takes a time range.
type windowArgs struct {
	Since string `json:"since,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (a windowArgs) limit() int {
	if a.Limit <= 0 {
		return defaultToolLimit
	}

	return a.Limit
}

func (m *MCPServer) since(expr string) time.Time {
	return query.Since(expr, m.now())
}

func decodeArgs(tool string, args json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(args, dst); err != nil {
		return fmt.Errorf("invalid %s arguments: %w", tool, err)
	}

	return nil
}

func schema(properties map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{"type": "object", "properties": properties}
	if len(required) > 0 {
		s["required"] = required
	}

	return s
}

func prop(kind, description string, def interface{}) map[string]interface{} {
	p := map[string]interface{}{"type": kind}
	if description != "" {
		p["description"] = description
	}

	if def != nil {
		p["default"] = def
	}

	return p
}

var (
	sinceProp = prop("string", "Time range (30m, 1h, 7d)", "1h")
	limitProp = prop("integer", "Max results", defaultToolLimit)
)

func (m *MCPServer) register(t MCPTool) {
	m.tools[t.Name] = t
}

// registerTools registers all pulse MCP tools
func (m *MCPServer) registerTools() {
	m.register(MCPTool{
		Name:        "pulse_overview",
		Description: "Get application health overview: Apdex score, throughput, response times (avg, p95, p99), and error rate.",
		InputSchema: schema(map[string]interface{}{"since": sinceProp}),
		Handler:     m.overview,
	})
	m.register(MCPTool{
		Name:        "pulse_slow_requests",
		Description: "Get slowest requests. Useful for finding performance bottlenecks.",
		InputSchema: schema(map[string]interface{}{
			"threshold_ms": prop("number", "Min duration in ms", defaultSlowThreshold),
			"since":        sinceProp,
			"limit":        limitProp,
		}),
		Handler: m.slowRequests,
	})
	m.register(MCPTool{
		Name:        "pulse_throughput",
		Description: "Get request throughput over time (requests per minute).",
		InputSchema: schema(map[string]interface{}{
			"since":       sinceProp,
			"granularity": prop("string", "minute or hour", "minute"),
		}),
		Handler: m.throughput,
	})
	m.register(MCPTool{
		Name:        "pulse_errors",
		Description: "Get requests that resulted in errors (5xx status or exceptions).",
		InputSchema: schema(map[string]interface{}{"since": sinceProp, "limit": limitProp}),
		Handler:     m.errorTraces,
	})
	m.register(MCPTool{
		Name:        "pulse_trace",
		Description: "Get detailed trace with all spans (waterfall view).",
		InputSchema: schema(map[string]interface{}{"trace_id": prop("string", "Trace ID", nil)}, "trace_id"),
		Handler:     m.trace,
	})
	m.register(MCPTool{
		Name:        "pulse_endpoints",
		Description: "Get performance stats by endpoint. Shows which endpoints are slowest or most called.",
		InputSchema: schema(map[string]interface{}{
			"since":   sinceProp,
			"sort_by": prop("string", "count, avg_duration or p95", "count"),
			"limit":   limitProp,
		}),
		Handler: m.endpoints,
	})
	m.register(MCPTool{
		Name:        "pulse_metrics",
		Description: "Get custom metrics. List available metrics or query a specific one.",
		InputSchema: schema(map[string]interface{}{
			"name":  prop("string", "Metric name (omit to list all)", nil),
			"since": sinceProp,
		}),
		Handler: m.metrics,
	})
	m.register(MCPTool{
		Name:        "pulse_n_plus_one",
		Description: "Find repeated query patterns (N+1) and the traces that suffer from them.",
		InputSchema: schema(map[string]interface{}{"since": sinceProp, "limit": limitProp}),
		Handler:     m.nPlusOne,
	})
}

func (m *MCPServer) overview(ctx context.Context, p *models.Project, raw json.RawMessage) (interface{}, error) {
	var args windowArgs
	if err := decodeArgs("overview", raw, &args); err != nil {
		return nil, err
	}

	return m.reader.Overview(ctx, p, m.since(args.Since))
}

type slowRequest struct {
	ID         string     `json:"id"`
	TraceID    string     `json:"trace_id"`
	Name       string     `json:"name"`
	DurationMs *float64   `json:"duration_ms"`
	StartedAt  time.Time  `json:"started_at"`
	Controller string     `json:"controller,omitempty"`
	Action     string     `json:"action,omitempty"`
	Status     *int       `json:"status,omitempty"`
	DBMs       float64    `json:"db_ms"`
	ViewMs     float64    `json:"view_ms"`
	SpanCount  int        `json:"span_count"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

func (m *MCPServer) slowRequests(ctx context.Context, p *models.Project, raw json.RawMessage) (interface{}, error) {
	var args struct {
		windowArgs
		ThresholdMs *float64 `json:"threshold_ms,omitempty"`
	}

	if err := decodeArgs("slow requests", raw, &args); err != nil {
		return nil, err
	}

	threshold := defaultSlowThreshold
	if args.ThresholdMs != nil {
		threshold = *args.ThresholdMs
	}

	traces, err := m.reader.Traces(ctx, p, models.TraceFilter{
		Kind:          models.TraceKindRequest,
		MinDurationMs: threshold,
		Since:         m.since(args.Since),
		Limit:         args.limit(),
		SlowestFirst:  true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]slowRequest, 0, len(traces))
	for _, t := range traces {
		out = append(out, slowRequest{
			ID:         t.ID.String(),
			TraceID:    t.TraceID,
			Name:       t.Name,
			DurationMs: t.DurationMs,
			StartedAt:  t.StartedAt,
			EndedAt:    t.EndedAt,
			Controller: t.Controller,
			Action:     t.Action,
			Status:     t.Status,
			DBMs:       t.DBDurationMs,
			ViewMs:     t.ViewDurationMs,
			SpanCount:  t.SpanCount,
		})
	}

	return map[string]interface{}{"slow_requests": out, "threshold_ms": threshold, "count": len(out)}, nil
}

func (m *MCPServer) throughput(ctx context.Context, p *models.Project, raw json.RawMessage) (interface{}, error) {
	var args struct {
		Since       string `json:"since,omitempty"`
		Granularity string `json:"granularity,omitempty"`
	}

	if err := decodeArgs("throughput", raw, &args); err != nil {
		return nil, err
	}

	return m.reader.Throughput(ctx, p, m.since(args.Since), models.Granularity(args.Granularity))
}

type errorTrace struct {
	ID           string    `json:"id"`
	TraceID      string    `json:"trace_id"`
	Name         string    `json:"name"`
	ErrorClass   string    `json:"error_class,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	DurationMs   *float64  `json:"duration_ms"`
}

func (m *MCPServer) errorTraces(ctx context.Context, p *models.Project, raw json.RawMessage) (interface{}, error) {
	var args windowArgs
	if err := decodeArgs("errors", raw, &args); err != nil {
		return nil, err
	}

	traces, err := m.reader.Traces(ctx, p, models.TraceFilter{
		ErrorsOnly: true,
		Since:      m.since(args.Since),
		Limit:      args.limit(),
	})
	if err != nil {
		return nil, err
	}

	out := make([]errorTrace, 0, len(traces))
	for _, t := range traces {
		out = append(out, errorTrace{
			ID:           t.ID.String(),
			TraceID:      t.TraceID,
			Name:         t.Name,
			ErrorClass:   t.ErrorClass,
			ErrorMessage: truncate(t.ErrorMessage, maxMessageRunes),
			StartedAt:    t.StartedAt,
			DurationMs:   t.DurationMs,
		})
	}

	return map[string]interface{}{"error_traces": out, "count": len(out)}, nil
}

func (m *MCPServer) trace(ctx context.Context, p *models.Project, raw json.RawMessage) (interface{}, error) {
	var args struct {
		TraceID string `json:"trace_id"`
	}

	if err := decodeArgs("trace", raw, &args); err != nil {
		return nil, err
	}

	if args.TraceID == "" {
		return nil, errTraceIDRequired
	}

	detail, err := m.reader.Trace(ctx, p, args.TraceID)
	if errors.Is(err, query.ErrNotFound) {
		return map[string]string{"error": "Trace not found"}, nil
	}

	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"trace":          detail.Trace,
		"apdex_category": detail.ApdexCategory,
		"spans":          detail.Waterfall,
	}, nil
}

func (m *MCPServer) endpoints(ctx context.Context, p *models.Project, raw json.RawMessage) (interface{}, error) {
	var args struct {
		windowArgs
		SortBy string `json:"sort_by,omitempty"`
	}

	if err := decodeArgs("endpoints", raw, &args); err != nil {
		return nil, err
	}

	stats, err := m.reader.Endpoints(ctx, p, m.since(args.Since), db.EndpointSort(args.SortBy), args.limit())
	if err != nil {
		return nil, err
	}

	if stats == nil {
		stats = []models.EndpointStat{}
	}

	return map[string]interface{}{"endpoints": stats}, nil
}

type metricInfo struct {
	Name string            `json:"name"`
	Kind models.MetricKind `json:"kind"`
	Unit string            `json:"unit,omitempty"`
}

func (m *MCPServer) metrics(ctx context.Context, p *models.Project, raw json.RawMessage) (interface{}, error) {
	var args struct {
		Name  string `json:"name,omitempty"`
		Since string `json:"since,omitempty"`
	}

	if err := decodeArgs("metrics", raw, &args); err != nil {
		return nil, err
	}

	if args.Name == "" {
		list, err := m.reader.Metrics(ctx, p)
		if err != nil {
			return nil, err
		}

		out := make([]metricInfo, 0, len(list))
		for _, mt := range list {
			out = append(out, metricInfo{Name: mt.Name, Kind: mt.Kind, Unit: mt.Unit})
		}

		return map[string]interface{}{"metrics": out}, nil
	}

	series, err := m.reader.Metric(ctx, p, args.Name, models.GranularityHour, m.since(args.Since))
	if errors.Is(err, query.ErrNotFound) {
		return map[string]string{"error": "Metric not found"}, nil
	}

	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"metric": metricInfo{Name: series.Metric.Name, Kind: series.Metric.Kind, Unit: series.Metric.Unit},
		"stats":  series.Stats,
	}, nil
}

func (m *MCPServer) nPlusOne(ctx context.Context, p *models.Project, raw json.RawMessage) (interface{}, error) {
	var args windowArgs
	if err := decodeArgs("n+1", raw, &args); err != nil {
		return nil, err
	}

	window := query.ParseWindow(args.Since)

	patterns, err := m.patterns.AggregatePatterns(ctx, p.ID, window, args.limit())
	if err != nil {
		return nil, err
	}

	traces, err := m.patterns.FindAffectedTraces(ctx, p.ID, window, args.limit())
	if err != nil {
		return nil, err
	}

	if patterns == nil {
		patterns = []nplusone.AggregatedPattern{}
	}

	if traces == nil {
		traces = []nplusone.AffectedTrace{}
	}

	return map[string]interface{}{"patterns": patterns, "traces": traces}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}

	return string(r[:n-3]) + "..."
}
