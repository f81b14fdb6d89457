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
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/pulse/pkg/models"
)

// Browser event types.
const (
	BrowserEventPerformance = "performance"
	BrowserEventNetwork     = "network"
)

const (
	slowResourceType   = "slow_resource"
	browserSpanPrefix  = "browser_"
	browserMetricKind  = models.MetricKindGauge
	traceparentMinimal = 4
)

var webVitals = map[string]models.SpanKind{
	"LCP":  models.SpanKindBrowserLCP,
	"FCP":  models.SpanKindBrowserFCP,
	"TTFB": models.SpanKindBrowserTTFB,
	"FID":  models.SpanKindBrowserFID,
	"INP":  models.SpanKindBrowserINP,
	"CLS":  models.SpanKindBrowserCLS,
}

// BrowserPayload is what the browser SDK posts.
type BrowserPayload struct {
	Events  []BrowserEvent `json:"events"`
	Context BrowserContext `json:"context"`
}

// BrowserContext optionally links events to a server-side trace.
type BrowserContext struct {
	TraceID      string `json:"traceId"`
	ParentSpanID string `json:"parentSpanId"`
}

// BrowserEvent is one performance or network observation.
type BrowserEvent struct {
	Type      string           `json:"type"`
	Timestamp models.Timestamp `json:"timestamp"`
	URL       string           `json:"url"`
	SessionID string           `json:"sessionId"`
	UserAgent string           `json:"userAgent"`
	Data      BrowserEventData `json:"data"`
}

// BrowserEventData holds web-vital, resource and network fields.
type BrowserEventData struct {
	Type          string   `json:"type"`
	Value         *float64 `json:"value"`
	Rating        string   `json:"rating"`
	Name          string   `json:"name"`
	InitiatorType string   `json:"initiatorType"`
	DurationMs    *float64 `json:"duration_ms"`
	Method        string   `json:"method"`
	Path          string   `json:"path"`
	Host          string   `json:"host"`
	Status        *int     `json:"status"`
}

// TraceContext names the trace browser spans attach to.
type TraceContext struct {
	TraceID      string
	ParentSpanID string
}

// ParseTraceparent reads a W3C traceparent header: version-traceid-spanid-flags.
func ParseTraceparent(header string) (TraceContext, bool) {
	parts := strings.Split(strings.TrimSpace(header), "-")
	if len(parts) < traceparentMinimal || parts[1] == "" {
		return TraceContext{}, false
	}

	return TraceContext{TraceID: parts[1], ParentSpanID: parts[2]}, true
}

// ResolveTraceContext prefers the traceparent header over the body context.
func ResolveTraceContext(traceparent string, body BrowserContext) *TraceContext {
	if tc, ok := ParseTraceparent(traceparent); ok {
		return &tc
	}

	if body.TraceID != "" {
		return &TraceContext{TraceID: body.TraceID, ParentSpanID: body.ParentSpanID}
	}

	return nil
}

// BrowserResult counts accepted events by type.
type BrowserResult struct {
	Performance int `json:"performance"`
	Network     int `json:"network"`
}

// IngestBrowser records a metric point per measured event and, when the events
// belong to a known trace of the project, an instantaneous span per event.
func (p *TraceProcessor) IngestBrowser(
	ctx context.Context, rc RequestContext, payload BrowserPayload, tc *TraceContext,
) (BrowserResult, error) {
	var result BrowserResult

	if err := rc.validate(); err != nil {
		return result, err
	}

	var (
		spans   []models.SpanPayload
		samples []models.MetricPayload
		now     = rc.now()
	)

	for i := range payload.Events {
		ev := &payload.Events[i]

		var (
			span   *models.SpanPayload
			sample *models.MetricPayload
		)

		switch ev.Type {
		case BrowserEventPerformance:
			result.Performance++
			span, sample = performanceEvent(ev, ev.Timestamp.Or(now))
		case BrowserEventNetwork:
			result.Network++
			span, sample = networkEvent(ev, ev.Timestamp.Or(now))
		default:
			continue
		}

		if span != nil && tc != nil {
			span.ParentSpanID = tc.ParentSpanID
			spans = append(spans, *span)
		}

		if sample != nil && sample.Value != nil {
			sample.Tags = withTraceTags(sample.Tags, tc)
			samples = append(samples, *sample)
		}
	}

	if len(spans) == 0 && len(samples) == 0 {
		return result, nil
	}

	err := p.repo.RunInTx(ctx, func(store Store) error {
		if len(spans) > 0 {
			if err := p.writeBrowserSpans(ctx, store, rc, tc.TraceID, spans); err != nil {
				return err
			}
		}

		if len(samples) == 0 {
			return nil
		}

		_, err := recordMetrics(ctx, store, rc, samples)

		return err
	})
	if err != nil {
		return BrowserResult{}, err
	}

	return result, nil
}

// writeBrowserSpans attaches spans to the project's trace; an unknown trace is ignored.
func (p *TraceProcessor) writeBrowserSpans(
	ctx context.Context, store Store, rc RequestContext, traceID string, payloads []models.SpanPayload,
) error {
	found, err := store.FindTracesByTraceIDs(ctx, []string{traceID})
	if err != nil {
		return err
	}

	t, ok := found[traceID]
	if !ok || t.ProjectID != rc.Project.ID {
		p.logger.Debug().Str("trace_id", traceID).Msg("Browser events reference unknown trace")
		return nil
	}

	now := rc.now()
	spans := make([]*models.Span, 0, len(payloads))

	for i := range payloads {
		spans = append(spans, buildSpan(t, &payloads[i], now))
	}

	if err := store.InsertSpans(ctx, spans); err != nil {
		return err
	}

	return recompute(ctx, store, []*models.Trace{t})
}

func performanceEvent(ev *BrowserEvent, at time.Time) (*models.SpanPayload, *models.MetricPayload) {
	d := ev.Data

	if kind, ok := webVitals[d.Type]; ok {
		span := browserSpan(ev, at, kind, "Browser "+d.Type, d.Value, map[string]interface{}{
			"rating": d.Rating,
			"value":  d.Value,
		})
		sample := browserSample(string(kind), d.Value, map[string]string{
			"rating":     d.Rating,
			"url":        ev.URL,
			"session_id": ev.SessionID,
		})

		return span, sample
	}

	if d.Type != slowResourceType {
		return nil, nil
	}

	span := browserSpan(ev, at, models.SpanKindBrowserRes, "Slow Resource: "+d.Name, d.DurationMs, map[string]interface{}{
		"resource_name":  d.Name,
		"initiator_type": d.InitiatorType,
		"duration_ms":    d.DurationMs,
	})
	sample := browserSample("browser.slow_resource", d.DurationMs, map[string]string{
		"resource_name":  d.Name,
		"initiator_type": d.InitiatorType,
		"url":            ev.URL,
	})

	return span, sample
}

func networkEvent(ev *BrowserEvent, at time.Time) (*models.SpanPayload, *models.MetricPayload) {
	d := ev.Data

	duration := d.DurationMs
	if duration == nil {
		zero := 0.0
		duration = &zero
	}

	status := ""
	if d.Status != nil {
		status = strconv.Itoa(*d.Status)
	}

	span := browserSpan(ev, at, models.SpanKindBrowserNet, fmt.Sprintf("%s %s", d.Method, d.Path), duration, map[string]interface{}{
		"method":      d.Method,
		"path":        d.Path,
		"status":      d.Status,
		"host":        d.Host,
		"duration_ms": d.DurationMs,
	})
	sample := browserSample("browser.network.request", duration, map[string]string{
		"method": d.Method,
		"path":   d.Path,
		"status": status,
		"host":   d.Host,
		"url":    ev.URL,
	})

	return span, sample
}

// browserSpan describes an instantaneous measurement whose duration is the measured value.
func browserSpan(
	ev *BrowserEvent, at time.Time, kind models.SpanKind, name string, value *float64, data map[string]interface{},
) *models.SpanPayload {
	data["source"] = "browser"
	data["session_id"] = ev.SessionID
	data["url"] = ev.URL
	data["user_agent"] = ev.UserAgent

	duration := 0.0
	if value != nil {
		duration = *value
	}

	return &models.SpanPayload{
		SpanID:     browserSpanPrefix + newSpanID(),
		Name:       strings.TrimSpace(name),
		Kind:       kind,
		StartedAt:  models.At(at),
		EndedAt:    models.At(at),
		DurationMs: &duration,
		Data:       compactData(data),
	}
}

func browserSample(name string, value *float64, tags map[string]string) *models.MetricPayload {
	return &models.MetricPayload{
		Name:  name,
		Value: value,
		Kind:  browserMetricKind,
		Tags:  compactTags(tags),
	}
}

func withTraceTags(tags map[string]string, tc *TraceContext) map[string]string {
	if tc == nil {
		return tags
	}

	if tags == nil {
		tags = make(map[string]string, 2)
	}

	tags["trace_id"] = tc.TraceID
	if tc.ParentSpanID != "" {
		tags["parent_span_id"] = tc.ParentSpanID
	}

	return tags
}

func compactData(data map[string]interface{}) map[string]interface{} {
	for k, v := range data {
		switch val := v.(type) {
		case nil:
			delete(data, k)
		case string:
			if val == "" {
				delete(data, k)
			}
		case *float64:
			if val == nil {
				delete(data, k)
			} else {
				data[k] = *val
			}
		case *int:
			if val == nil {
				delete(data, k)
			} else {
				data[k] = *val
			}
		}
	}

	return data
}

func compactTags(tags map[string]string) map[string]string {
	for k, v := range tags {
		if v == "" {
			delete(tags, k)
		}
	}

	return tags
}
