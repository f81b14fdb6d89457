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
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/pulse/pkg/models"
)

const browserBody = `{
	"events": [
		{"type": "performance", "url": "https://shop.test/cart", "sessionId": "sess",
		 "timestamp": "2025-03-04T10:00:00Z", "data": {"type": "LCP", "value": 2100.5, "rating": "needs-improvement"}},
		{"type": "performance", "data": {"type": "slow_resource", "name": "app.js", "initiatorType": "script", "duration_ms": 900}},
		{"type": "performance", "data": {"type": "long_task", "value": 3}},
		{"type": "network", "url": "https://shop.test/cart", "data": {"method": "POST", "path": "/api/cart", "status": 201, "duration_ms": 120}},
		{"type": "click"}
	],
	"context": {"traceId": "page-trace", "parentSpanId": "root"}
}`

func decodeBrowser(t *testing.T) BrowserPayload {
	t.Helper()

	var p BrowserPayload
	require.NoError(t, json.Unmarshal([]byte(browserBody), &p))

	return p
}

func TestParseTraceparent(t *testing.T) {
	tc, ok := ParseTraceparent("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	require.True(t, ok)
	assert.Equal(t, TraceContext{TraceID: "4bf92f3577b34da6a3ce929d0e0e4736", ParentSpanID: "00f067aa0ba902b7"}, tc)

	_, ok = ParseTraceparent("garbage")
	assert.False(t, ok)

	body := BrowserContext{TraceID: "b", ParentSpanID: "p"}
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736",
		ResolveTraceContext("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", body).TraceID)
	assert.Equal(t, &TraceContext{TraceID: "b", ParentSpanID: "p"}, ResolveTraceContext("", body))
	assert.Nil(t, ResolveTraceContext("", BrowserContext{}))
}

func TestIngestBrowserWithKnownTrace(t *testing.T) {
	store := newFakeStore()
	proc, _, _ := newTestProcessor(store)
	rc := NewRequestContext(testProject(), "", receivedAt)
	ctx := context.Background()

	parent, err := proc.Process(ctx, rc, decodeTrace(t, `{"trace_id": "page-trace"}`))
	require.NoError(t, err)

	payload := decodeBrowser(t)

	result, err := proc.IngestBrowser(ctx, rc, payload, ResolveTraceContext("", payload.Context))
	require.NoError(t, err)
	assert.Equal(t, BrowserResult{Performance: 3, Network: 1}, result)

	spans := store.spansFor(parent)
	require.Len(t, spans, 3)

	lcp := spans[0]
	assert.Equal(t, models.SpanKindBrowserLCP, lcp.Kind)
	assert.Equal(t, "Browser LCP", lcp.Name)
	assert.True(t, strings.HasPrefix(lcp.SpanID, "browser_"))
	assert.Equal(t, "root", lcp.ParentSpanID)
	assert.InDelta(t, 2100.5, *lcp.DurationMs, 0.001)
	assert.Equal(t, lcp.StartedAt, *lcp.EndedAt)
	assert.Equal(t, "needs-improvement", lcp.Data["rating"])
	assert.Equal(t, "browser", lcp.Data["source"])
	assert.NotContains(t, lcp.Data, "user_agent")

	assert.Equal(t, models.SpanKindBrowserRes, spans[1].Kind)
	assert.Equal(t, "Slow Resource: app.js", spans[1].Name)
	assert.Equal(t, models.SpanKindBrowserNet, spans[2].Kind)
	assert.Equal(t, "POST /api/cart", spans[2].Name)
	assert.Equal(t, 201, spans[2].Data["status"])

	require.Len(t, store.points, 3)
	names := make([]string, 0, 3)
	for _, m := range store.metrics {
		names = append(names, m.Name)
	}

	assert.ElementsMatch(t, []string{"browser.lcp", "browser.slow_resource", "browser.network.request"}, names)
	assert.Equal(t, "page-trace", store.points[0].Tags["trace_id"])
	assert.Equal(t, "201", store.points[2].Tags["status"])
	assert.Equal(t, receivedAt, store.points[0].Timestamp)
}

func TestIngestBrowserWithoutTraceRecordsOnlyMetrics(t *testing.T) {
	store := newFakeStore()
	proc, _, _ := newTestProcessor(store)
	rc := NewRequestContext(testProject(), "", receivedAt)

	result, err := proc.IngestBrowser(context.Background(), rc, decodeBrowser(t), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Performance)
	assert.Empty(t, store.spans)
	require.Len(t, store.points, 3)
	assert.NotContains(t, store.points[0].Tags, "trace_id")
}

func TestIngestBrowserUnknownTraceIgnoresSpans(t *testing.T) {
	store := newFakeStore()
	proc, _, _ := newTestProcessor(store)
	rc := NewRequestContext(testProject(), "", receivedAt)

	_, err := proc.IngestBrowser(context.Background(), rc, decodeBrowser(t), &TraceContext{TraceID: "nope"})
	require.NoError(t, err)
	assert.Empty(t, store.spans)
	assert.Len(t, store.points, 3)
}
