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

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/pulse/pkg/alerts"
	"github.com/carverauto/pulse/pkg/broadcast"
	"github.com/carverauto/pulse/pkg/ingest"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/nplusone"
)

const (
	testAPIKey    = "pls_0123456789abcdef0123456789abcdef0123456789abcdef"
	testIngestKey = "pls_ingest_0123456789abcdef0123456789abcdef0123456789abcdef"
	testMasterKey = "master-secret"
)

type testEnv struct {
	srv      *APIServer
	project  *models.Project
	projects *fakeProjects
	ingestor *fakeIngestor
	recorder *fakeRecorder
	reader   *fakeReader
	patterns *fakePatterns
	eval     *fakeEvaluator
	config   *fakeConfig
	events   *recordingBroadcaster
	now      time.Time
}

func newTestEnv(t *testing.T, opts ...func(*APIServer)) *testEnv {
	t.Helper()

	env := &testEnv{
		project: &models.Project{
			ID:     uuid.New(),
			Slug:   "shop",
			Name:   "Shop",
			ApdexT: 0.5,
			Settings: map[string]interface{}{
				models.SettingAPIKey:         testAPIKey,
				models.SettingIngestKey:      testIngestKey,
				models.SettingAllowedOrigins: []interface{}{"https://shop.example.com"},
			},
		},
		ingestor: &fakeIngestor{},
		recorder: &fakeRecorder{},
		reader:   &fakeReader{},
		patterns: &fakePatterns{},
		eval:     &fakeEvaluator{},
		config:   newFakeConfig(),
		events:   &recordingBroadcaster{},
		now:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.projects = newFakeProjects(env.project)

	options := []func(*APIServer){
		WithProjectStore(env.projects, time.Minute),
		WithMasterKey(testMasterKey),
		WithIngestor(env.ingestor),
		WithMetricRecorder(env.recorder),
		WithReader(env.reader),
		WithPatternFinder(env.patterns),
		WithRuleEvaluator(env.eval),
		WithConfigStore(env.config),
		WithBroadcaster(env.events),
		WithPinger(fakePinger{}),
	}

	env.srv = NewAPIServer(models.CORSConfig{}, append(options, opts...)...)
	env.srv.now = func() time.Time { return env.now }

	return env
}

func (e *testEnv) do(t *testing.T, method, path, key string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer

	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(v))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)

	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())

	return out
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "version")

	rec = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	down := newTestEnv(t, WithPinger(fakePinger{err: errors.New("connection refused")}))
	rec = down.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestProtectedRoutesRequireKey(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/traces", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid API key", decodeBody(t, rec)["message"])

	rec = env.do(t, http.MethodGet, "/api/v1/traces", "pls_unknown", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The write-only browser key cannot read server data.
	rec = env.do(t, http.MethodGet, "/api/v1/traces", testIngestKey, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateTrace(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/traces", testAPIKey, map[string]interface{}{
		"trace_id":   "abc123",
		"name":       "GET /orders",
		"started_at": "2025-03-01T11:59:59Z",
		"ended_at":   "2025-03-01T12:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "abc123", body["trace_id"])
	assert.NotEmpty(t, body["id"])

	require.Len(t, env.ingestor.payloads, 1)
	assert.Equal(t, env.project.ID, env.ingestor.rc.Project.ID)
	assert.Equal(t, env.now, env.ingestor.rc.ReceivedAt)
	assert.NotEmpty(t, env.ingestor.rc.RequestID)
}

func TestCreateTraceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		body string
		code int
	}{
		{
			name: "validation",
			err:  models.ValidationErrors{{Field: "name", Message: "is required"}},
			body: `{"trace_id":"a"}`,
			code: http.StatusUnprocessableEntity,
		},
		{name: "malformed", body: `{"trace_id":`, code: http.StatusBadRequest},
		{name: "owned elsewhere", err: ingest.ErrTraceOwnedElsewhere, body: `{}`, code: http.StatusConflict},
		{name: "unexpected", err: errors.New("boom"), body: `{}`, code: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.ingestor.err = tt.err

			rec := env.do(t, http.MethodPost, "/api/v1/traces", testAPIKey, tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestValidationErrorBody(t *testing.T) {
	env := newTestEnv(t)
	env.ingestor.err = models.ValidationErrors{{Field: "name", Message: "is required"}}

	rec := env.do(t, http.MethodPost, "/api/v1/traces", testAPIKey, `{}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Validation failed", resp.Message)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "name", resp.Errors[0].Field)
}

func TestBatchTracesAcceptsBothShapes(t *testing.T) {
	for _, body := range []string{
		`[{"trace_id":"a","name":"x"},{"trace_id":"b","name":"y"}]`,
		`{"traces":[{"trace_id":"a","name":"x"},{"trace_id":"b","name":"y"}]}`,
	} {
		env := newTestEnv(t)

		rec := env.do(t, http.MethodPost, "/api/v1/traces/batch", testAPIKey, body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		resp := decodeBody(t, rec)
		assert.InDelta(t, 2, resp["processed"], 0)
		assert.Len(t, resp["results"], 2)
	}
}

func TestAppendSpans(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/traces/t1/spans", testAPIKey,
		`{"span_id":"s1","name":"SELECT","kind":"db","started_at":"2025-03-01T12:00:00Z"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]interface{}{"span_id": "s1", "trace_id": "t1"}, decodeBody(t, rec))

	rec = env.do(t, http.MethodPost, "/api/v1/traces/t1/spans", testAPIKey,
		`{"spans":[{"span_id":"s1","name":"a"},{"span_id":"s2","name":"b"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.InDelta(t, 2, decodeBody(t, rec)["count"], 0)

	env.ingestor.err = ingest.ErrTraceNotFound
	rec = env.do(t, http.MethodPost, "/api/v1/traces/missing/spans", testAPIKey, `[{"span_id":"s1","name":"a"}]`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsIngest(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/metrics", testAPIKey, `{"name":"queue.depth","value":3}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decodeBody(t, rec)["metric_id"])

	rec = env.do(t, http.MethodPost, "/api/v1/metrics/batch", testAPIKey,
		`{"metrics":[{"name":"a","value":1},{"name":"b","value":2}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.InDelta(t, 2, decodeBody(t, rec)["processed"], 0)
}

func TestBrowserIngest(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/browser", bytes.NewBufferString(
		`{"events":[{"type":"performance","data":{"type":"LCP","value":1200}},{"type":"network","data":{"method":"GET"}}]}`))
	req.Header.Set("X-API-Key", testIngestKey)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("X-Pulse-Session", "sess-1")
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "sess-1", body["session_id"])
	assert.Equal(t, map[string]interface{}{"performance": 1.0, "network": 1.0}, body["results"])

	require.NotNil(t, env.ingestor.tc)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", env.ingestor.tc.TraceID)
}

func TestBrowserPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/browser", nil)
	req.Header.Set("Origin", "https://anywhere.example.org")

	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "traceparent")
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
}

func TestBrowserOrigin(t *testing.T) {
	tests := []struct {
		origin string
		code   int
	}{
		{origin: "https://evil.example.net", code: http.StatusForbidden},
		{origin: "http://localhost:3000", code: http.StatusOK},
		{origin: "https://shop.example.com", code: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			env := newTestEnv(t)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/browser", bytes.NewBufferString(`{"events":[]}`))
			req.Header.Set("Authorization", "Bearer "+testIngestKey)
			req.Header.Set("Origin", tt.origin)

			rec := httptest.NewRecorder()
			env.srv.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestBrowserIngestFailure(t *testing.T) {
	env := newTestEnv(t)
	env.ingestor.err = errors.New("tx aborted")

	rec := env.do(t, http.MethodPost, "/api/v1/browser", testIngestKey, `{"events":[]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "Failed to process events", decodeBody(t, rec)["message"])
}

func TestProvisionProject(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/projects/provision", "", `{"name":"Billing API"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	provision := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/projects/provision", bytes.NewBufferString(body))
		req.Header.Set("X-Master-Key", testMasterKey)

		rec := httptest.NewRecorder()
		env.srv.ServeHTTP(rec, req)

		return rec
	}

	rec = provision(`{"name":"Billing API"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.ProvisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "billing-api", created.Slug)
	assert.Regexp(t, `^pls_[0-9a-f]{48}$`, created.APIKey)
	assert.Regexp(t, `^pls_ingest_[0-9a-f]{48}$`, created.IngestKey)

	rec = provision(`{"name":"billing api"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var again models.ProvisionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.Equal(t, created.ID, again.ID)
	assert.Equal(t, 1, env.projects.created)

	rec = provision(`{"name":"  "}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// The fresh key authenticates immediately.
	rec = env.do(t, http.MethodGet, "/api/v1/alert_rules", created.APIKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProvisionRefusedWithoutConfiguredMasterKey(t *testing.T) {
	env := newTestEnv(t, WithMasterKey(""))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/projects", bytes.NewBufferString(`{"name":"x"}`))
	req.Header.Set("X-Master-Key", "")

	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAlertRuleLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/alert_rules", testAPIKey, map[string]interface{}{
		"name":        "Slow p95",
		"metric_type": "p95",
		"operator":    "gt",
		"threshold":   500,
		"status":      "alerting",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var rule models.AlertRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rule))
	assert.Equal(t, models.RuleStatusOK, rule.Status)
	assert.True(t, rule.Enabled)
	assert.Equal(t, models.DefaultWindowMinutes, rule.WindowMinutes)

	// The evaluator owns the state; an update cannot move it.
	env.config.rules[rule.ID].Status = models.RuleStatusAlerting

	path := "/api/v1/alert_rules/" + rule.ID.String()
	rec = env.do(t, http.MethodPut, path, testAPIKey, `{"threshold":800,"status":"ok"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated models.AlertRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.InDelta(t, 800, updated.Threshold, 0)
	assert.Equal(t, "Slow p95", updated.Name)
	assert.Equal(t, models.RuleStatusAlerting, updated.Status)

	rec = env.do(t, http.MethodPut, path, testAPIKey, `{"operator":"between"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodDelete, path, testAPIKey, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, path, testAPIKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, []string{
		broadcast.TypeRuleCreated,
		broadcast.TypeRuleUpdated,
		broadcast.TypeRuleDeleted,
	}, env.events.types())
}

func TestAlertRuleInvalidID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/alert_rules/not-a-uuid", testAPIKey, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluateAlertRule(t *testing.T) {
	env := newTestEnv(t)

	rule := &models.AlertRule{
		ProjectID:  env.project.ID,
		Name:       "Errors",
		MetricType: models.MetricTypeErrorRate,
		Operator:   models.OperatorGT,
		Threshold:  5,
	}
	rule.ApplyDefaults()
	require.NoError(t, env.config.CreateAlertRule(t.Context(), rule))

	env.eval.outcome = &alerts.Outcome{
		Transition: alerts.Transition{
			Action: alerts.ActionFire,
			From:   models.RuleStatusOK,
			To:     models.RuleStatusAlerting,
		},
		Value:         12.5,
		HasValue:      true,
		Notifications: 2,
	}

	rec := env.do(t, http.MethodPost, "/api/v1/alert_rules/"+rule.ID.String()+"/evaluate", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, "fire", body["action"])
	assert.Equal(t, "alerting", body["to"])
	assert.InDelta(t, 12.5, body["value"], 0)
	assert.InDelta(t, 2, body["notifications"], 0)
}

func TestListAlertsFilter(t *testing.T) {
	env := newTestEnv(t)
	ruleID := uuid.New()

	rec := env.do(t, http.MethodGet, "/api/v1/alerts?status=firing&limit=5&rule_id="+ruleID.String(), testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decodeBody(t, rec)["alerts"])

	assert.Equal(t, models.AlertStatusFiring, env.config.filter.Status)
	assert.Equal(t, 5, env.config.filter.Limit)
	assert.Equal(t, ruleID, env.config.filter.RuleID)
}

func TestChannelLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/channels", testAPIKey, map[string]interface{}{
		"name":   "Ops hook",
		"kind":   "webhook",
		"config": map[string]interface{}{"url": "https://hooks.example.com/x"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var ch models.NotificationChannel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ch))

	rec = env.do(t, http.MethodDelete, "/api/v1/channels/"+ch.ID.String(), testAPIKey, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Equal(t, []string{broadcast.TypeChannelCreated, broadcast.TypeChannelDeleted}, env.events.types())
}

func TestGetTrace(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/traces/nope", testAPIKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.reader.detail = &models.TraceDetail{
		Trace:         &models.Trace{TraceID: "t1", Name: "GET /"},
		ApdexCategory: "satisfied",
	}

	rec = env.do(t, http.MethodGet, "/api/v1/traces/t1", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "satisfied", body["apdex_category"])
	assert.Contains(t, body, "spans")
}

func TestListTracesFilter(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/traces?kind=request&errors=true&min_duration=250&limit=5000&since=15m",
		testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decodeBody(t, rec)["traces"])

	f := env.reader.filter
	assert.Equal(t, models.TraceKindRequest, f.Kind)
	assert.True(t, f.ErrorsOnly)
	assert.InDelta(t, 250, f.MinDurationMs, 0)
	assert.Equal(t, maxLimit, f.Limit)
	assert.Equal(t, env.now.Add(-15*time.Minute), f.Since)
}

func TestNPlusOne(t *testing.T) {
	env := newTestEnv(t)
	env.patterns.patterns = []nplusone.AggregatedPattern{{Fingerprint: "f1", Count: 40, TraceCount: 4}}

	rec := env.do(t, http.MethodGet, "/api/v1/n_plus_one?since=6h", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Len(t, body["patterns"], 1)
	assert.Equal(t, []interface{}{}, body["traces"])
	assert.Equal(t, 6*time.Hour, env.patterns.window)
}

func TestOverviewSince(t *testing.T) {
	env := newTestEnv(t)
	env.reader.overview = &models.Overview{Apdex: 0.9}

	rec := env.do(t, http.MethodGet, "/api/v1/overview?since=2025-03-01T10:00:00Z", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), env.reader.since.UTC())

	rec = env.do(t, http.MethodGet, "/api/v1/overview", testAPIKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, env.now.Add(-time.Hour), env.reader.since)
}

func TestLiveWithoutHub(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/live", testAPIKey, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestOriginAllowed(t *testing.T) {
	t.Parallel()

	allowed := []string{"https://app.example.com"}

	tests := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{origin: "https://other.example.com", allowed: nil, want: true},
		{origin: "https://app.example.com", allowed: allowed, want: true},
		{origin: "https://other.example.com", allowed: allowed, want: false},
		{origin: "http://localhost:5173", allowed: allowed, want: true},
		{origin: "http://127.0.0.1:8080", allowed: allowed, want: true},
		{origin: "http://shop.localhost", allowed: allowed, want: true},
		{origin: "", allowed: allowed, want: false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, OriginAllowed(tt.origin, tt.allowed), tt.origin)
	}
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "billing-api", Slugify("Billing API"))
	assert.Equal(t, "my-shop-2", Slugify("  My Shop #2! "))
	assert.Empty(t, Slugify("***"))
}

func TestNewKey(t *testing.T) {
	t.Parallel()

	a, err := NewKey(apiKeyPrefix)
	require.NoError(t, err)

	b, err := NewKey(apiKeyPrefix)
	require.NoError(t, err)

	assert.Regexp(t, `^pls_[0-9a-f]{48}$`, a)
	assert.NotEqual(t, a, b)
}
