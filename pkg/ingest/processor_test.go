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
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/pulse/pkg/broadcast"
	"github.com/carverauto/pulse/pkg/jobs"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

var receivedAt = time.Date(2025, 3, 4, 10, 15, 30, 0, time.UTC)

func testProject() *models.Project {
	return &models.Project{ID: uuid.New(), Slug: "shop", Environment: "production", ApdexT: 0.5}
}

func newTestProcessor(store *fakeStore) (*TraceProcessor, *fakeBroadcaster, *fakeQueue) {
	b := &fakeBroadcaster{}
	q := &fakeQueue{}

	return NewTraceProcessor(store, b, q, logger.NewTestLogger()), b, q
}

func decodeTrace(t *testing.T, raw string) models.TracePayload {
	t.Helper()

	var p models.TracePayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	return p
}

func TestProcessCreatesCompletesAndRollsUp(t *testing.T) {
	store := newFakeStore()
	proc, b, q := newTestProcessor(store)
	rc := NewRequestContext(testProject(), "req-1", receivedAt)

	payload := decodeTrace(t, `{
		"trace_id": "abc",
		"request_method": "GET",
		"request_path": "/users/42/orders/7",
		"started_at": "2025-03-04T10:15:00Z",
		"ended_at": "2025-03-04T10:15:00.250Z",
		"status": 200,
		"spans": [
			{"name": "sql.active_record", "kind": "db", "duration_ms": 12.5, "data": {"sql": "SELECT * FROM users WHERE id = 1"}},
			{"name": "render", "kind": "render", "duration_ms": 30},
			{"name": "http", "kind": "http", "duration_ms": 40.25},
			{"name": "custom thing"}
		]
	}`)

	tr, err := proc.Process(context.Background(), rc, payload)
	require.NoError(t, err)

	assert.Equal(t, "GET /users/:id/orders/:id", tr.Name)
	assert.Equal(t, models.TraceKindRequest, tr.Kind)
	assert.Equal(t, "production", tr.Environment)
	assert.Equal(t, 1, tr.Executions)
	require.NotNil(t, tr.DurationMs)
	assert.InDelta(t, 250.0, *tr.DurationMs, 0.001)
	assert.Equal(t, 4, tr.SpanCount)
	assert.InDelta(t, 12.5, tr.DBDurationMs, 0.001)
	assert.InDelta(t, 30.0, tr.ViewDurationMs, 0.001)
	assert.InDelta(t, 40.25, tr.ExternalDurationMs, 0.001)

	spans := store.spansFor(tr)
	require.Len(t, spans, 4)
	assert.Equal(t, "SELECT", spans[0].Data["operation"])
	assert.Equal(t, "users", spans[0].Data["table"])
	assert.Equal(t, models.SpanKindCustom, spans[3].Kind)
	assert.Len(t, spans[3].SpanID, 16)
	assert.Equal(t, receivedAt, spans[3].StartedAt)

	require.Len(t, b.events, 1)
	assert.Equal(t, broadcast.ChannelMetrics, b.events[0].Channel)

	agg := q.ofType(jobs.TypeAggregateMinute)
	require.Len(t, agg, 1)
	require.NotNil(t, agg[0].Bucket)
	assert.Equal(t, time.Date(2025, 3, 4, 10, 15, 0, 0, time.UTC), *agg[0].Bucket)
}

func TestProcessOpenTraceSkipsAggregation(t *testing.T) {
	store := newFakeStore()
	proc, b, q := newTestProcessor(store)
	rc := NewRequestContext(testProject(), "", receivedAt)

	tr, err := proc.Process(context.Background(), rc, decodeTrace(t, `{"trace_id": "open", "job_class": "ReportJob", "kind": "job"}`))
	require.NoError(t, err)

	assert.Equal(t, "ReportJob", tr.Name)
	assert.Nil(t, tr.EndedAt)
	assert.Nil(t, tr.DurationMs)
	assert.Equal(t, receivedAt, tr.StartedAt)
	assert.Len(t, b.events, 1)
	assert.Empty(t, q.jobs)
}

func TestProcessKeepsErrorFlagAsSent(t *testing.T) {
	store := newFakeStore()
	proc, _, _ := newTestProcessor(store)
	rc := NewRequestContext(testProject(), "", receivedAt)

	tr, err := proc.Process(context.Background(), rc, decodeTrace(t, `{
		"trace_id": "handled",
		"started_at": "2025-03-04T10:15:00Z",
		"ended_at": "2025-03-04T10:15:00.100Z",
		"error": false,
		"error_class": "RecordNotFound",
		"error_message": "rescued",
		"spans": [{"name": "GET api", "kind": "http", "duration_ms": 5, "error": false, "error_class": "Timeout"}]
	}`))
	require.NoError(t, err)

	assert.False(t, tr.Error)
	assert.Equal(t, "RecordNotFound", tr.ErrorClass)
	assert.Equal(t, "rescued", tr.ErrorMessage)

	spans := store.spansFor(tr)
	require.Len(t, spans, 1)
	assert.False(t, spans[0].Error)
	assert.Equal(t, "Timeout", spans[0].ErrorClass)

	failed, err := proc.Process(context.Background(), rc, decodeTrace(t, `{
		"trace_id": "failed",
		"started_at": "2025-03-04T10:15:00Z",
		"ended_at": "2025-03-04T10:15:00.100Z",
		"error": true,
		"spans": [{"name": "GET api", "kind": "http", "duration_ms": 5, "error": true}]
	}`))
	require.NoError(t, err)

	assert.True(t, failed.Error)
	assert.Empty(t, failed.ErrorClass)
	assert.True(t, store.spansFor(failed)[0].Error)
}

func TestProcessMalformedTimestampsFallBackToNow(t *testing.T) {
	store := newFakeStore()
	proc, _, _ := newTestProcessor(store)
	rc := NewRequestContext(testProject(), "", receivedAt)

	tr, err := proc.Process(context.Background(), rc, decodeTrace(t,
		`{"trace_id": "ts", "started_at": "yesterday-ish", "ended_at": {"nope": true}}`))
	require.NoError(t, err)

	assert.Equal(t, "Unknown", tr.Name)
	assert.Equal(t, receivedAt, tr.StartedAt)
	require.NotNil(t, tr.EndedAt)
	assert.Equal(t, receivedAt, *tr.EndedAt)
	assert.InDelta(t, 0.0, *tr.DurationMs, 0.001)
}

func TestProcessExistingTraceIsReusedAndDurationKept(t *testing.T) {
	store := newFakeStore()
	proc, _, _ := newTestProcessor(store)
	rc := NewRequestContext(testProject(), "", receivedAt)
	ctx := context.Background()

	first, err := proc.Process(ctx, rc, decodeTrace(t, `{
		"trace_id": "again", "started_at": "2025-03-04T10:00:00Z", "ended_at": "2025-03-04T10:00:01Z",
		"spans": [{"name": "q", "kind": "db", "duration_ms": 5}]}`))
	require.NoError(t, err)

	second, err := proc.Process(ctx, rc, decodeTrace(t, `{
		"trace_id": "again", "ended_at": "2025-03-04T10:00:09Z", "error_class": "Boom",
		"spans": [{"name": "q", "kind": "db", "duration_ms": 7}]}`))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.calls["InsertTraces"])
	assert.Equal(t, 1, store.calls["CompleteTraces"])
	assert.InDelta(t, 1000.0, *second.DurationMs, 0.001)
	assert.True(t, second.Error)
	assert.Equal(t, 2, second.SpanCount)
	assert.InDelta(t, 12.0, second.DBDurationMs, 0.001)
}

func TestProcessRejectsForeignTrace(t *testing.T) {
	store := newFakeStore()
	proc, _, _ := newTestProcessor(store)
	ctx := context.Background()

	_, err := proc.Process(ctx, NewRequestContext(testProject(), "", receivedAt), decodeTrace(t, `{"trace_id": "shared"}`))
	require.NoError(t, err)

	_, err = proc.Process(ctx, NewRequestContext(testProject(), "", receivedAt), decodeTrace(t, `{"trace_id": "shared"}`))
	require.ErrorIs(t, err, ErrTraceOwnedElsewhere)
}

func TestProcessValidation(t *testing.T) {
	proc, _, _ := newTestProcessor(newFakeStore())
	rc := NewRequestContext(testProject(), "", receivedAt)

	_, err := proc.Process(context.Background(), rc, decodeTrace(t, `{"kind": "weird", "spans": [{"kind": "db"}]}`))
	require.ErrorIs(t, err, models.ErrValidation)

	var verrs models.ValidationErrors
	require.ErrorAs(t, err, &verrs)

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field)
	}

	assert.ElementsMatch(t, []string{"trace_id", "kind", "spans[0].name"}, fields)

	_, err = proc.Process(context.Background(), RequestContext{}, decodeTrace(t, `{"trace_id": "x"}`))
	require.ErrorIs(t, err, ErrNoProject)
}

func TestProcessBatchUsesConstantStatements(t *testing.T) {
	store := newFakeStore()
	proc, b, q := newTestProcessor(store)
	rc := NewRequestContext(testProject(), "", receivedAt)

	existing, err := proc.Process(context.Background(), rc, decodeTrace(t, `{"trace_id": "t0", "started_at": "2025-03-04T10:00:00Z"}`))
	require.NoError(t, err)

	for k := range store.calls {
		delete(store.calls, k)
	}

	b.events = nil

	payloads := make([]models.TracePayload, 0, 51)
	payloads = append(payloads, decodeTrace(t, `{"trace_id": "t0", "ended_at": "2025-03-04T10:00:02Z"}`))

	for i := 1; i <= 50; i++ {
		payloads = append(payloads, decodeTrace(t, `{
			"trace_id": "t`+uuid.NewString()+`",
			"started_at": "2025-03-04T10:01:00Z",
			"ended_at": "2025-03-04T10:01:00.100Z",
			"spans": [{"name": "s", "kind": "db", "duration_ms": 1}]}`))
	}

	traces, err := proc.ProcessBatch(context.Background(), rc, payloads)
	require.NoError(t, err)
	require.Len(t, traces, 51)

	assert.Equal(t, 2, store.calls["FindTracesByTraceIDs"])
	assert.Equal(t, 1, store.calls["InsertTraces"])
	assert.Equal(t, 1, store.calls["InsertSpans"])
	assert.Equal(t, 1, store.calls["CompleteTraces"])
	assert.Equal(t, 1, store.calls["RecomputeRollups"])

	assert.Equal(t, existing.ID, traces[0].ID)
	assert.InDelta(t, 2000.0, *traces[0].DurationMs, 0.001)
	assert.Len(t, b.events, 51)

	// Two distinct minute buckets.
	assert.Len(t, q.ofType(jobs.TypeAggregateMinute), 2)
}

func TestProcessBatchMergesDuplicateTraceIDs(t *testing.T) {
	store := newFakeStore()
	proc, _, _ := newTestProcessor(store)
	rc := NewRequestContext(testProject(), "", receivedAt)

	traces, err := proc.ProcessBatch(context.Background(), rc, []models.TracePayload{
		decodeTrace(t, `{"trace_id": "dup", "name": "first", "started_at": "2025-03-04T10:00:00Z",
			"spans": [{"name": "a", "kind": "db", "duration_ms": 2}]}`),
		decodeTrace(t, `{"trace_id": "dup", "name": "second", "ended_at": "2025-03-04T10:00:00.500Z",
			"spans": [{"name": "b", "kind": "db", "duration_ms": 3}]}`),
	})
	require.NoError(t, err)
	require.Len(t, traces, 1)

	tr := traces[0]
	assert.Equal(t, "first", tr.Name)
	assert.Equal(t, 2, tr.SpanCount)
	assert.InDelta(t, 5.0, tr.DBDurationMs, 0.001)
	assert.InDelta(t, 500.0, *tr.DurationMs, 0.001)
	assert.Len(t, store.traces, 1)
	assert.Zero(t, store.calls["CompleteTraces"])
}

func TestProcessBatchSkipsForeignTraces(t *testing.T) {
	store := newFakeStore()
	proc, _, _ := newTestProcessor(store)
	ctx := context.Background()

	_, err := proc.Process(ctx, NewRequestContext(testProject(), "", receivedAt), decodeTrace(t, `{"trace_id": "theirs"}`))
	require.NoError(t, err)

	traces, err := proc.ProcessBatch(ctx, NewRequestContext(testProject(), "", receivedAt), []models.TracePayload{
		decodeTrace(t, `{"trace_id": "theirs", "spans": [{"name": "x"}]}`),
		decodeTrace(t, `{"trace_id": "mine"}`),
	})
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, "mine", traces[0].TraceID)
	assert.Empty(t, store.spans)
}

func TestProcessBatchConcurrentInsertIsCompleted(t *testing.T) {
	store := newFakeStore()
	proc, _, _ := newTestProcessor(store)
	project := testProject()
	rc := NewRequestContext(project, "", receivedAt)

	store.racer = &models.Trace{
		ID: uuid.New(), ProjectID: project.ID, TraceID: "raced", Name: "other writer",
		StartedAt: time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC),
	}

	traces, err := proc.ProcessBatch(context.Background(), rc, []models.TracePayload{
		decodeTrace(t, `{"trace_id": "raced", "ended_at": "2025-03-04T10:00:03Z"}`),
	})
	require.NoError(t, err)
	require.Len(t, traces, 1)

	assert.Equal(t, "other writer", traces[0].Name)
	assert.Equal(t, 1, store.calls["CompleteTraces"])
	require.NotNil(t, store.traces["raced"].DurationMs)
	assert.InDelta(t, 3000.0, *store.traces["raced"].DurationMs, 0.001)
}

func TestProcessBatchRollsBackOnFailure(t *testing.T) {
	store := newFakeStore()
	store.failInsertSpans = true
	proc, b, q := newTestProcessor(store)

	_, err := proc.ProcessBatch(context.Background(), NewRequestContext(testProject(), "", receivedAt), []models.TracePayload{
		decodeTrace(t, `{"trace_id": "r1", "ended_at": "2025-03-04T10:00:03Z", "spans": [{"name": "x"}]}`),
	})
	require.ErrorIs(t, err, errStoreDown)

	assert.Empty(t, store.traces)
	assert.Empty(t, b.events)
	assert.Empty(t, q.jobs)
}

func TestProcessBatchRejectsEmptyAndInvalid(t *testing.T) {
	proc, _, _ := newTestProcessor(newFakeStore())
	rc := NewRequestContext(testProject(), "", receivedAt)

	_, err := proc.ProcessBatch(context.Background(), rc, nil)
	require.ErrorIs(t, err, ErrEmptyBatch)

	_, err = proc.ProcessBatch(context.Background(), rc, []models.TracePayload{{TraceID: "ok"}, {}})
	require.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, err.Error(), "traces[1].trace_id")
}

func TestSideEffectFailuresAreSwallowed(t *testing.T) {
	store := newFakeStore()
	b := &fakeBroadcaster{err: errStoreDown}
	q := &fakeQueue{reject: true}
	proc := NewTraceProcessor(store, b, q, logger.NewTestLogger())

	tr, err := proc.Process(context.Background(), NewRequestContext(testProject(), "", receivedAt),
		decodeTrace(t, `{"trace_id": "fx", "ended_at": "2025-03-04T10:00:03Z"}`))
	require.NoError(t, err)
	assert.NotNil(t, tr)
	assert.Len(t, b.events, 1)
}

func TestAppendSpans(t *testing.T) {
	store := newFakeStore()
	proc, _, q := newTestProcessor(store)
	project := testProject()
	rc := NewRequestContext(project, "", receivedAt)
	ctx := context.Background()

	_, err := proc.Process(ctx, rc, decodeTrace(t, `{"trace_id": "ap", "started_at": "2025-03-04T10:00:00Z",
		"ended_at": "2025-03-04T10:00:01Z", "spans": [{"name": "a", "kind": "http", "duration_ms": 10}]}`))
	require.NoError(t, err)

	parent, spans, err := proc.AppendSpans(ctx, rc, "ap", []models.SpanPayload{
		{Name: "late", Kind: models.SpanKindHTTP, StartedAt: models.At(receivedAt), EndedAt: models.At(receivedAt.Add(15 * time.Millisecond))},
	})
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.InDelta(t, 15.0, *spans[0].DurationMs, 0.001)
	assert.Equal(t, 2, parent.SpanCount)
	assert.InDelta(t, 25.0, parent.ExternalDurationMs, 0.001)
	assert.Len(t, q.ofType(jobs.TypeAggregateTrace), 1)

	_, _, err = proc.AppendSpans(ctx, rc, "missing", []models.SpanPayload{{Name: "x"}})
	require.ErrorIs(t, err, ErrTraceNotFound)

	other := NewRequestContext(testProject(), "", receivedAt)
	_, _, err = proc.AppendSpans(ctx, other, "ap", []models.SpanPayload{{Name: "x"}})
	require.ErrorIs(t, err, ErrTraceNotFound)
}
