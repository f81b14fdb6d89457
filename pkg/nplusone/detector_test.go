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

package nplusone

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

var now = time.Date(2025, 3, 4, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	traces    []*models.Trace
	spans     map[uuid.UUID][]*models.Span
	lastQuery db.WindowQuery
	pages     int
}

// newerFirst orders like the store: started_at DESC, id DESC.
func newerFirst(a, b *models.Trace) bool {
	if !a.StartedAt.Equal(b.StartedAt) {
		return a.StartedAt.After(b.StartedAt)
	}

	return a.ID.String() > b.ID.String()
}

func (f *fakeStore) ListTracesInWindow(_ context.Context, q db.WindowQuery) ([]*models.Trace, error) {
	f.lastQuery = q
	f.pages++

	sorted := append([]*models.Trace(nil), f.traces...)
	sort.SliceStable(sorted, func(i, j int) bool { return newerFirst(sorted[i], sorted[j]) })

	var out []*models.Trace

	for _, t := range sorted {
		if q.Before != nil && !newerFirst(&models.Trace{StartedAt: q.Before.StartedAt, ID: q.Before.ID}, t) {
			continue
		}

		if t.SpanCount >= q.MinSpanCount && !t.StartedAt.Before(q.From) {
			out = append(out, t)
		}

		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}

	return out, nil
}

func (f *fakeStore) ListTraceSpans(_ context.Context, id uuid.UUID, _ ...models.SpanKind) ([]*models.Span, error) {
	return f.spans[id], nil
}

func (f *fakeStore) ListDBSpansForTraces(_ context.Context, ids []uuid.UUID) (map[uuid.UUID][]*models.Span, error) {
	out := make(map[uuid.UUID][]*models.Span)
	for _, id := range ids {
		out[id] = f.spans[id]
	}

	return out, nil
}

func dbSpan(id, sql string, duration float64) *models.Span {
	return &models.Span{
		SpanID: id, Kind: models.SpanKindDB, DurationMs: &duration,
		Data: map[string]interface{}{"sql": sql, "table": "comments", "operation": "SELECT"},
	}
}

// addTrace stores a trace with n repeats of a comment lookup plus one unrelated query.
func (f *fakeStore) addTrace(n int, each float64) *models.Trace {
	t := &models.Trace{ID: uuid.New(), TraceID: uuid.NewString(), StartedAt: now.Add(-time.Minute), SpanCount: n + 1}

	spans := []*models.Span{dbSpan("u", "SELECT * FROM users WHERE id = 1", 2)}
	for i := 0; i < n; i++ {
		spans = append(spans, dbSpan(fmt.Sprintf("c%d", i), fmt.Sprintf("SELECT * FROM comments WHERE post_id = %d", i), each))
	}

	f.traces = append(f.traces, t)
	f.spans[t.ID] = spans

	return t
}

func newDetector(store *fakeStore) *Detector {
	d := NewDetector(store, logger.NewTestLogger())
	d.now = func() time.Time { return now }

	return d
}

func TestAnalyzeGroupsByNormalizedSQL(t *testing.T) {
	spans := []*models.Span{
		dbSpan("a", "SELECT * FROM comments WHERE post_id = 1", 1.5),
		dbSpan("b", "SELECT *   FROM comments WHERE post_id = 2", 2.5),
		dbSpan("c", "SELECT * FROM tags WHERE id IN (1, 2, 3)", 1),
		dbSpan("d", "SELECT * FROM comments WHERE post_id = 3", 3),
		dbSpan("e", "SELECT * FROM tags WHERE id IN (4, 5)", 1),
		dbSpan("f", "SELECT * FROM tags WHERE id IN (6)", 1),
		dbSpan("g", "SELECT * FROM comments WHERE post_id = 4", 3),
		{SpanID: "nosql", Kind: models.SpanKindDB, Data: map[string]interface{}{}},
	}

	patterns := Analyze(spans)
	require.Len(t, patterns, 2)

	first := patterns[0]
	assert.Equal(t, "SELECT * FROM comments WHERE post_id = ?", first.NormalizedSQL)
	assert.Len(t, first.Fingerprint, 16)
	assert.Equal(t, 4, first.Count)
	assert.InDelta(t, 10.0, first.TotalMs, 0.001)
	assert.InDelta(t, 2.5, first.AvgMs, 0.001)
	assert.Equal(t, []string{"a", "b", "d", "g"}, first.SpanIDs)
	assert.Equal(t, "SELECT * FROM comments WHERE post_id = 1", first.ExampleSQL)
	assert.Equal(t, "comments", first.Table)
	assert.InDelta(t, 7.5, first.Savings(), 0.001)

	assert.Equal(t, 3, patterns[1].Count)
	assert.Equal(t, "SELECT * FROM tags WHERE id IN (?)", patterns[1].NormalizedSQL)
}

func TestAnalyzeBelowThreshold(t *testing.T) {
	assert.Empty(t, Analyze([]*models.Span{dbSpan("a", "SELECT 1", 1), dbSpan("b", "SELECT 2", 1)}))
	assert.Empty(t, Analyze([]*models.Span{
		dbSpan("a", "SELECT 1", 1), dbSpan("b", "SELECT 2", 1), dbSpan("c", "UPDATE x SET y = 1", 1),
	}))
}

func TestAnalyzeTraceLoadsDBSpans(t *testing.T) {
	store := &fakeStore{spans: map[uuid.UUID][]*models.Span{}}
	tr := store.addTrace(5, 1)

	patterns, err := newDetector(store).AnalyzeTrace(context.Background(), tr)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, 5, patterns[0].Count)
}

func TestFindAffectedTracesSortsBySavings(t *testing.T) {
	store := &fakeStore{spans: map[uuid.UUID][]*models.Span{}}
	small := store.addTrace(3, 1)
	big := store.addTrace(10, 4)
	store.addTrace(2, 100)

	affected, err := newDetector(store).FindAffectedTraces(context.Background(), uuid.New(), time.Hour, 10)
	require.NoError(t, err)
	require.Len(t, affected, 2)

	assert.Equal(t, big.ID, affected[0].Trace.ID)
	assert.InDelta(t, 36.0, affected[0].PotentialSavingsMs, 0.001)
	assert.Equal(t, 10, affected[0].TotalRepeatedQueries)
	assert.Equal(t, small.ID, affected[1].Trace.ID)
	assert.InDelta(t, 2.0, affected[1].PotentialSavingsMs, 0.001)

	assert.Equal(t, 20, store.lastQuery.Limit)
	assert.Equal(t, MinRepeatCount, store.lastQuery.MinSpanCount)
	assert.Equal(t, now.Add(-time.Hour), store.lastQuery.From)
}

func TestFindAffectedTracesStopsAtLimit(t *testing.T) {
	store := &fakeStore{spans: map[uuid.UUID][]*models.Span{}}
	for i := 0; i < 5; i++ {
		store.addTrace(4, 1)
	}

	affected, err := newDetector(store).FindAffectedTraces(context.Background(), uuid.New(), time.Hour, 2)
	require.NoError(t, err)
	assert.Len(t, affected, 2)
}

func TestAggregatePatterns(t *testing.T) {
	store := &fakeStore{spans: map[uuid.UUID][]*models.Span{}}
	for i := 0; i < 7; i++ {
		store.addTrace(3, 2)
	}

	patterns, err := newDetector(store).AggregatePatterns(context.Background(), uuid.New(), time.Hour, 20)
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	p := patterns[0]
	assert.Equal(t, 21, p.Count)
	assert.Equal(t, 7, p.TraceCount)
	assert.InDelta(t, 42.0, p.TotalMs, 0.001)
	assert.Len(t, p.TraceIDs, 5)
	assert.Equal(t, "comments", p.Table)
}

func TestAggregatePatternsScansEveryPage(t *testing.T) {
	store := &fakeStore{spans: map[uuid.UUID][]*models.Span{}}
	for i := 0; i < 1500; i++ {
		tr := store.addTrace(3, 1)
		tr.StartedAt = now.Add(-time.Duration(i%90) * time.Second)
	}

	patterns, err := newDetector(store).AggregatePatterns(context.Background(), uuid.New(), time.Hour, 20)
	require.NoError(t, err)
	require.Len(t, patterns, 1)

	assert.Equal(t, 4500, patterns[0].Count)
	assert.Equal(t, 1500, patterns[0].TraceCount)
	assert.InDelta(t, 4500.0, patterns[0].TotalMs, 0.001)
	assert.Equal(t, 4, store.pages)
	assert.Equal(t, aggregatePageSize, store.lastQuery.Limit)
	assert.NotNil(t, store.lastQuery.Before)
}

func TestAggregatePatternsStopsOnShortPage(t *testing.T) {
	store := &fakeStore{spans: map[uuid.UUID][]*models.Span{}}
	for i := 0; i < 3; i++ {
		store.addTrace(3, 1)
	}

	_, err := newDetector(store).AggregatePatterns(context.Background(), uuid.New(), time.Hour, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, store.pages)
	assert.Nil(t, store.lastQuery.Before)
}
