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
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/carverauto/pulse/pkg/broadcast"
	"github.com/carverauto/pulse/pkg/jobs"
	"github.com/carverauto/pulse/pkg/models"
)

var errStoreDown = errors.New("store down")

// fakeStore is an in-memory Repository that counts statements.
type fakeStore struct {
	mu sync.Mutex

	traces  map[string]*models.Trace
	spans   []*models.Span
	metrics map[string]*models.Metric
	points  []models.MetricPoint

	calls map[string]int

	failInsertSpans bool
	// racer is inserted by "another writer" just before InsertTraces runs.
	racer *models.Trace
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		traces:  make(map[string]*models.Trace),
		metrics: make(map[string]*models.Metric),
		calls:   make(map[string]int),
	}
}

func (f *fakeStore) RunInTx(_ context.Context, fn func(Store) error) error {
	f.mu.Lock()
	traces := make(map[string]*models.Trace, len(f.traces))
	for k, v := range f.traces {
		cp := *v
		traces[k] = &cp
	}

	spans := append([]*models.Span(nil), f.spans...)
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.traces = traces
		f.spans = spans
		f.mu.Unlock()

		return err
	}

	return nil
}

func (f *fakeStore) count(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *fakeStore) FindTracesByTraceIDs(_ context.Context, traceIDs []string) (map[string]*models.Trace, error) {
	f.count("FindTracesByTraceIDs")

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]*models.Trace)

	for _, id := range traceIDs {
		if t, ok := f.traces[id]; ok {
			cp := *t
			out[id] = &cp
		}
	}

	return out, nil
}

func (f *fakeStore) FindTracesByRequestIDs(
	_ context.Context, projectID uuid.UUID, requestIDs []string,
) (map[string]*models.Trace, error) {
	f.count("FindTracesByRequestIDs")

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]*models.Trace)

	for _, rid := range requestIDs {
		for _, t := range f.traces {
			if t.ProjectID == projectID && t.RequestID == rid {
				cp := *t
				out[rid] = &cp
			}
		}
	}

	return out, nil
}

func (f *fakeStore) InsertTraces(_ context.Context, traces []*models.Trace) error {
	f.count("InsertTraces")

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.racer != nil {
		f.traces[f.racer.TraceID] = f.racer
		f.racer = nil
	}

	for _, t := range traces {
		if _, exists := f.traces[t.TraceID]; exists {
			continue
		}

		cp := *t
		f.traces[t.TraceID] = &cp
	}

	return nil
}

func (f *fakeStore) InsertSpans(_ context.Context, spans []*models.Span) error {
	f.count("InsertSpans")

	if f.failInsertSpans {
		return errStoreDown
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.spans = append(f.spans, spans...)

	return nil
}

func (f *fakeStore) CompleteTraces(_ context.Context, traces []*models.Trace) error {
	f.count("CompleteTraces")

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range traces {
		for _, stored := range f.traces {
			if stored.ID != t.ID {
				continue
			}

			stored.EndedAt = t.EndedAt
			stored.Error = t.Error
			stored.ErrorClass = t.ErrorClass
			stored.ErrorMessage = t.ErrorMessage

			if stored.DurationMs == nil {
				stored.DurationMs = t.DurationMs
			}
		}
	}

	return nil
}

func (f *fakeStore) RecomputeRollups(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Rollups, error) {
	f.count("RecomputeRollups")

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[uuid.UUID]models.Rollups, len(ids))

	for _, id := range ids {
		var spans []*models.Span

		for _, s := range f.spans {
			if s.TraceRowID == id {
				spans = append(spans, s)
			}
		}

		r := models.Rollup(spans)
		out[id] = r

		for _, t := range f.traces {
			if t.ID == id {
				r.Apply(t)
			}
		}
	}

	return out, nil
}

func (f *fakeStore) EnsureMetrics(_ context.Context, projectID uuid.UUID, defs []models.Metric) (map[string]*models.Metric, error) {
	f.count("EnsureMetrics")

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]*models.Metric, len(defs))

	for _, d := range defs {
		m, ok := f.metrics[d.Name]
		if !ok {
			kind := d.Kind
			if kind == "" {
				kind = models.MetricKindGauge
			}

			m = &models.Metric{ID: uuid.New(), ProjectID: projectID, Name: d.Name, Kind: kind, Unit: d.Unit}
			f.metrics[d.Name] = m
		}

		out[d.Name] = m
	}

	return out, nil
}

func (f *fakeStore) InsertMetricPoints(_ context.Context, points []models.MetricPoint) error {
	f.count("InsertMetricPoints")

	f.mu.Lock()
	defer f.mu.Unlock()

	f.points = append(f.points, points...)

	return nil
}

func (f *fakeStore) spansFor(t *models.Trace) []*models.Span {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.Span

	for _, s := range f.spans {
		if s.TraceRowID == t.ID {
			out = append(out, s)
		}
	}

	return out
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcast.Event
	err    error
}

func (b *fakeBroadcaster) Broadcast(_ context.Context, ev broadcast.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, ev)

	return b.err
}

type fakeQueue struct {
	mu     sync.Mutex
	jobs   []jobs.Job
	reject bool
}

func (q *fakeQueue) Enqueue(job jobs.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.reject {
		return false
	}

	q.jobs = append(q.jobs, job)

	return true
}

func (q *fakeQueue) ofType(t jobs.Type) []jobs.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []jobs.Job

	for _, j := range q.jobs {
		if j.Type == t {
			out = append(out, j)
		}
	}

	return out
}
