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

package aggregator

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/stats"
)

// prefixSegments is how many leading path segments form an endpoint group.
const prefixSegments = 2

type rowSet struct {
	projectID   uuid.UUID
	bucket      time.Time
	granularity models.Granularity
	rows        []models.AggregatedMetric
}

func newRowSet(projectID uuid.UUID, bucket time.Time, g models.Granularity) *rowSet {
	return &rowSet{projectID: projectID, bucket: bucket, granularity: g}
}

func (r *rowSet) add(name string, s stats.Summary, dims models.Dimensions) {
	if dims == nil {
		dims = models.Dimensions{}
	}

	r.rows = append(r.rows, models.AggregatedMetric{
		ProjectID:   r.projectID,
		Name:        name,
		Bucket:      r.bucket,
		Granularity: r.granularity,
		Dimensions:  dims,
		Count:       int64(s.Count),
		Sum:         s.Sum,
		Min:         s.Min,
		Max:         s.Max,
		Avg:         s.Avg,
		P50:         s.P50,
		P95:         s.P95,
		P99:         s.P99,
	})
}

// values adds a rollup of a sample set; empty sets are skipped.
func (r *rowSet) values(name string, values []float64, dims models.Dimensions) {
	if s, ok := stats.Summarize(values); ok {
		r.add(name, s, dims)
	}
}

// single adds a rollup holding one value, used for counts and rates.
func (r *rowSet) single(name string, v float64, dims models.Dimensions) {
	r.add(name, stats.Single(v), dims)
}

// counted adds the duration, count and error-rate trio of a trace group.
func (r *rowSet) counted(duration, count, errorRate string, traces []*models.Trace, dims models.Dimensions) {
	if len(traces) == 0 {
		return
	}

	r.values(duration, durations(traces), dims)
	r.single(count, float64(len(traces)), dims)

	if errorRate != "" {
		r.single(errorRate, stats.Rate(countErrors(traces), len(traces)), dims)
	}
}

func requestRollups(r *rowSet, requests []*models.Trace) {
	r.counted(NameRequestDuration, NameThroughput, NameErrorRate, requests, nil)
}

func endpointRollups(r *rowSet, requests []*models.Trace) {
	named := filter(requests, func(t *models.Trace) bool { return t.Name != "" })

	groups := make(map[string]int)

	var prefixes []string

	for _, endpoint := range groupBy(named, func(t *models.Trace) string { return t.Name }) {
		traces := endpoint.items
		dims := models.Dimensions{"endpoint": endpoint.key}

		r.counted(NameEndpointDuration, NameEndpointThroughput, NameEndpointErrorRate, traces, dims)

		withMethod := filter(traces, func(t *models.Trace) bool { return t.RequestMethod != "" })
		for _, method := range groupBy(withMethod, func(t *models.Trace) string { return t.RequestMethod }) {
			r.values(NameEndpointDuration, durations(method.items),
				models.Dimensions{"endpoint": endpoint.key, "method": method.key})
		}

		if prefix, ok := PathPrefix(endpoint.key); ok {
			if _, seen := groups[prefix]; !seen {
				prefixes = append(prefixes, prefix)
			}

			groups[prefix] += len(traces)
		}
	}

	for _, prefix := range prefixes {
		r.single(NameEndpointGroupThroughput, float64(groups[prefix]), models.Dimensions{"prefix": prefix})
	}
}

// PathPrefix returns the first two path segments of an endpoint name such as
// "POST /api/v1/users" -> "/api/v1". ok is false for shallower paths.
func PathPrefix(endpoint string) (string, bool) {
	path := endpoint
	if _, rest, found := strings.Cut(endpoint, " "); found {
		path = rest
	}

	segments := make([]string, 0, prefixSegments)

	for _, seg := range strings.Split(path, "/") {
		if strings.TrimSpace(seg) == "" {
			continue
		}

		segments = append(segments, seg)
		if len(segments) == prefixSegments {
			return "/" + strings.Join(segments, "/"), true
		}
	}

	return "", false
}

func externalHTTPRollups(r *rowSet, spans []*models.Span) {
	withHost := filter(spans, func(s *models.Span) bool { return spanHost(s) != "" })

	for _, host := range groupBy(withHost, spanHost) {
		ds := spanDurations(host.items)
		if len(ds) == 0 {
			continue
		}

		dims := models.Dimensions{"host": host.key}
		errs := len(filter(host.items, func(s *models.Span) bool { return s.Error }))

		r.values(NameExternalHTTPDuration, ds, dims)
		r.single(NameExternalHTTPCount, float64(len(host.items)), dims)
		r.single(NameExternalHTTPErrorRate, stats.Rate(errs, len(host.items)), dims)
	}
}

func spanHost(s *models.Span) string { return s.HTTP().Host() }

func cacheRollups(r *rowSet, spans []*models.Span) {
	if len(spans) == 0 {
		return
	}

	var reads, hits, misses int

	for _, s := range spans {
		view := s.Cache()
		if !view.IsRead() {
			continue
		}

		reads++

		switch hit, known := view.HitState(); {
		case known && hit:
			hits++
		case known:
			misses++
		}
	}

	if reads > 0 {
		r.single(NameCacheHitRate, stats.Rate(hits, reads), nil)
		r.single(NameCacheHits, float64(hits), nil)
		r.single(NameCacheMisses, float64(misses), nil)
	}

	r.values(NameCacheDuration, spanDurations(spans), nil)
}

func jobRollups(r *rowSet, jobs []*models.Trace) {
	if len(jobs) == 0 {
		return
	}

	r.counted(NameJobDuration, NameJobCount, NameJobErrorRate, jobs, nil)

	var waits []float64

	for _, t := range jobs {
		if t.QueueWaitMs != nil {
			waits = append(waits, *t.QueueWaitMs)
		}
	}

	r.values(NameJobQueueWait, waits, nil)

	queued := filter(jobs, func(t *models.Trace) bool { return t.Queue != "" })
	for _, queue := range groupBy(queued, func(t *models.Trace) string { return t.Queue }) {
		r.counted(NameJobDuration, NameJobCount, "", queue.items, models.Dimensions{"queue": queue.key})
	}
}

func durations(traces []*models.Trace) []float64 {
	out := make([]float64, 0, len(traces))

	for _, t := range traces {
		if t.DurationMs != nil {
			out = append(out, *t.DurationMs)
		}
	}

	return out
}

func spanDurations(spans []*models.Span) []float64 {
	out := make([]float64, 0, len(spans))

	for _, s := range spans {
		if s.DurationMs != nil {
			out = append(out, *s.DurationMs)
		}
	}

	return out
}

func countErrors(traces []*models.Trace) int {
	n := 0

	for _, t := range traces {
		if t.Error {
			n++
		}
	}

	return n
}

type group[T any] struct {
	key   string
	items []T
}

// groupBy partitions items by key in key order.
func groupBy[T any](items []T, key func(T) string) []group[T] {
	byKey := lo.GroupBy(items, key)
	keys := lo.Keys(byKey)
	sort.Strings(keys)

	return lo.Map(keys, func(k string, _ int) group[T] {
		return group[T]{key: k, items: byKey[k]}
	})
}

func filter[T any](items []T, keep func(T) bool) []T {
	return lo.Filter(items, func(item T, _ int) bool { return keep(item) })
}
