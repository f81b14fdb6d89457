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
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/stats"
)

// sourceGranularity is the granularity each coarser rollup is folded from.
var sourceGranularity = map[models.Granularity]models.Granularity{
	models.GranularityHour: models.GranularityMinute,
	models.GranularityDay:  models.GranularityHour,
}

type foldKey struct {
	name   string
	dims   string
	bucket time.Time
}

type fold struct {
	name   string
	dims   models.Dimensions
	bucket time.Time
	rows   []models.AggregatedMetric
}

// Rollup folds the finer rollups inside [from, to) into rows of granularity g:
// hours from minutes, days from hours. Count, sum, min and max combine exactly;
// avg is recomputed from them and the percentiles are count-weighted means of
// the source percentiles. It returns the number of rows written.
func (a *Aggregator) Rollup(
	ctx context.Context, projectID uuid.UUID, from, to time.Time, g models.Granularity,
) (int, error) {
	source, ok := sourceGranularity[g]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedGranularity, g)
	}

	from = g.Truncate(from)

	rows, err := a.store.ListAggregatedMetrics(ctx, db.AggregateQuery{
		ProjectID:   projectID,
		Granularity: source,
		From:        from,
		To:          to,
	})
	if err != nil {
		return 0, err
	}

	out := foldRows(rows, g)

	if err := a.store.UpsertAggregatedMetrics(ctx, out); err != nil {
		aggregationsTotal.WithLabelValues(string(g), resultError).Inc()
		return 0, err
	}

	aggregationsTotal.WithLabelValues(string(g), resultOK).Inc()
	rowsWritten.WithLabelValues(string(g)).Add(float64(len(out)))

	a.logger.Debug().
		Str("project_id", projectID.String()).
		Str("granularity", string(g)).
		Int("source_rows", len(rows)).
		Int("rows", len(out)).
		Msg("Folded rollups")

	return len(out), nil
}

func foldRows(rows []models.AggregatedMetric, g models.Granularity) []models.AggregatedMetric {
	folds := make(map[foldKey]*fold)

	var order []foldKey

	for _, r := range rows {
		key := foldKey{name: r.Name, dims: dimensionKey(r.Dimensions), bucket: g.Truncate(r.Bucket)}

		f, ok := folds[key]
		if !ok {
			f = &fold{name: r.Name, dims: r.Dimensions, bucket: key.bucket}
			folds[key] = f
			order = append(order, key)
		}

		f.rows = append(f.rows, r)
	}

	out := make([]models.AggregatedMetric, 0, len(order))

	for _, key := range order {
		f := folds[key]
		out = append(out, f.combine(g))
	}

	return out
}

func (f *fold) combine(g models.Granularity) models.AggregatedMetric {
	first := f.rows[0]
	m := models.AggregatedMetric{
		ProjectID:   first.ProjectID,
		Name:        f.name,
		Bucket:      f.bucket,
		Granularity: g,
		Dimensions:  f.dims,
		Min:         math.Inf(1),
		Max:         math.Inf(-1),
	}

	var p50, p95, p99 float64

	for _, r := range f.rows {
		m.Count += r.Count
		m.Sum += r.Sum
		m.Min = math.Min(m.Min, r.Min)
		m.Max = math.Max(m.Max, r.Max)

		w := float64(r.Count)
		p50 += r.P50 * w
		p95 += r.P95 * w
		p99 += r.P99 * w
	}

	if m.Count > 0 {
		n := float64(m.Count)
		m.Avg = stats.Round2(m.Sum / n)
		m.P50 = stats.Round2(p50 / n)
		m.P95 = stats.Round2(p95 / n)
		m.P99 = stats.Round2(p99 / n)
	} else {
		m.Min, m.Max = 0, 0
	}

	if m.Dimensions == nil {
		m.Dimensions = models.Dimensions{}
	}

	return m
}

// dimensionKey is a canonical encoding of a dimension map.
func dimensionKey(d models.Dimensions) string {
	keys := lo.Keys(d)
	sort.Strings(keys)

	var b strings.Builder

	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(d[k])
		b.WriteByte(';')
	}

	return b.String()
}
