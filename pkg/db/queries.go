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

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carverauto/pulse/pkg/models"
)

// OverviewCounts are the raw request aggregates behind the overview.
// Percentiles use percentile_disc, the nearest-rank method.
type OverviewCounts struct {
	Total      int
	Completed  int
	Errors     int
	Satisfied  int
	Tolerating int
	AvgMs      *float64
	P95Ms      *float64
	P99Ms      *float64
}

// RequestOverview aggregates a project's request traces since the cutoff.
func (db *DB) RequestOverview(
	ctx context.Context, projectID uuid.UUID, since time.Time, thresholdMs float64) (*OverviewCounts, error) {
	var c OverviewCounts

	err := db.executor.QueryRow(ctx, `
		SELECT count(*)::int,
			count(duration_ms)::int,
			count(*) FILTER (WHERE error)::int,
			count(*) FILTER (WHERE duration_ms <= $3)::int,
			count(*) FILTER (WHERE duration_ms > $3 AND duration_ms <= $3 * 4)::int,
			avg(duration_ms),
			percentile_disc(0.95) WITHIN GROUP (ORDER BY duration_ms),
			percentile_disc(0.99) WITHIN GROUP (ORDER BY duration_ms)
		FROM traces
		WHERE project_id = $1 AND kind = 'request' AND started_at >= $2`,
		projectID, since, thresholdMs).Scan(
		&c.Total, &c.Completed, &c.Errors, &c.Satisfied, &c.Tolerating, &c.AvgMs, &c.P95Ms, &c.P99Ms)
	if err != nil {
		return nil, fmt.Errorf("%w overview: %w", ErrFailedToQuery, err)
	}

	return &c, nil
}

// EndpointSort orders the endpoint breakdown.
type EndpointSort string

const (
	EndpointSortCount     EndpointSort = "count"
	EndpointSortAvg       EndpointSort = "avg_duration"
	EndpointSortP95       EndpointSort = "p95"
	EndpointSortErrorRate EndpointSort = "error_rate"
)

func (s EndpointSort) orderBy() string {
	switch s {
	case EndpointSortAvg:
		return "avg_ms DESC"
	case EndpointSortP95:
		return "p95_ms DESC"
	case EndpointSortErrorRate:
		return "count(*) FILTER (WHERE error)::float8 / count(*) DESC"
	case EndpointSortCount:
	}

	return "count(*) DESC"
}

// EndpointStats groups completed request traces by name.
func (db *DB) EndpointStats(
	ctx context.Context, projectID uuid.UUID, since time.Time, sort EndpointSort, limit int) ([]models.EndpointStat, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.executor.Query(ctx, `
		SELECT name,
			count(*)::int,
			avg(duration_ms) AS avg_ms,
			percentile_disc(0.95) WITHIN GROUP (ORDER BY duration_ms) AS p95_ms,
			percentile_disc(0.99) WITHIN GROUP (ORDER BY duration_ms),
			max(duration_ms),
			count(*) FILTER (WHERE error)::int AS error_count
		FROM traces
		WHERE project_id = $1 AND kind = 'request' AND started_at >= $2 AND duration_ms IS NOT NULL
		GROUP BY name
		ORDER BY `+sort.orderBy()+`, name
		LIMIT $3`, projectID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("%w endpoint stats: %w", ErrFailedToQuery, err)
	}

	stats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.EndpointStat, error) {
		var e models.EndpointStat

		if err := row.Scan(&e.Name, &e.Count, &e.AvgMs, &e.P95Ms, &e.P99Ms, &e.MaxMs, &e.ErrorCount); err != nil {
			return e, err
		}

		e.AvgMs = models.Round2(e.AvgMs)
		if e.Count > 0 {
			e.ErrorRate = models.Round2(float64(e.ErrorCount) / float64(e.Count) * 100)
		}

		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w endpoint stats: %w", ErrFailedToScan, err)
	}

	return stats, nil
}

// RequestTimeSeries buckets request traces since the cutoff.
func (db *DB) RequestTimeSeries(
	ctx context.Context, projectID uuid.UUID, since time.Time, granularity models.Granularity) ([]models.TimeBucket, error) {
	rows, err := db.executor.Query(ctx, `
		SELECT date_trunc($3::text, started_at) AS bucket, count(*)::int, round(avg(duration_ms)::numeric, 2)::float8
		FROM traces
		WHERE project_id = $1 AND kind = 'request' AND started_at >= $2
		GROUP BY 1
		ORDER BY 1`, projectID, since, string(granularity))
	if err != nil {
		return nil, fmt.Errorf("%w time series: %w", ErrFailedToQuery, err)
	}

	series, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TimeBucket, error) {
		var b models.TimeBucket

		err := row.Scan(&b.Time, &b.Count, &b.AvgMs)
		b.Time = b.Time.UTC()

		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w time series: %w", ErrFailedToScan, err)
	}

	return series, nil
}
