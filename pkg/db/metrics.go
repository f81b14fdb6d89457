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

const metricColumns = `id, project_id, name, kind, COALESCE(unit, ''), COALESCE(description, ''), created_at`

func scanMetric(row rowScanner) (*models.Metric, error) {
	var m models.Metric

	if err := row.Scan(&m.ID, &m.ProjectID, &m.Name, &m.Kind, &m.Unit, &m.Description, &m.CreatedAt); err != nil {
		return nil, err
	}

	return &m, nil
}

// EnsureMetrics finds or creates the named metrics of a project in one
// statement and returns them keyed by name. Existing kinds are kept.
func (db *DB) EnsureMetrics(ctx context.Context, projectID uuid.UUID, defs []models.Metric) (map[string]*models.Metric, error) {
	out := make(map[string]*models.Metric, len(defs))
	if len(defs) == 0 {
		return out, nil
	}

	names := make([]string, 0, len(defs))
	kinds := make([]string, 0, len(defs))
	units := make([]string, 0, len(defs))
	descriptions := make([]string, 0, len(defs))
	seen := make(map[string]struct{}, len(defs))

	for _, d := range defs {
		if _, dup := seen[d.Name]; dup {
			continue
		}

		seen[d.Name] = struct{}{}

		kind := d.Kind
		if kind == "" {
			kind = models.MetricKindGauge
		}

		names = append(names, d.Name)
		kinds = append(kinds, string(kind))
		units = append(units, d.Unit)
		descriptions = append(descriptions, d.Description)
	}

	rows, err := db.executor.Query(ctx, `
		INSERT INTO metrics (project_id, name, kind, unit, description)
		SELECT $1, name, kind, NULLIF(unit, ''), NULLIF(description, '')
		FROM unnest($2::text[], $3::text[], $4::text[], $5::text[]) AS v(name, kind, unit, description)
		ON CONFLICT (project_id, name) DO UPDATE SET
			unit = COALESCE(metrics.unit, EXCLUDED.unit),
			description = COALESCE(metrics.description, EXCLUDED.description)
		RETURNING `+metricColumns, projectID, names, kinds, units, descriptions)
	if err != nil {
		return nil, fmt.Errorf("%w metrics: %w", ErrFailedToInsert, err)
	}

	metrics, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Metric, error) {
		return scanMetric(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%w metrics: %w", ErrFailedToScan, err)
	}

	for _, m := range metrics {
		out[m.Name] = m
	}

	return out, nil
}

// InsertMetricPoints appends samples in one round trip.
func (db *DB) InsertMetricPoints(ctx context.Context, points []models.MetricPoint) error {
	batch := &pgx.Batch{}

	for _, p := range points {
		tags := p.Tags
		if tags == nil {
			tags = map[string]string{}
		}

		batch.Queue(`INSERT INTO metric_points (metric_id, project_id, timestamp, value, tags)
			VALUES ($1, $2, $3, $4, $5)`, p.MetricID, p.ProjectID, p.Timestamp, p.Value, tags)
	}

	if err := db.sendBatch(ctx, batch, "metric_points"); err != nil {
		return fmt.Errorf("%w metric points: %w", ErrFailedToInsert, err)
	}

	return nil
}

// ListMetrics returns a project's metrics by name.
func (db *DB) ListMetrics(ctx context.Context, projectID uuid.UUID) ([]*models.Metric, error) {
	rows, err := db.executor.Query(ctx,
		`SELECT `+metricColumns+` FROM metrics WHERE project_id = $1 ORDER BY name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w metrics: %w", ErrFailedToQuery, err)
	}

	metrics, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Metric, error) {
		return scanMetric(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%w metrics: %w", ErrFailedToScan, err)
	}

	return metrics, nil
}

// GetMetricByName loads one metric of a project.
func (db *DB) GetMetricByName(ctx context.Context, projectID uuid.UUID, name string) (*models.Metric, error) {
	m, err := scanMetric(db.executor.QueryRow(ctx,
		`SELECT `+metricColumns+` FROM metrics WHERE project_id = $1 AND name = $2`, projectID, name))
	if isNoRows(err) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w metric: %w", ErrFailedToQuery, err)
	}

	return m, nil
}

// MetricStats buckets a metric's points since the cutoff.
func (db *DB) MetricStats(
	ctx context.Context, metricID uuid.UUID, granularity models.Granularity, since time.Time) ([]models.MetricStat, error) {
	rows, err := db.executor.Query(ctx, `
		SELECT date_trunc($2::text, timestamp) AS bucket, count(*), avg(value), min(value), max(value), sum(value)
		FROM metric_points
		WHERE metric_id = $1 AND timestamp >= $3
		GROUP BY 1
		ORDER BY 1`, metricID, string(granularity), since)
	if err != nil {
		return nil, fmt.Errorf("%w metric stats: %w", ErrFailedToQuery, err)
	}

	stats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.MetricStat, error) {
		var s models.MetricStat

		err := row.Scan(&s.Bucket, &s.Count, &s.Avg, &s.Min, &s.Max, &s.Sum)
		s.Bucket = s.Bucket.UTC()
		s.Avg = models.Round2(s.Avg)

		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w metric stats: %w", ErrFailedToScan, err)
	}

	return stats, nil
}

// MetricValues returns the raw values of a named metric since the cutoff.
func (db *DB) MetricValues(ctx context.Context, projectID uuid.UUID, name string, since time.Time) ([]float64, error) {
	rows, err := db.executor.Query(ctx, `
		SELECT p.value
		FROM metric_points p
		JOIN metrics m ON m.id = p.metric_id
		WHERE m.project_id = $1 AND m.name = $2 AND p.timestamp >= $3`, projectID, name, since)
	if err != nil {
		return nil, fmt.Errorf("%w metric values: %w", ErrFailedToQuery, err)
	}

	values, err := pgx.CollectRows(rows, pgx.RowTo[float64])
	if err != nil {
		return nil, fmt.Errorf("%w metric values: %w", ErrFailedToScan, err)
	}

	return values, nil
}

// DeleteMetricPointsBefore removes samples older than cutoff.
func (db *DB) DeleteMetricPointsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.executor.Exec(ctx, `DELETE FROM metric_points WHERE timestamp < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w metric points: %w", ErrFailedToDelete, err)
	}

	return tag.RowsAffected(), nil
}
