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
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carverauto/pulse/pkg/models"
)

const (
	upsertAttempts = 3
	upsertDelay    = 50 * time.Millisecond
)

const upsertAggregateSQL = `INSERT INTO aggregated_metrics (
	project_id, name, bucket, granularity, dimensions, count, sum, min, max, avg, p50, p95, p99)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (project_id, name, bucket, granularity, dimensions) DO UPDATE SET
	count = EXCLUDED.count,
	sum = EXCLUDED.sum,
	min = EXCLUDED.min,
	max = EXCLUDED.max,
	avg = EXCLUDED.avg,
	p50 = EXCLUDED.p50,
	p95 = EXCLUDED.p95,
	p99 = EXCLUDED.p99,
	updated_at = now()`

const aggregateColumns = `project_id, name, bucket, granularity, dimensions, count, sum, min, max, avg, p50, p95, p99`

// UpsertAggregatedMetrics writes rollups keyed by project, name, bucket,
// granularity and dimensions. Re-running a bucket overwrites its rows.
// Serialization failures and deadlocks between concurrent runs are retried.
func (db *DB) UpsertAggregatedMetrics(ctx context.Context, rows []models.AggregatedMetric) error {
	if len(rows) == 0 {
		return nil
	}

	err := retry.Do(
		func() error {
			batch := &pgx.Batch{}

			for i := range rows {
				r := &rows[i]

				dims := r.Dimensions
				if dims == nil {
					dims = models.Dimensions{}
				}

				batch.Queue(upsertAggregateSQL,
					r.ProjectID, r.Name, r.Bucket, string(r.Granularity), map[string]string(dims),
					r.Count, r.Sum, r.Min, r.Max, r.Avg, r.P50, r.P95, r.P99)
			}

			return db.sendBatch(ctx, batch, "aggregated_metrics")
		},
		retry.Context(ctx),
		retry.Attempts(upsertAttempts),
		retry.Delay(upsertDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return fmt.Errorf("%w aggregated metrics: %w", ErrFailedToInsert, err)
	}

	return nil
}

// isTransient reports errors a fresh attempt can clear.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}

		return false
	}

	return pgconn.SafeToRetry(err)
}

// AggregateQuery selects stored rollups.
type AggregateQuery struct {
	ProjectID   uuid.UUID
	Name        string
	Granularity models.Granularity
	From        time.Time
	To          time.Time
	// Dimensions, when non-nil, must match exactly. An empty map selects undimensioned rows.
	Dimensions models.Dimensions
}

// ListAggregatedMetrics returns rollups in bucket order.
func (db *DB) ListAggregatedMetrics(ctx context.Context, q AggregateQuery) ([]models.AggregatedMetric, error) {
	var b queryBuilder

	b.add("project_id = ?", q.ProjectID)
	b.add("granularity = ?", string(q.Granularity))
	b.add("bucket >= ?", q.From)

	if q.Name != "" {
		b.add("name = ?", q.Name)
	}

	if !q.To.IsZero() {
		b.add("bucket < ?", q.To)
	}

	if q.Dimensions != nil {
		b.add("dimensions = ?::jsonb", map[string]string(q.Dimensions))
	}

	rows, err := db.executor.Query(ctx,
		`SELECT `+aggregateColumns+` FROM aggregated_metrics`+b.clause()+` ORDER BY bucket, name`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("%w aggregated metrics: %w", ErrFailedToQuery, err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AggregatedMetric, error) {
		var m models.AggregatedMetric

		err := row.Scan(&m.ProjectID, &m.Name, &m.Bucket, &m.Granularity, &m.Dimensions,
			&m.Count, &m.Sum, &m.Min, &m.Max, &m.Avg, &m.P50, &m.P95, &m.P99)
		m.Bucket = m.Bucket.UTC()

		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w aggregated metrics: %w", ErrFailedToScan, err)
	}

	return out, nil
}

// DeleteAggregatedMetricsBefore removes rollups whose bucket precedes cutoff.
func (db *DB) DeleteAggregatedMetricsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.executor.Exec(ctx, `DELETE FROM aggregated_metrics WHERE bucket < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w aggregated metrics: %w", ErrFailedToDelete, err)
	}

	return tag.RowsAffected(), nil
}
