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

const spanColumns = `s.id, s.trace_row_id, s.project_id, s.span_id, COALESCE(s.parent_span_id, ''), s.name, s.kind,
	s.started_at, s.ended_at, s.duration_ms, s.data, s.error,
	COALESCE(s.error_class, ''), COALESCE(s.error_message, '')`

const insertSpanSQL = `INSERT INTO spans (
	id, trace_row_id, project_id, span_id, parent_span_id, name, kind,
	started_at, ended_at, duration_ms, data, error, error_class, error_message)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''), NULLIF($14, ''))`

func scanSpan(row rowScanner, extra ...any) (*models.Span, error) {
	var s models.Span

	dest := []any{
		&s.ID, &s.TraceRowID, &s.ProjectID, &s.SpanID, &s.ParentSpanID, &s.Name, &s.Kind,
		&s.StartedAt, &s.EndedAt, &s.DurationMs, &s.Data, &s.Error, &s.ErrorClass, &s.ErrorMessage,
	}

	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	s.StartedAt = s.StartedAt.UTC()

	if s.EndedAt != nil {
		ended := s.EndedAt.UTC()
		s.EndedAt = &ended
	}

	return &s, nil
}

// InsertSpans pipelines every span insert in one round trip.
func (db *DB) InsertSpans(ctx context.Context, spans []*models.Span) error {
	if len(spans) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for _, s := range spans {
		data := s.Data
		if data == nil {
			data = map[string]interface{}{}
		}

		batch.Queue(insertSpanSQL,
			s.ID, s.TraceRowID, s.ProjectID, s.SpanID, s.ParentSpanID, s.Name, string(s.Kind),
			s.StartedAt, s.EndedAt, s.DurationMs, data, s.Error, s.ErrorClass, s.ErrorMessage)
	}

	if err := db.sendBatch(ctx, batch, "spans"); err != nil {
		return fmt.Errorf("%w spans: %w", ErrFailedToInsert, err)
	}

	return nil
}

// ListTraceSpans returns a trace's spans ordered by start, optionally narrowed to kinds.
func (db *DB) ListTraceSpans(ctx context.Context, traceRowID uuid.UUID, kinds ...models.SpanKind) ([]*models.Span, error) {
	var b queryBuilder

	b.add("s.trace_row_id = ?", traceRowID)

	if len(kinds) > 0 {
		b.add("s.kind = ANY(?)", kindStrings(kinds))
	}

	rows, err := db.executor.Query(ctx,
		`SELECT `+spanColumns+` FROM spans s`+b.clause()+` ORDER BY s.started_at, s.id`, b.args...)
	if err != nil {
		return nil, fmt.Errorf("%w spans: %w", ErrFailedToQuery, err)
	}

	spans, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Span, error) {
		return scanSpan(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%w spans: %w", ErrFailedToScan, err)
	}

	return spans, nil
}

// ListDBSpansForTraces returns the db spans of many traces in one query,
// grouped by trace row id and ordered by start.
func (db *DB) ListDBSpansForTraces(ctx context.Context, traceRowIDs []uuid.UUID) (map[uuid.UUID][]*models.Span, error) {
	out := make(map[uuid.UUID][]*models.Span, len(traceRowIDs))
	if len(traceRowIDs) == 0 {
		return out, nil
	}

	rows, err := db.executor.Query(ctx, `SELECT `+spanColumns+` FROM spans s
		WHERE s.trace_row_id = ANY($1) AND s.kind = 'db'
		ORDER BY s.trace_row_id, s.started_at, s.id`, traceRowIDs)
	if err != nil {
		return nil, fmt.Errorf("%w db spans: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSpan(rows)
		if err != nil {
			return nil, fmt.Errorf("%w db spans: %w", ErrFailedToScan, err)
		}

		out[s.TraceRowID] = append(out[s.TraceRowID], s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w db spans: %w", ErrFailedToQuery, err)
	}

	return out, nil
}

// ListBucketSpans returns spans of kind whose parent trace started inside [from, to).
func (db *DB) ListBucketSpans(
	ctx context.Context, projectID uuid.UUID, kind models.SpanKind, from, to time.Time) ([]*models.Span, error) {
	rows, err := db.executor.Query(ctx, `SELECT `+spanColumns+`
		FROM spans s
		JOIN traces t ON t.id = s.trace_row_id
		WHERE s.project_id = $1 AND s.kind = $2 AND t.started_at >= $3 AND t.started_at < $4
		ORDER BY s.started_at`, projectID, string(kind), from, to)
	if err != nil {
		return nil, fmt.Errorf("%w bucket spans: %w", ErrFailedToQuery, err)
	}

	spans, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Span, error) {
		return scanSpan(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%w bucket spans: %w", ErrFailedToScan, err)
	}

	return spans, nil
}

// ListDBSpanRecords returns the db spans of a project's traces started since
// the cutoff, joined with their trace, slowest first.
func (db *DB) ListDBSpanRecords(
	ctx context.Context, projectID uuid.UUID, since time.Time, minDurationMs float64, limit int) ([]models.DBSpanRecord, error) {
	var b queryBuilder

	b.add("s.project_id = ?", projectID)
	b.addRaw("s.kind = 'db'")
	b.add("t.started_at >= ?", since)

	if minDurationMs > 0 {
		b.add("s.duration_ms >= ?", minDurationMs)
	}

	query := `SELECT ` + spanColumns + `, t.trace_id, t.name
		FROM spans s
		JOIN traces t ON t.id = s.trace_row_id` + b.clause() +
		` ORDER BY s.duration_ms DESC NULLS LAST`
	if limit > 0 {
		query += b.limit(limit)
	}

	rows, err := db.executor.Query(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("%w db span records: %w", ErrFailedToQuery, err)
	}
	defer rows.Close()

	var out []models.DBSpanRecord

	for rows.Next() {
		var rec models.DBSpanRecord

		s, err := scanSpan(rows, &rec.TraceID, &rec.TraceName)
		if err != nil {
			return nil, fmt.Errorf("%w db span records: %w", ErrFailedToScan, err)
		}

		rec.Span = s
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w db span records: %w", ErrFailedToQuery, err)
	}

	return out, nil
}

// CountTracesSince counts a project's traces started since the cutoff.
func (db *DB) CountTracesSince(ctx context.Context, projectID uuid.UUID, since time.Time) (int, error) {
	var n int

	if err := db.executor.QueryRow(ctx,
		`SELECT count(*) FROM traces WHERE project_id = $1 AND started_at >= $2`,
		projectID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w trace count: %w", ErrFailedToQuery, err)
	}

	return n, nil
}

func kindStrings(kinds []models.SpanKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}

	return out
}
