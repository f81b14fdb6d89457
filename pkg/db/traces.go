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
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carverauto/pulse/pkg/models"
)

// traceColumns selects a trace aliased as t; nullable text comes back as "".
const traceColumns = `t.id, t.project_id, t.trace_id, COALESCE(t.request_id, ''), t.name, t.kind,
	t.started_at, t.ended_at, t.duration_ms,
	COALESCE(t.request_method, ''), COALESCE(t.request_path, ''), COALESCE(t.controller, ''),
	COALESCE(t.action, ''), t.status,
	COALESCE(t.job_class, ''), COALESCE(t.job_id, ''), COALESCE(t.queue, ''), t.queue_wait_ms, t.executions,
	COALESCE(t.environment, ''), COALESCE(t.commit, ''), COALESCE(t.host, ''), COALESCE(t.user_id, ''),
	t.error, COALESCE(t.error_class, ''), COALESCE(t.error_message, ''),
	t.span_count, t.db_duration_ms, t.view_duration_ms, t.external_duration_ms,
	t.created_at, t.updated_at`

func scanTrace(row rowScanner) (*models.Trace, error) {
	var t models.Trace

	err := row.Scan(
		&t.ID, &t.ProjectID, &t.TraceID, &t.RequestID, &t.Name, &t.Kind,
		&t.StartedAt, &t.EndedAt, &t.DurationMs,
		&t.RequestMethod, &t.RequestPath, &t.Controller, &t.Action, &t.Status,
		&t.JobClass, &t.JobID, &t.Queue, &t.QueueWaitMs, &t.Executions,
		&t.Environment, &t.Commit, &t.Host, &t.UserID,
		&t.Error, &t.ErrorClass, &t.ErrorMessage,
		&t.SpanCount, &t.DBDurationMs, &t.ViewDurationMs, &t.ExternalDurationMs,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.StartedAt = t.StartedAt.UTC()

	if t.EndedAt != nil {
		ended := t.EndedAt.UTC()
		t.EndedAt = &ended
	}

	return &t, nil
}

func collectTraces(rows pgx.Rows) ([]*models.Trace, error) {
	traces, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Trace, error) {
		return scanTrace(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%w traces: %w", ErrFailedToScan, err)
	}

	return traces, nil
}

// FindTracesByTraceIDs returns the stored traces for ids in one query, keyed by trace id.
// Trace ids are globally unique, so rows owned by other projects are returned too.
func (db *DB) FindTracesByTraceIDs(ctx context.Context, traceIDs []string) (map[string]*models.Trace, error) {
	out := make(map[string]*models.Trace, len(traceIDs))
	if len(traceIDs) == 0 {
		return out, nil
	}

	rows, err := db.executor.Query(ctx,
		`SELECT `+traceColumns+` FROM traces t WHERE t.trace_id = ANY($1)`, traceIDs)
	if err != nil {
		return nil, fmt.Errorf("%w traces by id: %w", ErrFailedToQuery, err)
	}

	traces, err := collectTraces(rows)
	if err != nil {
		return nil, err
	}

	for _, t := range traces {
		out[t.TraceID] = t
	}

	return out, nil
}

// FindTracesByRequestIDs returns the newest trace per request id within a project.
func (db *DB) FindTracesByRequestIDs(
	ctx context.Context, projectID uuid.UUID, requestIDs []string) (map[string]*models.Trace, error) {
	out := make(map[string]*models.Trace, len(requestIDs))
	if len(requestIDs) == 0 {
		return out, nil
	}

	rows, err := db.executor.Query(ctx, `
		SELECT DISTINCT ON (t.request_id) `+traceColumns+`
		FROM traces t
		WHERE t.project_id = $1 AND t.request_id = ANY($2)
		ORDER BY t.request_id, t.started_at DESC`, projectID, requestIDs)
	if err != nil {
		return nil, fmt.Errorf("%w traces by request id: %w", ErrFailedToQuery, err)
	}

	traces, err := collectTraces(rows)
	if err != nil {
		return nil, err
	}

	for _, t := range traces {
		out[t.RequestID] = t
	}

	return out, nil
}

// InsertTraces writes new traces in a single statement. Rows whose trace id
// already exists are skipped; callers re-read by trace id to get the winner.
func (db *DB) InsertTraces(ctx context.Context, traces []*models.Trace) error {
	if len(traces) == 0 {
		return nil
	}

	n := len(traces)
	var (
		ids, projectIDs                  = make([]uuid.UUID, n), make([]uuid.UUID, n)
		traceIDs, requestIDs, names      = make([]string, n), make([]string, n), make([]string, n)
		kinds, methods, paths            = make([]string, n), make([]string, n), make([]string, n)
		controllers, actions, jobClasses = make([]string, n), make([]string, n), make([]string, n)
		jobIDs, queues, environments     = make([]string, n), make([]string, n), make([]string, n)
		commits, hosts, userIDs          = make([]string, n), make([]string, n), make([]string, n)
		errorClasses, errorMessages      = make([]string, n), make([]string, n)
		startedAt                        = make([]time.Time, n)
		endedAt                          = make([]*time.Time, n)
		durations, queueWaits            = make([]*float64, n), make([]*float64, n)
		statuses                         = make([]*int32, n)
		executions                       = make([]int32, n)
		errs                             = make([]bool, n)
		dbMs, viewMs, externalMs         = make([]float64, n), make([]float64, n), make([]float64, n)
	)

	for i, t := range traces {
		ids[i], projectIDs[i] = t.ID, t.ProjectID
		traceIDs[i], requestIDs[i], names[i] = t.TraceID, t.RequestID, t.Name
		kinds[i], methods[i], paths[i] = string(t.Kind), t.RequestMethod, t.RequestPath
		controllers[i], actions[i], jobClasses[i] = t.Controller, t.Action, t.JobClass
		jobIDs[i], queues[i], environments[i] = t.JobID, t.Queue, t.Environment
		commits[i], hosts[i], userIDs[i] = t.Commit, t.Host, t.UserID
		errorClasses[i], errorMessages[i] = t.ErrorClass, t.ErrorMessage
		startedAt[i], endedAt[i] = t.StartedAt, t.EndedAt
		durations[i], queueWaits[i] = t.DurationMs, t.QueueWaitMs
		executions[i], errs[i] = int32(t.Executions), t.Error
		dbMs[i], viewMs[i], externalMs[i] = t.DBDurationMs, t.ViewDurationMs, t.ExternalDurationMs

		if t.Status != nil {
			s := int32(*t.Status)
			statuses[i] = &s
		}
	}

	_, err := db.executor.Exec(ctx, `
		INSERT INTO traces (
			id, project_id, trace_id, request_id, name, kind, started_at, ended_at, duration_ms,
			request_method, request_path, controller, action, status,
			job_class, job_id, queue, queue_wait_ms, executions,
			environment, commit, host, user_id, error, error_class, error_message,
			db_duration_ms, view_duration_ms, external_duration_ms)
		SELECT id, project_id, trace_id, NULLIF(request_id, ''), name, kind, started_at, ended_at, duration_ms,
			NULLIF(request_method, ''), NULLIF(request_path, ''), NULLIF(controller, ''), NULLIF(action, ''), status,
			NULLIF(job_class, ''), NULLIF(job_id, ''), NULLIF(queue, ''), queue_wait_ms, executions,
			NULLIF(environment, ''), NULLIF(commit, ''), NULLIF(host, ''), NULLIF(user_id, ''),
			error, NULLIF(error_class, ''), NULLIF(error_message, ''),
			db_duration_ms, view_duration_ms, external_duration_ms
		FROM unnest(
			$1::uuid[], $2::uuid[], $3::text[], $4::text[], $5::text[], $6::text[],
			$7::timestamptz[], $8::timestamptz[], $9::float8[],
			$10::text[], $11::text[], $12::text[], $13::text[], $14::int4[],
			$15::text[], $16::text[], $17::text[], $18::float8[], $19::int4[],
			$20::text[], $21::text[], $22::text[], $23::text[],
			$24::bool[], $25::text[], $26::text[],
			$27::float8[], $28::float8[], $29::float8[]
		) AS v(id, project_id, trace_id, request_id, name, kind, started_at, ended_at, duration_ms,
			request_method, request_path, controller, action, status,
			job_class, job_id, queue, queue_wait_ms, executions,
			environment, commit, host, user_id, error, error_class, error_message,
			db_duration_ms, view_duration_ms, external_duration_ms)
		ON CONFLICT (trace_id) DO NOTHING`,
		ids, projectIDs, traceIDs, requestIDs, names, kinds, startedAt, endedAt, durations,
		methods, paths, controllers, actions, statuses,
		jobClasses, jobIDs, queues, queueWaits, executions,
		environments, commits, hosts, userIDs, errs, errorClasses, errorMessages,
		dbMs, viewMs, externalMs,
	)
	if err != nil {
		return fmt.Errorf("%w traces: %w", ErrFailedToInsert, err)
	}

	return nil
}

// CompleteTraces applies end times and error state to many traces in one
// statement. An existing duration is never overwritten.
func (db *DB) CompleteTraces(ctx context.Context, traces []*models.Trace) error {
	ids := make([]uuid.UUID, 0, len(traces))
	endedAt := make([]time.Time, 0, len(traces))
	durations := make([]*float64, 0, len(traces))
	errs := make([]bool, 0, len(traces))
	classes := make([]string, 0, len(traces))
	messages := make([]string, 0, len(traces))

	for _, t := range traces {
		if t.EndedAt == nil {
			continue
		}

		ids = append(ids, t.ID)
		endedAt = append(endedAt, *t.EndedAt)
		durations = append(durations, t.DurationMs)
		errs = append(errs, t.Error)
		classes = append(classes, t.ErrorClass)
		messages = append(messages, t.ErrorMessage)
	}

	if len(ids) == 0 {
		return nil
	}

	_, err := db.executor.Exec(ctx, `
		UPDATE traces AS t SET
			ended_at = c.ended_at,
			duration_ms = COALESCE(t.duration_ms, c.duration_ms),
			error = c.error,
			error_class = NULLIF(c.error_class, ''),
			error_message = NULLIF(c.error_message, ''),
			updated_at = now()
		FROM unnest($1::uuid[], $2::timestamptz[], $3::float8[], $4::bool[], $5::text[], $6::text[])
			AS c(id, ended_at, duration_ms, error, error_class, error_message)
		WHERE t.id = c.id`,
		ids, endedAt, durations, errs, classes, messages)
	if err != nil {
		return fmt.Errorf("%w trace completions: %w", ErrFailedToUpdate, err)
	}

	return nil
}

// RecomputeRollups sums the stored spans of every listed trace by kind and
// writes span_count and the db/view/external totals in one statement.
// Recomputing from the spans table lets concurrent appends converge.
func (db *DB) RecomputeRollups(ctx context.Context, traceRowIDs []uuid.UUID) (map[uuid.UUID]models.Rollups, error) {
	out := make(map[uuid.UUID]models.Rollups, len(traceRowIDs))
	if len(traceRowIDs) == 0 {
		return out, nil
	}

	rows, err := db.executor.Query(ctx, `
		UPDATE traces AS t SET
			span_count = r.span_count,
			db_duration_ms = r.db_ms,
			view_duration_ms = r.view_ms,
			external_duration_ms = r.external_ms,
			updated_at = now()
		FROM (
			SELECT trace_row_id,
				count(*)::int AS span_count,
				round(COALESCE(sum(duration_ms) FILTER (WHERE kind = 'db'), 0)::numeric, 2)::float8 AS db_ms,
				round(COALESCE(sum(duration_ms) FILTER (WHERE kind = 'render'), 0)::numeric, 2)::float8 AS view_ms,
				round(COALESCE(sum(duration_ms) FILTER (WHERE kind = 'http'), 0)::numeric, 2)::float8 AS external_ms
			FROM spans
			WHERE trace_row_id = ANY($1)
			GROUP BY trace_row_id
		) AS r
		WHERE t.id = r.trace_row_id
		RETURNING t.id, t.span_count, t.db_duration_ms, t.view_duration_ms, t.external_duration_ms`,
		traceRowIDs)
	if err != nil {
		return nil, fmt.Errorf("%w trace rollups: %w", ErrFailedToUpdate, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id uuid.UUID
			r  models.Rollups
		)

		if err := rows.Scan(&id, &r.SpanCount, &r.DBDurationMs, &r.ViewDurationMs, &r.ExternalDurationMs); err != nil {
			return nil, fmt.Errorf("%w trace rollups: %w", ErrFailedToScan, err)
		}

		out[id] = r
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w trace rollups: %w", ErrFailedToUpdate, err)
	}

	return out, nil
}

// GetTrace loads one trace of a project by its external id.
func (db *DB) GetTrace(ctx context.Context, projectID uuid.UUID, traceID string) (*models.Trace, error) {
	t, err := scanTrace(db.executor.QueryRow(ctx,
		`SELECT `+traceColumns+` FROM traces t WHERE t.project_id = $1 AND t.trace_id = $2`,
		projectID, traceID))
	if isNoRows(err) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w trace: %w", ErrFailedToQuery, err)
	}

	return t, nil
}

// queryBuilder accumulates AND-ed predicates and their positional args.
type queryBuilder struct {
	where []string
	args  []any
}

func (b *queryBuilder) add(predicate string, arg any) {
	b.args = append(b.args, arg)
	b.where = append(b.where, strings.ReplaceAll(predicate, "?", "$"+strconv.Itoa(len(b.args))))
}

func (b *queryBuilder) addRaw(predicate string) {
	b.where = append(b.where, predicate)
}

func (b *queryBuilder) clause() string {
	if len(b.where) == 0 {
		return ""
	}

	return " WHERE " + strings.Join(b.where, " AND ")
}

func (b *queryBuilder) limit(n int) string {
	b.args = append(b.args, n)
	return " LIMIT $" + strconv.Itoa(len(b.args))
}

// ListTraces returns a project's traces newest first, or slowest first when asked.
func (db *DB) ListTraces(ctx context.Context, projectID uuid.UUID, f models.TraceFilter) ([]*models.Trace, error) {
	var b queryBuilder

	b.add("t.project_id = ?", projectID)

	if f.Kind != "" {
		b.add("t.kind = ?", string(f.Kind))
	}

	if f.Name != "" {
		b.add("t.name = ?", f.Name)
	}

	if f.Environment != "" {
		b.add("t.environment = ?", f.Environment)
	}

	if f.ErrorsOnly {
		b.addRaw("t.error")
	}

	if f.MinDurationMs > 0 {
		b.add("t.duration_ms > ?", f.MinDurationMs)
	}

	if !f.Since.IsZero() {
		b.add("t.started_at >= ?", f.Since)
	}

	if !f.Until.IsZero() {
		b.add("t.started_at < ?", f.Until)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	order := ` ORDER BY t.started_at DESC`
	if f.SlowestFirst {
		order = ` ORDER BY t.duration_ms DESC NULLS LAST, t.started_at DESC`
	}

	query := `SELECT ` + traceColumns + ` FROM traces t` + b.clause() + order + b.limit(limit)

	rows, err := db.executor.Query(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("%w traces: %w", ErrFailedToQuery, err)
	}

	return collectTraces(rows)
}

// WindowQuery selects the traces of one project inside [From, To).
type WindowQuery struct {
	ProjectID   uuid.UUID
	Kind        models.TraceKind
	From        time.Time
	To          time.Time
	RequestPath string
	Name        string
	Environment string
	// CompletedOnly drops traces without a duration.
	CompletedOnly bool
	// MinSpanCount keeps traces with at least this many spans.
	MinSpanCount int
	// Before resumes a newest-first scan after the given trace.
	Before *TraceCursor
	Limit  int
}

// TraceCursor is a keyset position in a newest-first trace scan.
type TraceCursor struct {
	StartedAt time.Time
	ID        uuid.UUID
}

// CursorAfter returns the position just past t.
func CursorAfter(t *models.Trace) *TraceCursor {
	return &TraceCursor{StartedAt: t.StartedAt, ID: t.ID}
}

// ListTracesInWindow returns the traces matching q, newest first.
func (db *DB) ListTracesInWindow(ctx context.Context, q WindowQuery) ([]*models.Trace, error) {
	b := windowFilter(q)

	query := `SELECT ` + traceColumns + ` FROM traces t` + b.clause() + ` ORDER BY t.started_at DESC, t.id DESC`
	if q.Limit > 0 {
		query += b.limit(q.Limit)
	}

	rows, err := db.executor.Query(ctx, query, b.args...)
	if err != nil {
		return nil, fmt.Errorf("%w window traces: %w", ErrFailedToQuery, err)
	}

	return collectTraces(rows)
}

func windowFilter(q WindowQuery) *queryBuilder {
	var b queryBuilder

	b.add("t.project_id = ?", q.ProjectID)
	b.add("t.started_at >= ?", q.From)

	if !q.To.IsZero() {
		b.add("t.started_at < ?", q.To)
	}

	if q.Kind != "" {
		b.add("t.kind = ?", string(q.Kind))
	}

	if q.RequestPath != "" {
		b.add("t.request_path = ?", q.RequestPath)
	}

	if q.Name != "" {
		b.add("t.name = ?", q.Name)
	}

	if q.Environment != "" {
		b.add("t.environment = ?", q.Environment)
	}

	if q.CompletedOnly {
		b.addRaw("t.duration_ms IS NOT NULL")
	}

	if q.MinSpanCount > 0 {
		b.add("t.span_count >= ?", q.MinSpanCount)
	}

	if q.Before != nil {
		b.args = append(b.args, q.Before.StartedAt, q.Before.ID)
		b.addRaw(fmt.Sprintf("(t.started_at, t.id) < ($%d, $%d)", len(b.args)-1, len(b.args)))
	}

	return &b
}

// DeleteTracesBefore removes traces started before cutoff; their spans cascade.
func (db *DB) DeleteTracesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.executor.Exec(ctx, `DELETE FROM traces WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w traces: %w", ErrFailedToDelete, err)
	}

	return tag.RowsAffected(), nil
}
