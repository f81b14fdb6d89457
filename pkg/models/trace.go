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

package models

import (
	"time"

	"github.com/google/uuid"
)

// Trace is one logical unit of work: an HTTP request, a background job or a custom operation.
//
// DurationMs stays nil until EndedAt is set; once computed it is never recomputed.
// Empty strings are stored as NULL.
type Trace struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	TraceID   string    `json:"trace_id"`
	RequestID string    `json:"request_id,omitempty"`
	Name      string    `json:"name"`
	Kind      TraceKind `json:"kind"`

	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	DurationMs *float64   `json:"duration_ms,omitempty"`

	RequestMethod string `json:"request_method,omitempty"`
	RequestPath   string `json:"request_path,omitempty"`
	Controller    string `json:"controller,omitempty"`
	Action        string `json:"action,omitempty"`
	Status        *int   `json:"status,omitempty"`

	JobClass    string   `json:"job_class,omitempty"`
	JobID       string   `json:"job_id,omitempty"`
	Queue       string   `json:"queue,omitempty"`
	QueueWaitMs *float64 `json:"queue_wait_ms,omitempty"`
	Executions  int      `json:"executions"`

	Environment string `json:"environment,omitempty"`
	Commit      string `json:"commit,omitempty"`
	Host        string `json:"host,omitempty"`
	UserID      string `json:"user_id,omitempty"`

	Error        bool   `json:"error"`
	ErrorClass   string `json:"error_class,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	SpanCount          int     `json:"span_count"`
	DBDurationMs       float64 `json:"db_duration_ms"`
	ViewDurationMs     float64 `json:"view_duration_ms"`
	ExternalDurationMs float64 `json:"external_duration_ms"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Completion finalizes a trace.
type Completion struct {
	EndedAt      time.Time
	Error        bool
	ErrorClass   string
	ErrorMessage string
}

// Complete applies a completion in memory. The duration is only derived when not already set.
func (t *Trace) Complete(c Completion) {
	endedAt := c.EndedAt.UTC()
	t.EndedAt = &endedAt
	t.Error = c.Error
	t.ErrorClass = c.ErrorClass
	t.ErrorMessage = c.ErrorMessage

	if t.DurationMs == nil {
		d := DurationMs(t.StartedAt, endedAt)
		t.DurationMs = &d
	}
}

// Completed reports whether the trace has an end time.
func (t *Trace) Completed() bool {
	return t.EndedAt != nil
}

// Bucket returns the minute bucket the trace belongs to.
func (t *Trace) Bucket() time.Time {
	return GranularityMinute.Truncate(t.StartedAt)
}

// Rollups are the per-trace span totals.
type Rollups struct {
	SpanCount          int
	DBDurationMs       float64
	ViewDurationMs     float64
	ExternalDurationMs float64
}

// Rollup sums spans by kind: db, render and http feed the db, view and external totals.
func Rollup(spans []*Span) Rollups {
	r := Rollups{SpanCount: len(spans)}

	for _, s := range spans {
		d := s.Duration()

		switch s.Kind {
		case SpanKindDB:
			r.DBDurationMs += d
		case SpanKindRender:
			r.ViewDurationMs += d
		case SpanKindHTTP:
			r.ExternalDurationMs += d
		}
	}

	return r
}

// Apply copies rollup totals onto the trace.
func (r Rollups) Apply(t *Trace) {
	t.SpanCount = r.SpanCount
	t.DBDurationMs = Round2(r.DBDurationMs)
	t.ViewDurationMs = Round2(r.ViewDurationMs)
	t.ExternalDurationMs = Round2(r.ExternalDurationMs)
}

// TraceFilter narrows trace listings.
type TraceFilter struct {
	Kind          TraceKind
	Name          string
	Environment   string
	ErrorsOnly    bool
	MinDurationMs float64
	Since         time.Time
	Until         time.Time
	Limit         int
	// SlowestFirst orders by duration instead of recency.
	SlowestFirst bool
}
