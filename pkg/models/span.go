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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Span is one timed operation inside a trace. SpanID is unique per project, not globally,
// and ParentSpanID is not enforced referentially.
type Span struct {
	ID           uuid.UUID              `json:"id"`
	TraceRowID   uuid.UUID              `json:"-"`
	ProjectID    uuid.UUID              `json:"project_id"`
	SpanID       string                 `json:"span_id"`
	ParentSpanID string                 `json:"parent_span_id,omitempty"`
	Name         string                 `json:"name"`
	Kind         SpanKind               `json:"kind"`
	StartedAt    time.Time              `json:"started_at"`
	EndedAt      *time.Time             `json:"ended_at,omitempty"`
	DurationMs   *float64               `json:"duration_ms,omitempty"`
	Data         map[string]interface{} `json:"data"`
	Error        bool                   `json:"error"`
	ErrorClass   string                 `json:"error_class,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// Duration returns the span duration, or 0 when unknown.
func (s *Span) Duration() float64 {
	if s.DurationMs == nil {
		return 0
	}

	return *s.DurationMs
}

// DisplayName renders a short label for dashboards.
func (s *Span) DisplayName() string {
	switch s.Kind {
	case SpanKindDB:
		v := s.DB()
		op := v.Operation()
		if op == "" {
			op = "SQL"
		}

		if t := v.Table(); t != "" {
			return op + " " + t
		}

		return op
	case SpanKindHTTP:
		v := s.HTTP()
		return strings.TrimSpace(v.Method() + " " + v.URL())
	case SpanKindCache:
		v := s.Cache()
		label := "MISS"

		if v.Hit() {
			label = "HIT"
		}

		return fmt.Sprintf("Cache %s: %s", label, v.Key())
	case SpanKindRender:
		return "Render " + s.Render().Template()
	default:
		return s.Name
	}
}

// DB returns the database view of the data bag.
func (s *Span) DB() DBSpanView { return DBSpanView{data: s.Data} }

// HTTP returns the outbound HTTP view of the data bag.
func (s *Span) HTTP() HTTPSpanView { return HTTPSpanView{data: s.Data} }

// Cache returns the cache view of the data bag.
func (s *Span) Cache() CacheSpanView { return CacheSpanView{data: s.Data} }

// Render returns the view-render view of the data bag.
func (s *Span) Render() RenderSpanView { return RenderSpanView{data: s.Data} }

// DBSpanView reads sql, table and operation from a db span.
type DBSpanView struct{ data map[string]interface{} }

func (v DBSpanView) SQL() string       { return stringField(v.data, "sql") }
func (v DBSpanView) Table() string     { return stringField(v.data, "table") }
func (v DBSpanView) Operation() string { return stringField(v.data, "operation") }
func (v DBSpanView) Name() string      { return stringField(v.data, "name") }

// HTTPSpanView reads method, url, host and status from an outbound http span.
type HTTPSpanView struct{ data map[string]interface{} }

func (v HTTPSpanView) Method() string { return stringField(v.data, "method") }
func (v HTTPSpanView) URL() string    { return stringField(v.data, "url") }

// Host returns the host field recorded by the client. URLs are not parsed.
func (v HTTPSpanView) Host() string { return stringField(v.data, "host") }

// Status returns the response status code, or 0.
func (v HTTPSpanView) Status() int {
	return intField(v.data, "status")
}

// CacheSpanView reads key, hit and operation from a cache span.
type CacheSpanView struct{ data map[string]interface{} }

func (v CacheSpanView) Key() string       { return stringField(v.data, "key") }
func (v CacheSpanView) Operation() string { return stringField(v.data, "operation") }
func (v CacheSpanView) IsRead() bool      { return v.Operation() == "read" }

// Hit accepts booleans and their common string forms.
func (v CacheSpanView) Hit() bool {
	hit, _ := v.HitState()
	return hit
}

// HitState also reports whether a hit flag was recorded at all.
func (v CacheSpanView) HitState() (hit, known bool) {
	switch h := v.data["hit"].(type) {
	case bool:
		return h, true
	case string:
		b, err := strconv.ParseBool(h)
		return b, err == nil
	}

	return false, false
}

// RenderSpanView reads the template from a render span.
type RenderSpanView struct{ data map[string]interface{} }

func (v RenderSpanView) Template() string { return stringField(v.data, "template") }

func stringField(data map[string]interface{}, key string) string {
	if data == nil {
		return ""
	}

	switch v := data[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func intField(data map[string]interface{}, key string) int {
	if data == nil {
		return 0
	}

	switch v := data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}

	return 0
}
