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
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// epochMillisCutoff separates epoch seconds from epoch milliseconds.
const epochMillisCutoff = 1e12

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05.999999999 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Timestamp is a lenient wire timestamp. It never fails to decode: malformed values are
// remembered as present but invalid, and callers substitute a fallback.
type Timestamp struct {
	Time    time.Time
	Present bool
}

// At builds a valid timestamp.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC(), Present: true}
}

// Valid reports whether a usable instant was decoded.
func (t Timestamp) Valid() bool {
	return t.Present && !t.Time.IsZero()
}

// Or returns the decoded instant or fallback.
func (t Timestamp) Or(fallback time.Time) time.Time {
	if t.Valid() {
		return t.Time
	}

	return fallback.UTC()
}

// Ptr returns the decoded instant or nil.
func (t Timestamp) Ptr() *time.Time {
	if !t.Valid() {
		return nil
	}

	v := t.Time

	return &v
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	*t = Timestamp{}

	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}

	t.Present = true

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}

		t.Time, _ = ParseTimestamp(s)

		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return nil
	}

	t.Time = EpochTime(f)

	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return []byte("null"), nil
	}

	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// ParseTimestamp parses the string layouts SDKs send.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}

	return time.Time{}, false
}

// EpochTime converts epoch seconds, or epoch milliseconds above the cutoff, to UTC.
func EpochTime(v float64) time.Time {
	if v <= 0 {
		return time.Time{}
	}

	if v >= epochMillisCutoff {
		return time.UnixMilli(int64(v)).UTC()
	}

	sec := int64(v)
	nsec := int64((v - float64(sec)) * float64(time.Second))

	return time.Unix(sec, nsec).UTC()
}

// TracePayload is the wire form of one trace.
type TracePayload struct {
	TraceID   string    `json:"trace_id"`
	RequestID string    `json:"request_id,omitempty"`
	Name      string    `json:"name,omitempty"`
	Kind      TraceKind `json:"kind,omitempty"`
	StartedAt Timestamp `json:"started_at"`
	EndedAt   Timestamp `json:"ended_at"`

	RequestMethod string `json:"request_method,omitempty"`
	RequestPath   string `json:"request_path,omitempty"`
	Controller    string `json:"controller,omitempty"`
	Action        string `json:"action,omitempty"`
	Status        *int   `json:"status,omitempty"`

	ViewMs     *float64 `json:"view_ms,omitempty"`
	DBMs       *float64 `json:"db_ms,omitempty"`
	ExternalMs *float64 `json:"external_ms,omitempty"`

	JobClass    string   `json:"job_class,omitempty"`
	JobID       string   `json:"job_id,omitempty"`
	Queue       string   `json:"queue,omitempty"`
	QueueWaitMs *float64 `json:"queue_wait_ms,omitempty"`
	Executions  *int     `json:"executions,omitempty"`

	Environment string `json:"environment,omitempty"`
	Commit      string `json:"commit,omitempty"`
	Host        string `json:"host,omitempty"`
	UserID      string `json:"user_id,omitempty"`

	Error        bool   `json:"error,omitempty"`
	ErrorClass   string `json:"error_class,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	Spans []SpanPayload `json:"spans,omitempty"`
}

// Validate rejects payloads missing required fields or carrying unknown enum values.
func (p *TracePayload) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(p.TraceID) == "" {
		errs.Add("trace_id", "is required")
	}

	if p.Kind != "" && !p.Kind.Valid() {
		errs.Add("kind", "is not a supported trace kind")
	}

	for i := range p.Spans {
		errs.Merge(spanField(i), p.Spans[i].Validate())
	}

	return errs.OrNil()
}

// SpanPayload is the wire form of one span, embedded in a trace or standalone.
type SpanPayload struct {
	TraceID      string                 `json:"trace_id,omitempty"`
	RequestID    string                 `json:"request_id,omitempty"`
	SpanID       string                 `json:"span_id,omitempty"`
	ParentSpanID string                 `json:"parent_span_id,omitempty"`
	Name         string                 `json:"name"`
	Kind         SpanKind               `json:"kind,omitempty"`
	StartedAt    Timestamp              `json:"started_at"`
	EndedAt      Timestamp              `json:"ended_at"`
	DurationMs   *float64               `json:"duration_ms,omitempty"`
	Data         map[string]interface{} `json:"data,omitempty"`
	Error        bool                   `json:"error,omitempty"`
	ErrorClass   string                 `json:"error_class,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`

	// Standalone spans may describe the trace they create.
	Environment string    `json:"environment,omitempty"`
	Host        string    `json:"host,omitempty"`
	Timestamp   Timestamp `json:"timestamp"`
}

// UnmarshalJSON accepts "category" for kind and merges "attributes" into data,
// as emitted by framework instrumentation.
func (p *SpanPayload) UnmarshalJSON(b []byte) error {
	type plain SpanPayload

	var aux struct {
		plain
		Category   SpanKind               `json:"category"`
		Attributes map[string]interface{} `json:"attributes"`
	}

	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}

	*p = SpanPayload(aux.plain)

	if aux.Category != "" {
		p.Kind = aux.Category
	}

	if len(aux.Attributes) > 0 {
		if p.Data == nil {
			p.Data = make(map[string]interface{}, len(aux.Attributes))
		}

		for k, v := range aux.Attributes {
			p.Data[k] = v
		}
	}

	return nil
}

// Validate rejects spans without a name or with an unknown kind.
func (p *SpanPayload) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(p.Name) == "" {
		errs.Add("name", "is required")
	}

	if p.Kind != "" && !p.Kind.Valid() {
		errs.Add("kind", "is not a supported span kind")
	}

	return errs.OrNil()
}

// MetricPayload is the wire form of one custom metric sample.
type MetricPayload struct {
	Name        string            `json:"name"`
	Value       *float64          `json:"value"`
	Kind        MetricKind        `json:"kind,omitempty"`
	Unit        string            `json:"unit,omitempty"`
	Description string            `json:"description,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	Timestamp   Timestamp         `json:"timestamp"`
}

// Validate rejects metric samples without a name or value.
func (p *MetricPayload) Validate() error {
	var errs ValidationErrors

	if strings.TrimSpace(p.Name) == "" {
		errs.Add("name", "is required")
	}

	if p.Value == nil {
		errs.Add("value", "is required")
	}

	if p.Kind != "" && !p.Kind.Valid() {
		errs.Add("kind", "is not a supported metric kind")
	}

	return errs.OrNil()
}

func spanField(i int) string {
	return fmt.Sprintf("spans[%d]", i)
}
