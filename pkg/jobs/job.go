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

// Package jobs defines the asynchronous work pulse hands to its worker and the
// fire-and-forget dispatcher that enqueues it.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names one kind of job.
type Type string

const (
	TypeAggregateMinute  Type = "aggregate_minute"
	TypeAggregateTrace   Type = "aggregate_trace"
	TypeSendNotification Type = "send_notification"
)

// Subjects jobs are published on. The stream captures SubjectWildcard.
const (
	SubjectPrefix    = "pulse.jobs."
	SubjectWildcard  = SubjectPrefix + ">"
	SubjectAggregate = SubjectPrefix + "aggregate"
	SubjectNotify    = SubjectPrefix + "notify"
)

var (
	ErrUnknownType  = errors.New("unknown job type")
	ErrMissingField = errors.New("job is missing a required field")
)

// Job is the envelope published to the work queue.
type Job struct {
	ID             string     `json:"id"`
	Type           Type       `json:"type"`
	ProjectID      uuid.UUID  `json:"project_id,omitempty"`
	Bucket         *time.Time `json:"bucket,omitempty"`
	TraceID        string     `json:"trace_id,omitempty"`
	NotificationID uuid.UUID  `json:"notification_id,omitempty"`
	EnqueuedAt     time.Time  `json:"enqueued_at"`
}

// AggregateMinute asks the worker to recompute one minute bucket of a project.
func AggregateMinute(projectID uuid.UUID, bucket time.Time) Job {
	b := bucket.UTC().Truncate(time.Minute)

	return Job{
		ID:         uuid.NewString(),
		Type:       TypeAggregateMinute,
		ProjectID:  projectID,
		Bucket:     &b,
		EnqueuedAt: time.Now().UTC(),
	}
}

// AggregateTrace asks the worker to aggregate the bucket of a completed trace.
func AggregateTrace(projectID uuid.UUID, traceID string) Job {
	return Job{
		ID:         uuid.NewString(),
		Type:       TypeAggregateTrace,
		ProjectID:  projectID,
		TraceID:    traceID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// SendNotification asks the worker to deliver one pending alert notification.
func SendNotification(notificationID uuid.UUID) Job {
	return Job{
		// Repeated sweeps of the same pending row collapse inside the stream's dedup window.
		ID:             "notify:" + notificationID.String(),
		Type:           TypeSendNotification,
		NotificationID: notificationID,
		EnqueuedAt:     time.Now().UTC(),
	}
}

// Subject returns the subject the job is published on.
func (j Job) Subject() string {
	if j.Type == TypeSendNotification {
		return SubjectNotify
	}

	return SubjectAggregate
}

// Validate checks the fields each job type needs.
func (j Job) Validate() error {
	switch j.Type {
	case TypeAggregateMinute:
		if j.ProjectID == uuid.Nil || j.Bucket == nil {
			return fmt.Errorf("%w: %s needs project_id and bucket", ErrMissingField, j.Type)
		}
	case TypeAggregateTrace:
		if j.ProjectID == uuid.Nil || j.TraceID == "" {
			return fmt.Errorf("%w: %s needs project_id and trace_id", ErrMissingField, j.Type)
		}
	case TypeSendNotification:
		if j.NotificationID == uuid.Nil {
			return fmt.Errorf("%w: %s needs notification_id", ErrMissingField, j.Type)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, j.Type)
	}

	return nil
}

// Decode parses and validates a job envelope.
func Decode(data []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Job{}, fmt.Errorf("failed to decode job: %w", err)
	}

	if err := j.Validate(); err != nil {
		return Job{}, err
	}

	return j, nil
}
