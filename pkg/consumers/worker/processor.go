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

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/pulse/pkg/jobs"
	"github.com/carverauto/pulse/pkg/logger"
)

// Aggregator recomputes minute rollups.
type Aggregator interface {
	AggregateMinute(ctx context.Context, projectID uuid.UUID, bucket time.Time) (int, error)
	AggregateTrace(ctx context.Context, projectID uuid.UUID, traceID string) (int, error)
}

// Notifier delivers one alert notification.
type Notifier interface {
	Send(ctx context.Context, notificationID uuid.UUID) error
}

// Processor decodes job envelopes and routes them to their handler.
type Processor struct {
	aggregator Aggregator
	notifier   Notifier
	logger     logger.Logger
}

func NewProcessor(agg Aggregator, notifier Notifier, log logger.Logger) *Processor {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Processor{aggregator: agg, notifier: notifier, logger: log}
}

// Process handles one raw message. Malformed envelopes wrap ErrPoisonMessage.
func (p *Processor) Process(ctx context.Context, data []byte) error {
	job, err := jobs.Decode(data)
	if err != nil {
		jobsTotal.WithLabelValues("unknown", "poison").Inc()
		return fmt.Errorf("%w: %w", ErrPoisonMessage, err)
	}

	start := time.Now()
	err = p.handle(ctx, job)
	jobDuration.WithLabelValues(string(job.Type)).Observe(time.Since(start).Seconds())

	result := "ok"
	if err != nil {
		result = "error"
	}

	jobsTotal.WithLabelValues(string(job.Type), result).Inc()

	return err
}

func (p *Processor) handle(ctx context.Context, job jobs.Job) error {
	switch job.Type {
	case jobs.TypeAggregateMinute:
		if p.aggregator == nil {
			return fmt.Errorf("%w: %s", errNoHandler, job.Type)
		}

		n, err := p.aggregator.AggregateMinute(ctx, job.ProjectID, *job.Bucket)
		if err != nil {
			return fmt.Errorf("aggregate minute %s: %w", job.Bucket.Format(time.RFC3339), err)
		}

		p.logger.Debug().
			Str("project_id", job.ProjectID.String()).
			Time("bucket", *job.Bucket).
			Int("rows", n).
			Msg("Aggregated minute bucket")
	case jobs.TypeAggregateTrace:
		if p.aggregator == nil {
			return fmt.Errorf("%w: %s", errNoHandler, job.Type)
		}

		n, err := p.aggregator.AggregateTrace(ctx, job.ProjectID, job.TraceID)
		if err != nil {
			return fmt.Errorf("aggregate trace %s: %w", job.TraceID, err)
		}

		p.logger.Debug().
			Str("project_id", job.ProjectID.String()).
			Str("trace_id", job.TraceID).
			Int("rows", n).
			Msg("Aggregated trace bucket")
	case jobs.TypeSendNotification:
		if p.notifier == nil {
			return fmt.Errorf("%w: %s", errNoHandler, job.Type)
		}

		if err := p.notifier.Send(ctx, job.NotificationID); err != nil {
			return fmt.Errorf("send notification %s: %w", job.NotificationID, err)
		}
	}

	return nil
}
