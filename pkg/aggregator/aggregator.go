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

// Package aggregator computes minute rollups of request, endpoint, external HTTP,
// cache and job activity and folds them into hour and day rollups.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

// Rollup names.
const (
	NameRequestDuration         = "request_duration"
	NameThroughput              = "throughput"
	NameErrorRate               = "error_rate"
	NameEndpointDuration        = "endpoint_duration"
	NameEndpointThroughput      = "endpoint_throughput"
	NameEndpointErrorRate       = "endpoint_error_rate"
	NameEndpointGroupThroughput = "endpoint_group_throughput"
	NameExternalHTTPDuration    = "external_http_duration"
	NameExternalHTTPCount       = "external_http_count"
	NameExternalHTTPErrorRate   = "external_http_error_rate"
	NameCacheHitRate            = "cache_hit_rate"
	NameCacheHits               = "cache_hits"
	NameCacheMisses             = "cache_misses"
	NameCacheDuration           = "cache_duration"
	NameJobDuration             = "job_duration"
	NameJobCount                = "job_count"
	NameJobErrorRate            = "job_error_rate"
	NameJobQueueWait            = "job_queue_wait"
)

var (
	// ErrUnsupportedGranularity is returned when folding into a granularity without a source.
	ErrUnsupportedGranularity = errors.New("rollups fold only into hour or day granularity")
)

// Store is the storage the aggregator reads raw rows from and writes rollups to.
type Store interface {
	GetTrace(ctx context.Context, projectID uuid.UUID, traceID string) (*models.Trace, error)
	ListTracesInWindow(ctx context.Context, q db.WindowQuery) ([]*models.Trace, error)
	ListBucketSpans(ctx context.Context, projectID uuid.UUID, kind models.SpanKind, from, to time.Time) ([]*models.Span, error)
	UpsertAggregatedMetrics(ctx context.Context, rows []models.AggregatedMetric) error
	ListAggregatedMetrics(ctx context.Context, q db.AggregateQuery) ([]models.AggregatedMetric, error)
}

// Aggregator is safe for concurrent use; re-running a bucket overwrites its rows.
type Aggregator struct {
	store  Store
	logger logger.Logger
}

func New(store Store, log logger.Logger) *Aggregator {
	return &Aggregator{store: store, logger: log}
}

// AggregateMinute recomputes every rollup of the minute holding bucket and
// returns the number of rows written. Groups without data write nothing.
func (a *Aggregator) AggregateMinute(ctx context.Context, projectID uuid.UUID, bucket time.Time) (int, error) {
	started := time.Now()
	bucket = models.GranularityMinute.Truncate(bucket)
	end := bucket.Add(time.Minute)

	requests, err := a.store.ListTracesInWindow(ctx, db.WindowQuery{
		ProjectID: projectID, Kind: models.TraceKindRequest, From: bucket, To: end, CompletedOnly: true,
	})
	if err != nil {
		return 0, fmt.Errorf("load requests: %w", err)
	}

	jobTraces, err := a.store.ListTracesInWindow(ctx, db.WindowQuery{
		ProjectID: projectID, Kind: models.TraceKindJob, From: bucket, To: end, CompletedOnly: true,
	})
	if err != nil {
		return 0, fmt.Errorf("load jobs: %w", err)
	}

	httpSpans, err := a.store.ListBucketSpans(ctx, projectID, models.SpanKindHTTP, bucket, end)
	if err != nil {
		return 0, fmt.Errorf("load http spans: %w", err)
	}

	cacheSpans, err := a.store.ListBucketSpans(ctx, projectID, models.SpanKindCache, bucket, end)
	if err != nil {
		return 0, fmt.Errorf("load cache spans: %w", err)
	}

	rows := newRowSet(projectID, bucket, models.GranularityMinute)
	requestRollups(rows, requests)
	endpointRollups(rows, requests)
	externalHTTPRollups(rows, httpSpans)
	cacheRollups(rows, cacheSpans)
	jobRollups(rows, jobTraces)

	if err := a.store.UpsertAggregatedMetrics(ctx, rows.rows); err != nil {
		aggregationsTotal.WithLabelValues(string(models.GranularityMinute), resultError).Inc()
		return 0, err
	}

	aggregationsTotal.WithLabelValues(string(models.GranularityMinute), resultOK).Inc()
	rowsWritten.WithLabelValues(string(models.GranularityMinute)).Add(float64(len(rows.rows)))
	aggregationDuration.Observe(time.Since(started).Seconds())

	a.logger.Debug().
		Str("project_id", projectID.String()).
		Time("bucket", bucket).
		Int("rows", len(rows.rows)).
		Msg("Aggregated minute bucket")

	return len(rows.rows), nil
}

// AggregateTrace re-aggregates the minute a trace started in. A missing trace
// writes nothing and is not an error.
func (a *Aggregator) AggregateTrace(ctx context.Context, projectID uuid.UUID, traceID string) (int, error) {
	t, err := a.store.GetTrace(ctx, projectID, traceID)
	if errors.Is(err, db.ErrNotFound) {
		a.logger.Debug().Str("trace_id", traceID).Msg("Trace gone before aggregation")
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	return a.AggregateMinute(ctx, projectID, t.StartedAt)
}
