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

// Metric is a named custom time series, unique by name within a project.
type Metric struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   uuid.UUID  `json:"project_id"`
	Name        string     `json:"name"`
	Kind        MetricKind `json:"kind"`
	Unit        string     `json:"unit,omitempty"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// MetricPoint is one append-only sample of a metric.
type MetricPoint struct {
	MetricID  uuid.UUID         `json:"metric_id"`
	ProjectID uuid.UUID         `json:"project_id"`
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Dimensions distinguish rollups that share a name, bucket and granularity.
type Dimensions map[string]string

// AggregatedMetric is one precomputed rollup row.
// Identity is (project, name, bucket, granularity, dimensions).
type AggregatedMetric struct {
	ProjectID   uuid.UUID   `json:"project_id"`
	Name        string      `json:"name"`
	Bucket      time.Time   `json:"bucket"`
	Granularity Granularity `json:"granularity"`
	Dimensions  Dimensions  `json:"dimensions"`
	Count       int64       `json:"count"`
	Sum         float64     `json:"sum"`
	Min         float64     `json:"min"`
	Max         float64     `json:"max"`
	Avg         float64     `json:"avg"`
	P50         float64     `json:"p50"`
	P95         float64     `json:"p95"`
	P99         float64     `json:"p99"`
}

// MetricStat is one bucket of a metric stats query.
type MetricStat struct {
	Bucket time.Time `json:"bucket"`
	Count  int64     `json:"count"`
	Avg    float64   `json:"avg"`
	Min    float64   `json:"min"`
	Max    float64   `json:"max"`
	Sum    float64   `json:"sum"`
}
