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

package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	aggregationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "aggregator_runs_total",
			Help:      "Aggregation runs by granularity and result",
		},
		[]string{"granularity", "result"},
	)

	rowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "aggregator_rows_written_total",
			Help:      "Rollup rows upserted",
		},
		[]string{"granularity"},
	)

	aggregationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pulse",
			Name:      "aggregator_minute_duration_seconds",
			Help:      "Time spent aggregating one minute bucket",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
