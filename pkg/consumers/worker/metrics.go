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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "worker_jobs_total",
			Help:      "Jobs processed by the worker, by type and result",
		},
		[]string{"type", "result"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pulse",
			Name:      "worker_job_duration_seconds",
			Help:      "Job processing duration seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	fetchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "worker_fetch_errors_total",
			Help:      "JetStream fetch errors",
		},
	)
)
