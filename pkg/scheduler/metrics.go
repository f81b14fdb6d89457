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

package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_scheduler_sweeps_total",
		Help: "Scheduled sweeps by name and result.",
	}, []string{"sweep", "result"})

	sweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulse_scheduler_sweep_duration_seconds",
		Help:    "Scheduled sweep latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"sweep"})
)
