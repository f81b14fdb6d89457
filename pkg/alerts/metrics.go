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

package alerts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "alert_sweeps_total",
			Help:      "Alert evaluation sweeps by result",
		},
		[]string{"result"},
	)

	ruleEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulse",
			Name:      "alert_rule_evaluations_total",
			Help:      "Alert rule evaluations by action taken",
		},
		[]string{"action"},
	)
)

func resultOf(failed int) string {
	if failed > 0 {
		return "partial"
	}

	return "ok"
}
