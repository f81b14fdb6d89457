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

// Package apdex computes the Apdex satisfaction score.
package apdex

import "math"

// Category is the Apdex bucket of a single duration.
type Category string

const (
	Satisfied  Category = "satisfied"
	Tolerating Category = "tolerating"
	Frustrated Category = "frustrated"
)

// toleratingFactor bounds the tolerating band at 4T.
const toleratingFactor = 4

// Calculate returns (satisfied + tolerating/2) / total for durations in milliseconds against a
// threshold in seconds, rounded to two decimals. An empty set scores 1.0.
func Calculate(durationsMs []float64, thresholdSeconds float64) float64 {
	if len(durationsMs) == 0 {
		return 1.0
	}

	var satisfied, tolerating int

	for _, d := range durationsMs {
		switch Categorize(d, thresholdSeconds) {
		case Satisfied:
			satisfied++
		case Tolerating:
			tolerating++
		case Frustrated:
		}
	}

	return FromCounts(satisfied, tolerating, len(durationsMs))
}

// FromCounts scores pre-bucketed counts the same way Calculate scores raw durations.
func FromCounts(satisfied, tolerating, total int) float64 {
	if total <= 0 {
		return 1.0
	}

	score := (float64(satisfied) + float64(tolerating)/2) / float64(total)

	return math.Round(score*100) / 100
}

// Categorize places one duration in its Apdex bucket.
func Categorize(durationMs, thresholdSeconds float64) Category {
	thresholdMs := thresholdSeconds * 1000

	switch {
	case durationMs <= thresholdMs:
		return Satisfied
	case durationMs <= thresholdMs*toleratingFactor:
		return Tolerating
	default:
		return Frustrated
	}
}
