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

// Package stats computes the summary statistics shared by rollups, alerting and dashboards.
// Percentiles use the nearest-rank method everywhere.
package stats

import (
	"math"
	"sort"
)

// rankEpsilon absorbs float error in n*p before taking the ceiling.
const rankEpsilon = 1e-9

// Summary is the statistical rollup of a sample set.
type Summary struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64
	Avg   float64
	P50   float64
	P95   float64
	P99   float64
}

// Sorted returns an ascending copy of values.
func Sorted(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)

	return out
}

// Percentile returns the nearest-rank percentile of an ascending slice:
// sorted[ceil(n*p)-1], clamped to the slice bounds. It returns 0 for an empty slice.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}

	idx := int(math.Ceil(float64(n)*p-rankEpsilon)) - 1
	if idx < 0 {
		idx = 0
	}

	if idx >= n {
		idx = n - 1
	}

	return sorted[idx]
}

// Summarize computes the rollup of values. ok is false for an empty set.
// Avg is rounded to two decimals.
func Summarize(values []float64) (s Summary, ok bool) {
	if len(values) == 0 {
		return Summary{}, false
	}

	sorted := Sorted(values)

	for _, v := range sorted {
		s.Sum += v
	}

	s.Count = len(sorted)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Avg = Round2(s.Sum / float64(s.Count))
	s.P50 = Percentile(sorted, 0.50)
	s.P95 = Percentile(sorted, 0.95)
	s.P99 = Percentile(sorted, 0.99)

	return s, true
}

// Single builds the rollup of one value, used for count and rate series.
func Single(v float64) Summary {
	return Summary{Count: 1, Sum: v, Min: v, Max: v, Avg: v, P50: v, P95: v, P99: v}
}

// Mean returns the average of values, or 0 for an empty set.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// Rate returns 100*part/total rounded to two decimals, or 0 when total is 0.
func Rate(part, total int) float64 {
	if total == 0 {
		return 0
	}

	return Round2(float64(part) / float64(total) * 100)
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
