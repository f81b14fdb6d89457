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

package apdex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		durations []float64
		threshold float64
		want      float64
	}{
		{name: "empty is perfect", durations: nil, threshold: 0.5, want: 1.0},
		{name: "all satisfied", durations: []float64{10, 200, 500}, threshold: 0.5, want: 1.0},
		{name: "all frustrated", durations: []float64{2001, 5000}, threshold: 0.5, want: 0.0},
		{name: "all tolerating", durations: []float64{501, 2000}, threshold: 0.5, want: 0.5},
		{name: "mixed", durations: []float64{100, 100, 1000, 3000}, threshold: 0.5, want: 0.63},
		{name: "one third rounding", durations: []float64{100, 3000, 3000}, threshold: 0.5, want: 0.33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, Calculate(tt.durations, tt.threshold), 0.0001)
		})
	}
}

func TestCalculateStaysInBounds(t *testing.T) {
	t.Parallel()

	for n := 1; n <= 50; n++ {
		durations := make([]float64, 0, n)
		for i := 0; i < n; i++ {
			durations = append(durations, float64(i*137%4000))
		}

		score := Calculate(durations, 0.3)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestCategorize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Satisfied, Categorize(500, 0.5))
	assert.Equal(t, Tolerating, Categorize(500.01, 0.5))
	assert.Equal(t, Tolerating, Categorize(2000, 0.5))
	assert.Equal(t, Frustrated, Categorize(2000.01, 0.5))
}

func TestFromCountsMatchesCalculate(t *testing.T) {
	t.Parallel()

	durations := []float64{100, 100, 1000, 3000}

	assert.InDelta(t, Calculate(durations, 0.5), FromCounts(2, 1, 4), 0.0001)
	assert.InDelta(t, 1.0, FromCounts(0, 0, 0), 0.0001)
	assert.InDelta(t, 0.0, FromCounts(0, 0, 3), 0.0001)
}
