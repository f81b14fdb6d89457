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

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentileNearestRank(t *testing.T) {
	t.Parallel()

	values := make([]float64, 0, 100)
	for i := 1; i <= 100; i++ {
		values = append(values, float64(i))
	}

	sorted := Sorted(values)

	tests := []struct {
		name string
		p    float64
		want float64
	}{
		{name: "p50", p: 0.50, want: 50},
		{name: "p95", p: 0.95, want: 95},
		{name: "p99", p: 0.99, want: 99},
		{name: "p100", p: 1.0, want: 100},
		{name: "p0 clamps to first", p: 0, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, Percentile(sorted, tt.p), 0.0001)
		})
	}
}

func TestPercentileSmallSets(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Percentile(nil, 0.5))
	assert.InDelta(t, 7.0, Percentile([]float64{7}, 0.99), 0.0001)
	assert.InDelta(t, 2.0, Percentile([]float64{1, 2, 3}, 0.5), 0.0001)
	assert.InDelta(t, 3.0, Percentile([]float64{1, 2, 3}, 0.95), 0.0001)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	_, ok := Summarize(nil)
	require.False(t, ok)

	s, ok := Summarize([]float64{300, 100, 200})
	require.True(t, ok)
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 600.0, s.Sum, 0.01)
	assert.InDelta(t, 100.0, s.Min, 0.01)
	assert.InDelta(t, 300.0, s.Max, 0.01)
	assert.InDelta(t, 200.0, s.Avg, 0.01)
	assert.InDelta(t, 200.0, s.P50, 0.01)
}

func TestSummarizeDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := []float64{3, 1, 2}
	_, _ = Summarize(in)

	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestRate(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Rate(0, 0))
	assert.InDelta(t, 50.0, Rate(1, 2), 0.001)
	assert.InDelta(t, 66.67, Rate(2, 3), 0.001)
}
