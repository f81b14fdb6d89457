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

package db

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestQueryBuilderNumbersPlaceholders(t *testing.T) {
	t.Parallel()

	var b queryBuilder

	b.add("t.project_id = ?", "p")
	b.addRaw("t.error")
	b.add("t.duration_ms > ?", 10.0)

	assert.Equal(t, " WHERE t.project_id = $1 AND t.error AND t.duration_ms > $2", b.clause())
	assert.Equal(t, " LIMIT $3", b.limit(50))
	assert.Equal(t, []any{"p", 10.0, 50}, b.args)
}

func TestQueryBuilderEmptyClause(t *testing.T) {
	t.Parallel()

	var b queryBuilder

	assert.Empty(t, b.clause())
}

func TestEndpointSortOrderBy(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "count(*) DESC", EndpointSortCount.orderBy())
	assert.Equal(t, "count(*) DESC", EndpointSort("bogus").orderBy())
	assert.Equal(t, "avg_ms DESC", EndpointSortAvg.orderBy())
	assert.Equal(t, "p95_ms DESC", EndpointSortP95.orderBy())
}

func TestWindowFilterKeysetResumesAfterCursor(t *testing.T) {
	t.Parallel()

	project := uuid.New()
	from := time.Date(2025, 3, 4, 11, 0, 0, 0, time.UTC)
	cursor := &TraceCursor{StartedAt: from.Add(30 * time.Minute), ID: uuid.New()}

	b := windowFilter(WindowQuery{ProjectID: project, From: from, MinSpanCount: 3, Before: cursor})

	assert.Equal(t,
		" WHERE t.project_id = $1 AND t.started_at >= $2 AND t.span_count >= $3 AND (t.started_at, t.id) < ($4, $5)",
		b.clause())
	assert.Equal(t, " LIMIT $6", b.limit(500))
	assert.Equal(t, []any{project, from, 3, cursor.StartedAt, cursor.ID, 500}, b.args)
}

func TestWindowFilterWithoutCursor(t *testing.T) {
	t.Parallel()

	project := uuid.New()
	from := time.Date(2025, 3, 4, 11, 0, 0, 0, time.UTC)

	b := windowFilter(WindowQuery{ProjectID: project, From: from, To: from.Add(time.Minute), CompletedOnly: true})

	assert.Equal(t,
		" WHERE t.project_id = $1 AND t.started_at >= $2 AND t.started_at < $3 AND t.duration_ms IS NOT NULL",
		b.clause())
}
