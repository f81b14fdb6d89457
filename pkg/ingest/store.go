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

package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/models"
)

// Store is the slice of storage ingestion writes through.
type Store interface {
	FindTracesByTraceIDs(ctx context.Context, traceIDs []string) (map[string]*models.Trace, error)
	FindTracesByRequestIDs(ctx context.Context, projectID uuid.UUID, requestIDs []string) (map[string]*models.Trace, error)
	InsertTraces(ctx context.Context, traces []*models.Trace) error
	InsertSpans(ctx context.Context, spans []*models.Span) error
	CompleteTraces(ctx context.Context, traces []*models.Trace) error
	RecomputeRollups(ctx context.Context, traceRowIDs []uuid.UUID) (map[uuid.UUID]models.Rollups, error)
	EnsureMetrics(ctx context.Context, projectID uuid.UUID, defs []models.Metric) (map[string]*models.Metric, error)
	InsertMetricPoints(ctx context.Context, points []models.MetricPoint) error
}

// Repository runs a unit of ingestion work atomically.
type Repository interface {
	Store
	RunInTx(ctx context.Context, fn func(Store) error) error
}

type dbRepository struct {
	*db.DB
}

// NewDBRepository adapts the database service to a Repository.
func NewDBRepository(database *db.DB) Repository {
	return dbRepository{DB: database}
}

func (r dbRepository) RunInTx(ctx context.Context, fn func(Store) error) error {
	return r.WithTx(ctx, func(tx *db.DB) error {
		return fn(tx)
	})
}
