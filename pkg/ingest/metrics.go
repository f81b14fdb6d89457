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
	"errors"
	"fmt"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

var errMetricNotStored = errors.New("metric definition was not stored")

// MetricRecorder stores custom metric samples, creating metric definitions on first use.
type MetricRecorder struct {
	repo   Repository
	logger logger.Logger
}

func NewMetricRecorder(repo Repository, log logger.Logger) *MetricRecorder {
	return &MetricRecorder{repo: repo, logger: log}
}

// Record writes every sample in one transaction and returns the metric of each sample.
func (r *MetricRecorder) Record(ctx context.Context, rc RequestContext, payloads []models.MetricPayload) ([]*models.Metric, error) {
	if err := rc.validate(); err != nil {
		return nil, err
	}

	if len(payloads) == 0 {
		return nil, ErrEmptyBatch
	}

	var errs models.ValidationErrors
	for i := range payloads {
		errs.Merge(fmt.Sprintf("metrics[%d]", i), payloads[i].Validate())
	}

	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	var out []*models.Metric

	err := r.repo.RunInTx(ctx, func(store Store) error {
		var err error

		out, err = recordMetrics(ctx, store, rc, payloads)

		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug().Str("project", rc.Project.Slug).Int("points", len(payloads)).Msg("Recorded metric points")

	return out, nil
}

func recordMetrics(ctx context.Context, store Store, rc RequestContext, payloads []models.MetricPayload) ([]*models.Metric, error) {
	defs := make([]models.Metric, 0, len(payloads))
	seen := make(map[string]struct{}, len(payloads))

	for i := range payloads {
		p := &payloads[i]
		if _, dup := seen[p.Name]; dup {
			continue
		}

		seen[p.Name] = struct{}{}
		defs = append(defs, models.Metric{
			ProjectID:   rc.Project.ID,
			Name:        p.Name,
			Kind:        p.Kind,
			Unit:        p.Unit,
			Description: p.Description,
		})
	}

	metrics, err := store.EnsureMetrics(ctx, rc.Project.ID, defs)
	if err != nil {
		return nil, err
	}

	now := rc.now()
	out := make([]*models.Metric, 0, len(payloads))
	points := make([]models.MetricPoint, 0, len(payloads))

	for i := range payloads {
		p := &payloads[i]

		m, ok := metrics[p.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", errMetricNotStored, p.Name)
		}

		out = append(out, m)
		points = append(points, models.MetricPoint{
			MetricID:  m.ID,
			ProjectID: rc.Project.ID,
			Timestamp: p.Timestamp.Or(now),
			Value:     *p.Value,
			Tags:      p.Tags,
		})
	}

	if err := store.InsertMetricPoints(ctx, points); err != nil {
		return nil, err
	}

	return out, nil
}
