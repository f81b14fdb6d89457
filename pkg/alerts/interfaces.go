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
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/models"
)

//go:generate mockgen -destination=mock_alerts.go -package=alerts github.com/carverauto/pulse/pkg/alerts Store

// Store is the persistence the evaluator needs. *db.DB satisfies it.
type Store interface {
	ListProjects(ctx context.Context) ([]*models.Project, error)
	ListAlertRules(ctx context.Context, projectID uuid.UUID, enabledOnly bool) ([]*models.AlertRule, error)
	ListTracesInWindow(ctx context.Context, q db.WindowQuery) ([]*models.Trace, error)
	MetricValues(ctx context.Context, projectID uuid.UUID, name string, since time.Time) ([]float64, error)
	TouchAlertRule(ctx context.Context, ruleID uuid.UUID, at time.Time) error
	TriggerAlertRule(ctx context.Context, alert *models.Alert) ([]uuid.UUID, error)
	ResolveAlertRule(ctx context.Context, ruleID uuid.UUID, at time.Time) (int64, error)
}
