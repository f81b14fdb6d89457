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
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carverauto/pulse/pkg/models"
)

const alertRuleColumns = `r.id, r.project_id, r.name, r.enabled, r.metric_type, COALESCE(r.metric_name, ''),
	r.operator, r.threshold, r.aggregation, r.window_minutes, COALESCE(r.endpoint, ''), COALESCE(r.environment, ''),
	r.cooldown_minutes, r.severity, r.status, r.last_triggered_at, r.last_checked_at,
	COALESCE((SELECT array_agg(c.notification_channel_id ORDER BY c.notification_channel_id)
		FROM alert_rule_channels c WHERE c.alert_rule_id = r.id), '{}'::uuid[]),
	r.created_at, r.updated_at`

const alertColumns = `a.id, a.project_id, a.alert_rule_id, a.metric_type, a.operator, a.threshold, a.value,
	a.severity, a.status, COALESCE(a.endpoint, ''), COALESCE(a.environment, ''), a.message,
	a.triggered_at, a.resolved_at`

func scanAlertRule(row rowScanner) (*models.AlertRule, error) {
	var r models.AlertRule

	err := row.Scan(&r.ID, &r.ProjectID, &r.Name, &r.Enabled, &r.MetricType, &r.MetricName,
		&r.Operator, &r.Threshold, &r.Aggregation, &r.WindowMinutes, &r.Endpoint, &r.Environment,
		&r.CooldownMinutes, &r.Severity, &r.Status, &r.LastTriggeredAt, &r.LastCheckedAt,
		&r.ChannelIDs, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert

	err := row.Scan(&a.ID, &a.ProjectID, &a.RuleID, &a.MetricType, &a.Operator, &a.Threshold, &a.Value,
		&a.Severity, &a.Status, &a.Endpoint, &a.Environment, &a.Message, &a.TriggeredAt, &a.ResolvedAt)
	if err != nil {
		return nil, err
	}

	return &a, nil
}

// CreateAlertRule inserts r and links its channels.
func (db *DB) CreateAlertRule(ctx context.Context, r *models.AlertRule) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	return db.WithTx(ctx, func(tx *DB) error {
		err := tx.executor.QueryRow(ctx, `
			INSERT INTO alert_rules (id, project_id, name, enabled, metric_type, metric_name, operator, threshold,
				aggregation, window_minutes, endpoint, environment, cooldown_minutes, severity, status)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, NULLIF($11, ''), NULLIF($12, ''), $13, $14, $15)
			RETURNING created_at, updated_at`,
			r.ID, r.ProjectID, r.Name, r.Enabled, string(r.MetricType), r.MetricName, string(r.Operator), r.Threshold,
			string(r.Aggregation), r.WindowMinutes, r.Endpoint, r.Environment, r.CooldownMinutes,
			string(r.Severity), string(r.Status)).Scan(&r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return fmt.Errorf("%w alert rule: %w", ErrFailedToInsert, err)
		}

		return tx.linkChannels(ctx, r)
	})
}

// UpdateAlertRule rewrites the editable fields of r and replaces its channel links.
func (db *DB) UpdateAlertRule(ctx context.Context, r *models.AlertRule) error {
	return db.WithTx(ctx, func(tx *DB) error {
		err := tx.executor.QueryRow(ctx, `
			UPDATE alert_rules SET name = $3, enabled = $4, metric_type = $5, metric_name = NULLIF($6, ''),
				operator = $7, threshold = $8, aggregation = $9, window_minutes = $10,
				endpoint = NULLIF($11, ''), environment = NULLIF($12, ''), cooldown_minutes = $13, severity = $14,
				updated_at = now()
			WHERE id = $1 AND project_id = $2
			RETURNING updated_at`,
			r.ID, r.ProjectID, r.Name, r.Enabled, string(r.MetricType), r.MetricName, string(r.Operator),
			r.Threshold, string(r.Aggregation), r.WindowMinutes, r.Endpoint, r.Environment, r.CooldownMinutes,
			string(r.Severity)).Scan(&r.UpdatedAt)
		if isNoRows(err) {
			return ErrNotFound
		}

		if err != nil {
			return fmt.Errorf("%w alert rule: %w", ErrFailedToUpdate, err)
		}

		if _, err := tx.executor.Exec(ctx,
			`DELETE FROM alert_rule_channels WHERE alert_rule_id = $1`, r.ID); err != nil {
			return fmt.Errorf("%w alert rule channels: %w", ErrFailedToDelete, err)
		}

		return tx.linkChannels(ctx, r)
	})
}

// linkChannels attaches r's channels, ignoring ids from other projects.
func (db *DB) linkChannels(ctx context.Context, r *models.AlertRule) error {
	if len(r.ChannelIDs) == 0 {
		return nil
	}

	_, err := db.executor.Exec(ctx, `
		INSERT INTO alert_rule_channels (alert_rule_id, notification_channel_id)
		SELECT $1, c.id FROM notification_channels c
		WHERE c.project_id = $2 AND c.id = ANY($3)
		ON CONFLICT DO NOTHING`, r.ID, r.ProjectID, r.ChannelIDs)
	if err != nil {
		return fmt.Errorf("%w alert rule channels: %w", ErrFailedToInsert, err)
	}

	return nil
}

// DeleteAlertRule removes a rule and, by cascade, its alerts.
func (db *DB) DeleteAlertRule(ctx context.Context, projectID, id uuid.UUID) error {
	tag, err := db.executor.Exec(ctx, `DELETE FROM alert_rules WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return fmt.Errorf("%w alert rule: %w", ErrFailedToDelete, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// GetAlertRule loads one rule of a project.
func (db *DB) GetAlertRule(ctx context.Context, projectID, id uuid.UUID) (*models.AlertRule, error) {
	r, err := scanAlertRule(db.executor.QueryRow(ctx,
		`SELECT `+alertRuleColumns+` FROM alert_rules r WHERE r.id = $1 AND r.project_id = $2`, id, projectID))
	if isNoRows(err) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w alert rule: %w", ErrFailedToQuery, err)
	}

	return r, nil
}

// ListAlertRules returns a project's rules; enabledOnly narrows to rules the evaluator runs.
func (db *DB) ListAlertRules(ctx context.Context, projectID uuid.UUID, enabledOnly bool) ([]*models.AlertRule, error) {
	query := `SELECT ` + alertRuleColumns + ` FROM alert_rules r WHERE r.project_id = $1`
	if enabledOnly {
		query += ` AND r.enabled`
	}

	rows, err := db.executor.Query(ctx, query+` ORDER BY r.name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w alert rules: %w", ErrFailedToQuery, err)
	}

	rules, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.AlertRule, error) {
		return scanAlertRule(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%w alert rules: %w", ErrFailedToScan, err)
	}

	return rules, nil
}

// TouchAlertRule stamps last_checked_at without changing state.
func (db *DB) TouchAlertRule(ctx context.Context, ruleID uuid.UUID, at time.Time) error {
	if _, err := db.executor.Exec(ctx,
		`UPDATE alert_rules SET last_checked_at = $2 WHERE id = $1`, ruleID, at); err != nil {
		return fmt.Errorf("%w alert rule check: %w", ErrFailedToUpdate, err)
	}

	return nil
}

// TriggerAlertRule records a firing in one transaction: the alert snapshot,
// the rule's alerting state and a pending notification for every enabled
// linked channel. It returns the new notification ids.
func (db *DB) TriggerAlertRule(ctx context.Context, alert *models.Alert) ([]uuid.UUID, error) {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}

	var ids []uuid.UUID

	err := db.WithTx(ctx, func(tx *DB) error {
		if _, err := tx.executor.Exec(ctx, `
			INSERT INTO alerts (id, project_id, alert_rule_id, metric_type, operator, threshold, value, severity,
				status, endpoint, environment, message, triggered_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'firing', NULLIF($9, ''), NULLIF($10, ''), $11, $12)`,
			alert.ID, alert.ProjectID, alert.RuleID, string(alert.MetricType), string(alert.Operator),
			alert.Threshold, alert.Value, string(alert.Severity), alert.Endpoint, alert.Environment,
			alert.Message, alert.TriggeredAt); err != nil {
			return fmt.Errorf("%w alert: %w", ErrFailedToInsert, err)
		}

		if _, err := tx.executor.Exec(ctx, `
			UPDATE alert_rules SET status = 'alerting', last_triggered_at = $2, last_checked_at = $2, updated_at = now()
			WHERE id = $1`, alert.RuleID, alert.TriggeredAt); err != nil {
			return fmt.Errorf("%w alert rule state: %w", ErrFailedToUpdate, err)
		}

		rows, err := tx.executor.Query(ctx, `
			INSERT INTO alert_notifications (alert_id, notification_channel_id, status)
			SELECT $1, c.id, 'pending'
			FROM alert_rule_channels rc
			JOIN notification_channels c ON c.id = rc.notification_channel_id
			WHERE rc.alert_rule_id = $2 AND c.enabled
			ON CONFLICT (alert_id, notification_channel_id) DO NOTHING
			RETURNING id`, alert.ID, alert.RuleID)
		if err != nil {
			return fmt.Errorf("%w alert notifications: %w", ErrFailedToInsert, err)
		}

		ids, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return fmt.Errorf("%w alert notifications: %w", ErrFailedToScan, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	alert.Status = models.AlertStatusFiring

	return ids, nil
}

// ResolveAlertRule flips a rule back to ok and resolves all of its firing
// alerts in one transaction. It returns how many alerts were resolved.
func (db *DB) ResolveAlertRule(ctx context.Context, ruleID uuid.UUID, at time.Time) (int64, error) {
	var resolved int64

	err := db.WithTx(ctx, func(tx *DB) error {
		if _, err := tx.executor.Exec(ctx, `
			UPDATE alert_rules SET status = 'ok', last_checked_at = $2, updated_at = now()
			WHERE id = $1`, ruleID, at); err != nil {
			return fmt.Errorf("%w alert rule state: %w", ErrFailedToUpdate, err)
		}

		tag, err := tx.executor.Exec(ctx, `
			UPDATE alerts SET status = 'resolved', resolved_at = $2
			WHERE alert_rule_id = $1 AND status = 'firing'`, ruleID, at)
		if err != nil {
			return fmt.Errorf("%w alerts: %w", ErrFailedToUpdate, err)
		}

		resolved = tag.RowsAffected()

		return nil
	})

	return resolved, err
}

// AlertFilter narrows alert history.
type AlertFilter struct {
	RuleID uuid.UUID
	Status models.AlertStatus
	Limit  int
}

// ListAlerts returns a project's alert history, newest first.
func (db *DB) ListAlerts(ctx context.Context, projectID uuid.UUID, f AlertFilter) ([]*models.Alert, error) {
	var b queryBuilder

	b.add("a.project_id = ?", projectID)

	if f.RuleID != uuid.Nil {
		b.add("a.alert_rule_id = ?", f.RuleID)
	}

	if f.Status != "" {
		b.add("a.status = ?", string(f.Status))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.executor.Query(ctx,
		`SELECT `+alertColumns+` FROM alerts a`+b.clause()+` ORDER BY a.triggered_at DESC`+b.limit(limit), b.args...)
	if err != nil {
		return nil, fmt.Errorf("%w alerts: %w", ErrFailedToQuery, err)
	}

	alerts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Alert, error) {
		return scanAlert(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%w alerts: %w", ErrFailedToScan, err)
	}

	return alerts, nil
}
