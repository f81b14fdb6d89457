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

const channelColumns = `c.id, c.project_id, c.name, c.kind, c.config, c.enabled, c.success_count, c.failure_count,
	c.last_used_at, c.created_at, c.updated_at`

func scanChannel(row rowScanner, extra ...any) (*models.NotificationChannel, error) {
	var c models.NotificationChannel

	dest := []any{&c.ID, &c.ProjectID, &c.Name, &c.Kind, &c.Config, &c.Enabled, &c.SuccessCount,
		&c.FailureCount, &c.LastUsedAt, &c.CreatedAt, &c.UpdatedAt}

	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	return &c, nil
}

// CreateChannel inserts a notification channel.
func (db *DB) CreateChannel(ctx context.Context, c *models.NotificationChannel) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	if c.Config == nil {
		c.Config = map[string]interface{}{}
	}

	err := db.executor.QueryRow(ctx, `
		INSERT INTO notification_channels (id, project_id, name, kind, config, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		c.ID, c.ProjectID, c.Name, string(c.Kind), c.Config, c.Enabled).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w notification channel: %w", ErrFailedToInsert, err)
	}

	return nil
}

// UpdateChannel rewrites a channel's name, kind, config and enabled flag.
func (db *DB) UpdateChannel(ctx context.Context, c *models.NotificationChannel) error {
	err := db.executor.QueryRow(ctx, `
		UPDATE notification_channels SET name = $3, kind = $4, config = $5, enabled = $6, updated_at = now()
		WHERE id = $1 AND project_id = $2
		RETURNING updated_at`,
		c.ID, c.ProjectID, c.Name, string(c.Kind), c.Config, c.Enabled).Scan(&c.UpdatedAt)
	if isNoRows(err) {
		return ErrNotFound
	}

	if err != nil {
		return fmt.Errorf("%w notification channel: %w", ErrFailedToUpdate, err)
	}

	return nil
}

// DeleteChannel removes a channel and its links.
func (db *DB) DeleteChannel(ctx context.Context, projectID, id uuid.UUID) error {
	tag, err := db.executor.Exec(ctx,
		`DELETE FROM notification_channels WHERE id = $1 AND project_id = $2`, id, projectID)
	if err != nil {
		return fmt.Errorf("%w notification channel: %w", ErrFailedToDelete, err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// GetChannel loads one channel of a project.
func (db *DB) GetChannel(ctx context.Context, projectID, id uuid.UUID) (*models.NotificationChannel, error) {
	c, err := scanChannel(db.executor.QueryRow(ctx,
		`SELECT `+channelColumns+` FROM notification_channels c WHERE c.id = $1 AND c.project_id = $2`,
		id, projectID))
	if isNoRows(err) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w notification channel: %w", ErrFailedToQuery, err)
	}

	return c, nil
}

// ListChannels returns a project's channels by name.
func (db *DB) ListChannels(ctx context.Context, projectID uuid.UUID) ([]*models.NotificationChannel, error) {
	rows, err := db.executor.Query(ctx,
		`SELECT `+channelColumns+` FROM notification_channels c WHERE c.project_id = $1 ORDER BY c.name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("%w notification channels: %w", ErrFailedToQuery, err)
	}

	channels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.NotificationChannel, error) {
		return scanChannel(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%w notification channels: %w", ErrFailedToScan, err)
	}

	return channels, nil
}

// GetNotificationDelivery loads a notification with its alert, channel, rule and project names.
func (db *DB) GetNotificationDelivery(ctx context.Context, id uuid.UUID) (*models.NotificationDelivery, error) {
	var (
		n           models.AlertNotification
		ruleName    string
		projectName string
	)

	row := db.executor.QueryRow(ctx, `
		SELECT n.id, n.alert_id, n.notification_channel_id, n.status, COALESCE(n.error_message, ''), n.sent_at,
			n.created_at, r.name, p.name, `+alertColumns+`, `+channelColumns+`
		FROM alert_notifications n
		JOIN alerts a ON a.id = n.alert_id
		JOIN alert_rules r ON r.id = a.alert_rule_id
		JOIN projects p ON p.id = a.project_id
		JOIN notification_channels c ON c.id = n.notification_channel_id
		WHERE n.id = $1`, id)

	var a models.Alert
	var c models.NotificationChannel

	err := row.Scan(
		&n.ID, &n.AlertID, &n.ChannelID, &n.Status, &n.ErrorMessage, &n.SentAt, &n.CreatedAt, &ruleName, &projectName,
		&a.ID, &a.ProjectID, &a.RuleID, &a.MetricType, &a.Operator, &a.Threshold, &a.Value,
		&a.Severity, &a.Status, &a.Endpoint, &a.Environment, &a.Message, &a.TriggeredAt, &a.ResolvedAt,
		&c.ID, &c.ProjectID, &c.Name, &c.Kind, &c.Config, &c.Enabled, &c.SuccessCount,
		&c.FailureCount, &c.LastUsedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if isNoRows(err) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w notification: %w", ErrFailedToQuery, err)
	}

	return &models.NotificationDelivery{Notification: &n, Alert: &a, Channel: &c, RuleName: ruleName, ProjectName: projectName}, nil
}

// MarkNotificationSent moves a pending notification to sent and bumps the
// channel's success counter. It reports false when the row was not pending.
func (db *DB) MarkNotificationSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	return db.finishNotification(ctx, id, models.NotificationSent, "", at, "success_count")
}

// MarkNotificationFailed moves a pending notification to failed with msg and
// bumps the channel's failure counter.
func (db *DB) MarkNotificationFailed(ctx context.Context, id uuid.UUID, msg string, at time.Time) (bool, error) {
	return db.finishNotification(ctx, id, models.NotificationFailed, msg, at, "failure_count")
}

func (db *DB) finishNotification(
	ctx context.Context, id uuid.UUID, status models.NotificationStatus, msg string, at time.Time, counter string,
) (bool, error) {
	var sentAt *time.Time
	if status == models.NotificationSent {
		sentAt = &at
	}

	tag, err := db.executor.Exec(ctx, `
		WITH done AS (
			UPDATE alert_notifications
			SET status = $2, error_message = NULLIF($3, ''), sent_at = $4
			WHERE id = $1 AND status = 'pending'
			RETURNING notification_channel_id
		)
		UPDATE notification_channels c
		SET `+counter+` = c.`+counter+` + 1, last_used_at = $5, updated_at = now()
		FROM done
		WHERE c.id = done.notification_channel_id`, id, string(status), msg, sentAt, at)
	if err != nil {
		return false, fmt.Errorf("%w notification status: %w", ErrFailedToUpdate, err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListPendingNotifications returns ids of notifications still pending after olderThan.
func (db *DB) ListPendingNotifications(ctx context.Context, olderThan time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := db.executor.Query(ctx, `
		SELECT id FROM alert_notifications
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("%w pending notifications: %w", ErrFailedToQuery, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("%w pending notifications: %w", ErrFailedToScan, err)
	}

	return ids, nil
}
