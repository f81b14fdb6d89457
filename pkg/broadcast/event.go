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

// Package broadcast pushes live trace and alert events to dashboard websockets.
package broadcast

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/pulse/pkg/models"
)

// Channel groups events a client can subscribe to.
type Channel string

const (
	ChannelMetrics Channel = "metrics"
	ChannelAlerts  Channel = "alerts"
)

// Event types.
const (
	TypeTrace          = "trace"
	TypeAlertFiring    = "firing"
	TypeAlertResolved  = "resolved"
	TypeRuleCreated    = "alert_rule_created"
	TypeRuleUpdated    = "alert_rule_updated"
	TypeRuleDeleted    = "alert_rule_deleted"
	TypeChannelCreated = "notification_channel_created"
	TypeChannelUpdated = "notification_channel_updated"
	TypeChannelDeleted = "notification_channel_deleted"
)

// Event is one live message scoped to a project.
type Event struct {
	Channel   Channel                `json:"channel"`
	ProjectID uuid.UUID              `json:"project_id"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	At        time.Time              `json:"at"`
}

// Broadcaster delivers events. Implementations must not block on slow consumers.
type Broadcaster interface {
	Broadcast(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Broadcast(context.Context, Event) error { return nil }

// TraceEvent announces an ingested trace on the metrics channel.
func TraceEvent(t *models.Trace) Event {
	return Event{
		Channel:   ChannelMetrics,
		ProjectID: t.ProjectID,
		Type:      TypeTrace,
		Data: map[string]interface{}{
			"id":          t.ID,
			"trace_id":    t.TraceID,
			"name":        t.Name,
			"kind":        t.Kind,
			"duration_ms": t.DurationMs,
			"status":      t.Status,
			"error":       t.Error,
		},
		At: time.Now().UTC(),
	}
}

// AlertFiring announces a new alert.
func AlertFiring(a *models.Alert, ruleName string) Event {
	return Event{
		Channel:   ChannelAlerts,
		ProjectID: a.ProjectID,
		Type:      TypeAlertFiring,
		Data: map[string]interface{}{
			"id":           a.ID,
			"rule_name":    ruleName,
			"severity":     a.Severity,
			"message":      a.Message,
			"triggered_at": a.TriggeredAt.Format(time.RFC3339),
		},
		At: time.Now().UTC(),
	}
}

// AlertResolved announces that a rule went back to ok.
func AlertResolved(r *models.AlertRule) Event {
	return Event{
		Channel:   ChannelAlerts,
		ProjectID: r.ProjectID,
		Type:      TypeAlertResolved,
		Data: map[string]interface{}{
			"alert_rule_id": r.ID,
			"name":          r.Name,
		},
		At: time.Now().UTC(),
	}
}

// RuleChanged announces a rule create or update.
func RuleChanged(eventType string, r *models.AlertRule) Event {
	return Event{
		Channel:   ChannelAlerts,
		ProjectID: r.ProjectID,
		Type:      eventType,
		Data: map[string]interface{}{
			"alert_rule": map[string]interface{}{
				"id":          r.ID,
				"name":        r.Name,
				"metric_type": r.MetricType,
				"operator":    r.Operator,
				"threshold":   r.Threshold,
				"severity":    r.Severity,
				"enabled":     r.Enabled,
				"status":      r.Status,
			},
		},
		At: time.Now().UTC(),
	}
}

// RuleDeleted announces a rule removal.
func RuleDeleted(projectID, ruleID uuid.UUID) Event {
	return Event{
		Channel:   ChannelAlerts,
		ProjectID: projectID,
		Type:      TypeRuleDeleted,
		Data:      map[string]interface{}{"alert_rule_id": ruleID},
		At:        time.Now().UTC(),
	}
}

// ChannelChanged announces a notification channel create or update.
func ChannelChanged(eventType string, c *models.NotificationChannel) Event {
	return Event{
		Channel:   ChannelAlerts,
		ProjectID: c.ProjectID,
		Type:      eventType,
		Data: map[string]interface{}{
			"notification_channel": map[string]interface{}{
				"id":      c.ID,
				"name":    c.Name,
				"kind":    c.Kind,
				"enabled": c.Enabled,
			},
		},
		At: time.Now().UTC(),
	}
}

// ChannelDeleted announces a notification channel removal.
func ChannelDeleted(projectID, channelID uuid.UUID) Event {
	return Event{
		Channel:   ChannelAlerts,
		ProjectID: projectID,
		Type:      TypeChannelDeleted,
		Data:      map[string]interface{}{"notification_channel_id": channelID},
		At:        time.Now().UTC(),
	}
}
