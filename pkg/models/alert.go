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

package models

import (
	"time"

	"github.com/google/uuid"
)

// Alert rule defaults.
const (
	DefaultWindowMinutes   = 5
	DefaultCooldownMinutes = 60
)

// AlertRule is a monitored condition and its state machine.
type AlertRule struct {
	ID              uuid.UUID   `json:"id"`
	ProjectID       uuid.UUID   `json:"project_id"`
	Name            string      `json:"name"`
	Enabled         bool        `json:"enabled"`
	MetricType      MetricType  `json:"metric_type"`
	MetricName      string      `json:"metric_name,omitempty"`
	Operator        Operator    `json:"operator"`
	Threshold       float64     `json:"threshold"`
	Aggregation     Aggregation `json:"aggregation"`
	WindowMinutes   int         `json:"window_minutes"`
	Endpoint        string      `json:"endpoint,omitempty"`
	Environment     string      `json:"environment,omitempty"`
	CooldownMinutes int         `json:"cooldown_minutes"`
	Severity        Severity    `json:"severity"`
	Status          RuleStatus  `json:"status"`
	LastTriggeredAt *time.Time  `json:"last_triggered_at,omitempty"`
	LastCheckedAt   *time.Time  `json:"last_checked_at,omitempty"`
	ChannelIDs      []uuid.UUID `json:"channel_ids,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// ApplyDefaults fills unset fields with their defaults.
func (r *AlertRule) ApplyDefaults() {
	if r.WindowMinutes <= 0 {
		r.WindowMinutes = DefaultWindowMinutes
	}

	if r.CooldownMinutes <= 0 {
		r.CooldownMinutes = DefaultCooldownMinutes
	}

	if r.Severity == "" {
		r.Severity = SeverityWarning
	}

	if r.Aggregation == "" {
		r.Aggregation = AggregationAvg
	}

	if r.Status == "" {
		r.Status = RuleStatusOK
	}
}

// Validate checks enum membership and required fields.
func (r *AlertRule) Validate() error {
	var errs ValidationErrors

	if r.Name == "" {
		errs.Add("name", "is required")
	}

	if !r.MetricType.Valid() {
		errs.Add("metric_type", "is not a supported metric type")
	}

	if r.MetricType == MetricTypeCustom && r.MetricName == "" {
		errs.Add("metric_name", "is required for custom metrics")
	}

	if !r.Operator.Valid() {
		errs.Add("operator", "is not a supported operator")
	}

	if !r.Aggregation.Valid() {
		errs.Add("aggregation", "is not a supported aggregation")
	}

	if !r.Severity.Valid() {
		errs.Add("severity", "is not a supported severity")
	}

	if r.WindowMinutes <= 0 {
		errs.Add("window_minutes", "must be positive")
	}

	if r.CooldownMinutes < 0 {
		errs.Add("cooldown_minutes", "must not be negative")
	}

	return errs.OrNil()
}

// Window returns the evaluation window.
func (r *AlertRule) Window() time.Duration {
	return time.Duration(r.WindowMinutes) * time.Minute
}

// Cooldown returns the minimum interval between consecutive triggers.
func (r *AlertRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownMinutes) * time.Minute
}

// InCooldown reports whether the rule fired more recently than its cooldown.
func (r *AlertRule) InCooldown(now time.Time) bool {
	if r.LastTriggeredAt == nil {
		return false
	}

	return r.LastTriggeredAt.After(now.Add(-r.Cooldown()))
}

// Alert is an immutable snapshot of one rule firing.
type Alert struct {
	ID          uuid.UUID   `json:"id"`
	ProjectID   uuid.UUID   `json:"project_id"`
	RuleID      uuid.UUID   `json:"alert_rule_id"`
	MetricType  MetricType  `json:"metric_type"`
	Operator    Operator    `json:"operator"`
	Threshold   float64     `json:"threshold"`
	Value       float64     `json:"value"`
	Severity    Severity    `json:"severity"`
	Status      AlertStatus `json:"status"`
	Endpoint    string      `json:"endpoint,omitempty"`
	Environment string      `json:"environment,omitempty"`
	Message     string      `json:"message"`
	TriggeredAt time.Time   `json:"triggered_at"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
}

// NotificationChannel is a delivery target.
type NotificationChannel struct {
	ID           uuid.UUID              `json:"id"`
	ProjectID    uuid.UUID              `json:"project_id"`
	Name         string                 `json:"name"`
	Kind         ChannelKind            `json:"kind"`
	Config       map[string]interface{} `json:"config"`
	Enabled      bool                   `json:"enabled"`
	SuccessCount int64                  `json:"success_count"`
	FailureCount int64                  `json:"failure_count"`
	LastUsedAt   *time.Time             `json:"last_used_at,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// ConfigString reads a string config value.
func (c *NotificationChannel) ConfigString(key string) string {
	return stringField(c.Config, key)
}

// ConfigStrings reads a list config value; a single string is treated as a one-element list.
func (c *NotificationChannel) ConfigStrings(key string) []string {
	switch v := c.Config[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))

		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}

		return out
	case string:
		if v == "" {
			return nil
		}

		return []string{v}
	}

	return nil
}

// ConfigMap reads a string map config value such as webhook headers.
func (c *NotificationChannel) ConfigMap(key string) map[string]string {
	raw, ok := c.Config[key].(map[string]interface{})
	if !ok {
		return nil
	}

	out := make(map[string]string, len(raw))
	for k := range raw {
		out[k] = stringField(raw, k)
	}

	return out
}

// Validate checks the kind and the config keys each kind needs.
func (c *NotificationChannel) Validate() error {
	var errs ValidationErrors

	if c.Name == "" {
		errs.Add("name", "is required")
	}

	switch c.Kind {
	case ChannelKindWebhook:
		if c.ConfigString("url") == "" {
			errs.Add("config.url", "is required for webhook channels")
		}
	case ChannelKindEmail:
		if len(c.ConfigStrings("addresses")) == 0 {
			errs.Add("config.addresses", "is required for email channels")
		}
	case ChannelKindSlack:
		if c.ConfigString("webhook_url") == "" {
			errs.Add("config.webhook_url", "is required for slack channels")
		}
	case ChannelKindPagerDuty:
		if c.ConfigString("integration_key") == "" {
			errs.Add("config.integration_key", "is required for pagerduty channels")
		}
	default:
		errs.Add("kind", "is not a supported channel kind")
	}

	return errs.OrNil()
}

// AlertNotification joins one alert to one channel.
type AlertNotification struct {
	ID           uuid.UUID          `json:"id"`
	AlertID      uuid.UUID          `json:"alert_id"`
	ChannelID    uuid.UUID          `json:"notification_channel_id"`
	Status       NotificationStatus `json:"status"`
	ErrorMessage string             `json:"error_message,omitempty"`
	SentAt       *time.Time         `json:"sent_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

// NotificationDelivery is everything a transport needs to deliver one notification.
type NotificationDelivery struct {
	Notification *AlertNotification
	Alert        *Alert
	Channel      *NotificationChannel
	RuleName     string
	ProjectName  string
}
