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

package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/carverauto/pulse/pkg/models"
)

// Webhook posts the alert as JSON to config.url with config.headers.
type Webhook struct {
	poster
}

func NewWebhook(client *http.Client) *Webhook {
	return &Webhook{poster: newPoster(client)}
}

type webhookProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type webhookPayload struct {
	AlertID     string         `json:"alert_id"`
	RuleName    string         `json:"rule_name"`
	Severity    string         `json:"severity"`
	Status      string         `json:"status"`
	MetricType  string         `json:"metric_type"`
	Value       float64        `json:"value"`
	Threshold   float64        `json:"threshold"`
	Message     string         `json:"message"`
	Endpoint    *string        `json:"endpoint"`
	Environment *string        `json:"environment"`
	TriggeredAt string         `json:"triggered_at"`
	Project     webhookProject `json:"project"`
}

func (w *Webhook) Deliver(ctx context.Context, d *models.NotificationDelivery) error {
	url := d.Channel.ConfigString("url")
	if url == "" {
		return fmt.Errorf("%w: webhook url", ErrMissingConfig)
	}

	a := d.Alert

	return w.postJSON(ctx, url, webhookPayload{
		AlertID:     a.ID.String(),
		RuleName:    d.RuleName,
		Severity:    string(a.Severity),
		Status:      string(a.Status),
		MetricType:  string(a.MetricType),
		Value:       a.Value,
		Threshold:   a.Threshold,
		Message:     a.Message,
		Endpoint:    optional(a.Endpoint),
		Environment: optional(a.Environment),
		TriggeredAt: a.TriggeredAt.UTC().Format(time.RFC3339),
		Project:     webhookProject{ID: a.ProjectID.String(), Name: d.ProjectName},
	}, d.Channel.ConfigMap("headers"))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}

	return s
}

func title(d *models.NotificationDelivery) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(string(d.Alert.Severity)), d.RuleName)
}
