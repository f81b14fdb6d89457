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
	"time"

	"github.com/carverauto/pulse/pkg/models"
)

// PagerDutyEventsURL is the Events API v2 enqueue endpoint.
const PagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"

const defaultPagerDutySeverity = "error"

// PagerDuty triggers an Events v2 incident. Firings of the same rule share
// a dedup key so PagerDuty folds them into one incident.
type PagerDuty struct {
	poster
	url string
}

// NewPagerDuty builds the transport. An empty url uses PagerDutyEventsURL.
func NewPagerDuty(client *http.Client, url string) *PagerDuty {
	if url == "" {
		url = PagerDutyEventsURL
	}

	return &PagerDuty{poster: newPoster(client), url: url}
}

type pagerDutyDetails struct {
	AlertID     string  `json:"alert_id"`
	MetricType  string  `json:"metric_type"`
	Value       float64 `json:"value"`
	Threshold   float64 `json:"threshold"`
	TriggeredAt string  `json:"triggered_at"`
}

type pagerDutyBody struct {
	Summary       string           `json:"summary"`
	Severity      string           `json:"severity"`
	Source        string           `json:"source"`
	Component     string           `json:"component"`
	Group         string           `json:"group"`
	Class         string           `json:"class"`
	CustomDetails pagerDutyDetails `json:"custom_details"`
}

type pagerDutyEvent struct {
	RoutingKey  string        `json:"routing_key"`
	EventAction string        `json:"event_action"`
	DedupKey    string        `json:"dedup_key"`
	Payload     pagerDutyBody `json:"payload"`
}

// DedupKey is the incident key for a rule.
func DedupKey(a *models.Alert) string {
	return "pulse-alert-" + a.RuleID.String()
}

func (p *PagerDuty) Deliver(ctx context.Context, d *models.NotificationDelivery) error {
	key := d.Channel.ConfigString("integration_key")
	if key == "" {
		return fmt.Errorf("%w: pagerduty integration_key", ErrMissingConfig)
	}

	a := d.Alert

	return p.postJSON(ctx, p.url, pagerDutyEvent{
		RoutingKey:  key,
		EventAction: "trigger",
		DedupKey:    DedupKey(a),
		Payload: pagerDutyBody{
			Summary:   fmt.Sprintf("%s: %s", title(d), a.Message),
			Severity:  orDefault(d.Channel.ConfigString("severity"), defaultPagerDutySeverity),
			Source:    "Pulse APM - " + d.ProjectName,
			Component: orDefault(a.Endpoint, "application"),
			Group:     orDefault(a.Environment, "production"),
			Class:     string(a.MetricType),
			CustomDetails: pagerDutyDetails{
				AlertID:     a.ID.String(),
				MetricType:  string(a.MetricType),
				Value:       a.Value,
				Threshold:   a.Threshold,
				TriggeredAt: a.TriggeredAt.UTC().Format(time.RFC3339),
			},
		},
	}, nil)
}
