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
	"strconv"

	"github.com/carverauto/pulse/pkg/models"
)

var severityColors = map[models.Severity]string{
	models.SeverityCritical: "#DC2626",
	models.SeverityWarning:  "#F59E0B",
}

const defaultSlackColor = "#6B7280"

// Slack posts an attachment to an incoming webhook.
type Slack struct {
	poster
}

func NewSlack(client *http.Client) *Slack {
	return &Slack{poster: newPoster(client)}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Fields []slackField `json:"fields"`
	Footer string       `json:"footer"`
	TS     int64        `json:"ts"`
}

type slackPayload struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

func (s *Slack) Deliver(ctx context.Context, d *models.NotificationDelivery) error {
	url := d.Channel.ConfigString("webhook_url")
	if url == "" {
		return fmt.Errorf("%w: slack webhook_url", ErrMissingConfig)
	}

	return s.postJSON(ctx, url, slackMessage(d), nil)
}

func slackMessage(d *models.NotificationDelivery) slackPayload {
	a := d.Alert

	color, ok := severityColors[a.Severity]
	if !ok {
		color = defaultSlackColor
	}

	return slackPayload{
		Channel: d.Channel.ConfigString("channel"),
		Attachments: []slackAttachment{{
			Color: color,
			Title: title(d),
			Text:  a.Message,
			Fields: []slackField{
				{Title: "Metric", Value: string(a.MetricType), Short: true},
				{Title: "Value", Value: strconv.FormatFloat(a.Value, 'f', -1, 64), Short: true},
				{Title: "Threshold", Value: strconv.FormatFloat(a.Threshold, 'f', -1, 64), Short: true},
				{Title: "Environment", Value: orDefault(a.Environment, "N/A"), Short: true},
			},
			Footer: "Pulse APM | " + d.ProjectName,
			TS:     a.TriggeredAt.Unix(),
		}},
	}
}
