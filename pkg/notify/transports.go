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
	"net/http"

	"github.com/carverauto/pulse/pkg/models"
)

// Transports wires one transport per channel kind.
func Transports(client *http.Client, mail EmailConfig) map[models.ChannelKind]Transport {
	return map[models.ChannelKind]Transport{
		models.ChannelKindWebhook:   NewWebhook(client),
		models.ChannelKindSlack:     NewSlack(client),
		models.ChannelKindPagerDuty: NewPagerDuty(client, ""),
		models.ChannelKindEmail:     NewEmail(mail),
	}
}
