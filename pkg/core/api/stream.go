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

package api

import (
	"net/http"
	"strings"

	"github.com/carverauto/pulse/pkg/broadcast"
)

// live upgrades to a websocket carrying the project's trace and alert events.
// ?channels=metrics,alerts narrows the subscription.
func (s *APIServer) live(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	if s.hub == nil {
		writeError(w, "Live stream is not enabled", http.StatusServiceUnavailable)
		return
	}

	var channels []broadcast.Channel

	for _, name := range strings.Split(r.URL.Query().Get("channels"), ",") {
		switch ch := broadcast.Channel(strings.TrimSpace(name)); ch {
		case broadcast.ChannelMetrics, broadcast.ChannelAlerts:
			channels = append(channels, ch)
		}
	}

	s.logger.Debug().
		Str("project", p.Slug).
		Str("remote_addr", r.RemoteAddr).
		Str("origin", r.Header.Get("Origin")).
		Msg("Live stream requested")

	s.hub.ServeWS(w, r, p.ID, channels)
}
