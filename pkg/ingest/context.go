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

package ingest

import (
	"time"

	"github.com/carverauto/pulse/pkg/models"
)

// RequestContext carries the request-scoped values ingestion needs. It is built by the
// API layer once per request and passed down explicitly.
type RequestContext struct {
	Project    *models.Project
	RequestID  string
	ReceivedAt time.Time
}

// NewRequestContext stamps the receive time in UTC.
func NewRequestContext(project *models.Project, requestID string, receivedAt time.Time) RequestContext {
	return RequestContext{Project: project, RequestID: requestID, ReceivedAt: receivedAt.UTC()}
}

func (rc RequestContext) validate() error {
	if rc.Project == nil {
		return ErrNoProject
	}

	return nil
}

// now is the fallback instant for missing or malformed timestamps.
func (rc RequestContext) now() time.Time {
	if rc.ReceivedAt.IsZero() {
		return time.Now().UTC()
	}

	return rc.ReceivedAt
}
