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
	"strings"

	"github.com/google/uuid"

	"github.com/carverauto/pulse/pkg/models"
)

const (
	unknownTraceName        = "Unknown"
	instrumentationSpanName = "instrumentation"
	uuidSegmentLen          = 36
)

// TraceName derives a name for payloads that do not carry one:
// "{method} {normalized path}" for requests, else the job class, else "Unknown".
func TraceName(p *models.TracePayload) string {
	if p.Name != "" {
		return p.Name
	}

	if p.RequestMethod != "" && p.RequestPath != "" {
		return p.RequestMethod + " " + NormalizePath(p.RequestPath)
	}

	if p.JobClass != "" {
		return p.JobClass
	}

	return unknownTraceName
}

// NormalizePath replaces numeric segments with :id and UUID segments with :uuid.
// The query string is dropped.
func NormalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		switch {
		case seg == "":
		case isDigits(seg):
			segments[i] = ":id"
		case isUUID(seg):
			segments[i] = ":uuid"
		}
	}

	return strings.Join(segments, "/")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return s != ""
}

func isUUID(s string) bool {
	if len(s) != uuidSegmentLen {
		return false
	}

	_, err := uuid.Parse(s)

	return err == nil
}

// newSpanID returns a random 16 hex character span identifier.
func newSpanID() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:16]
}
