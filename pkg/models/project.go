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
	"math"
	"time"

	"github.com/google/uuid"
)

// DefaultApdexT is the Apdex threshold, in seconds, for projects that do not set one.
const DefaultApdexT = 0.5

// Project is the tenant boundary. Everything else belongs to exactly one project.
type Project struct {
	ID          uuid.UUID              `json:"id"`
	Slug        string                 `json:"slug"`
	Name        string                 `json:"name"`
	Environment string                 `json:"environment"`
	ApdexT      float64                `json:"apdex_t"`
	Settings    map[string]interface{} `json:"settings,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// Settings keys.
const (
	SettingAPIKey         = "api_key"
	SettingIngestKey      = "ingest_key"
	SettingAllowedOrigins = "allowed_origins"
)

// APIKey returns the generated API key, if any.
func (p *Project) APIKey() string {
	return p.settingString(SettingAPIKey)
}

// IngestKey returns the browser ingest key, if any.
func (p *Project) IngestKey() string {
	return p.settingString(SettingIngestKey)
}

// AllowedOrigins lists the origins allowed to post browser telemetry.
func (p *Project) AllowedOrigins() []string {
	raw, ok := p.Settings[SettingAllowedOrigins]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))

		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}

		return out
	}

	return nil
}

// Threshold returns the Apdex threshold in seconds, falling back to DefaultApdexT.
func (p *Project) Threshold() float64 {
	if p == nil || p.ApdexT <= 0 {
		return DefaultApdexT
	}

	return p.ApdexT
}

func (p *Project) settingString(key string) string {
	if p.Settings == nil {
		return ""
	}

	s, _ := p.Settings[key].(string)

	return s
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DurationMs returns the elapsed milliseconds between two instants, rounded to two decimals.
func DurationMs(start, end time.Time) float64 {
	return Round2(float64(end.Sub(start)) / float64(time.Millisecond))
}
