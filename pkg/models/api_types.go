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

import "github.com/google/uuid"

// CORSConfig controls the cross-origin headers of the JSON API.
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
	AllowCredentials bool     `json:"allow_credentials" env:"ALLOW_CREDENTIALS"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	// Error message
	Message string `json:"message" example:"Invalid request parameters"`
	// HTTP status code
	Status int `json:"status" example:"400"`
	// Field level problems of a rejected payload
	Errors []FieldError `json:"errors,omitempty"`
}

// ProvisionRequest asks for a project, created when the name is new.
type ProvisionRequest struct {
	Name        string  `json:"name"`
	Environment string  `json:"environment,omitempty"`
	ApdexT      float64 `json:"apdex_t,omitempty"`
}

// ProvisionResponse carries the keys of a provisioned project.
type ProvisionResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	APIKey    string    `json:"api_key"`
	IngestKey string    `json:"ingest_key"`
}

// TraceRef identifies an ingested trace.
type TraceRef struct {
	ID      uuid.UUID `json:"id"`
	TraceID string    `json:"trace_id"`
}
