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
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/models"
)

const (
	apiKeyPrefix    = "pls_"
	ingestKeyPrefix = "pls_ingest_"
	keyBytes        = 24
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// NewKey returns prefix followed by 48 random hex characters.
func NewKey(prefix string) (string, error) {
	b := make([]byte, keyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("cannot generate key: %w", err)
	}

	return prefix + hex.EncodeToString(b), nil
}

// Slugify lowercases name and joins its alphanumeric runs with dashes.
func Slugify(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

func provisionResponse(p *models.Project) models.ProvisionResponse {
	return models.ProvisionResponse{
		ID:        p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		APIKey:    p.APIKey(),
		IngestKey: p.IngestKey(),
	}
}

// provisionProject returns the project named in the body, creating it with
// fresh keys when the name is new.
func (s *APIServer) provisionProject(w http.ResponseWriter, r *http.Request) {
	var req models.ProvisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	slug := Slugify(req.Name)

	if slug == "" {
		var errs models.ValidationErrors
		errs.Add("name", "is required")
		s.fail(w, r, errs)

		return
	}

	existing, err := s.projects.GetProjectBySlug(r.Context(), slug)
	if err == nil {
		s.writeJSON(w, http.StatusOK, provisionResponse(existing))
		return
	}

	if !errors.Is(err, db.ErrNotFound) {
		s.fail(w, r, err)
		return
	}

	p, err := s.newProject(req, slug)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.projects.CreateProject(r.Context(), p); err != nil {
		// A concurrent provision of the same name wins the unique slug.
		if again, getErr := s.projects.GetProjectBySlug(r.Context(), slug); getErr == nil {
			s.writeJSON(w, http.StatusOK, provisionResponse(again))
			return
		}

		s.fail(w, r, err)

		return
	}

	s.logger.Info().Str("project", p.Slug).Str("id", p.ID.String()).Msg("Provisioned project")
	s.writeJSON(w, http.StatusCreated, provisionResponse(p))
}

func (*APIServer) newProject(req models.ProvisionRequest, slug string) (*models.Project, error) {
	apiKey, err := NewKey(apiKeyPrefix)
	if err != nil {
		return nil, err
	}

	ingestKey, err := NewKey(ingestKeyPrefix)
	if err != nil {
		return nil, err
	}

	env := req.Environment
	if env == "" {
		env = "development"
	}

	return &models.Project{
		Slug:        slug,
		Name:        req.Name,
		Environment: env,
		ApdexT:      req.ApdexT,
		Settings: map[string]interface{}{
			models.SettingAPIKey:    apiKey,
			models.SettingIngestKey: ingestKey,
		},
	}, nil
}

func (s *APIServer) lookupProject(w http.ResponseWriter, r *http.Request) {
	slug := Slugify(r.URL.Query().Get("name"))
	if slug == "" {
		slug = r.URL.Query().Get("slug")
	}

	p, err := s.projects.GetProjectBySlug(r.Context(), slug)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, provisionResponse(p))
}
