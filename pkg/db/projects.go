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

package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/carverauto/pulse/pkg/models"
)

const projectColumns = `id, slug, name, environment, apdex_t, settings, created_at, updated_at`

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project

	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Environment, &p.ApdexT, &p.Settings,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	return &p, nil
}

// CreateProject inserts p, filling its id and timestamps.
func (db *DB) CreateProject(ctx context.Context, p *models.Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	if p.Settings == nil {
		p.Settings = map[string]interface{}{}
	}

	row := db.executor.QueryRow(ctx, `
		INSERT INTO projects (id, slug, name, environment, apdex_t, settings)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		p.ID, p.Slug, p.Name, p.Environment, p.Threshold(), p.Settings)

	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("%w project: %w", ErrFailedToInsert, err)
	}

	p.ApdexT = p.Threshold()

	return nil
}

// GetProject loads a project by id.
func (db *DB) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return db.getProject(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
}

// GetProjectBySlug loads a project by its external identifier.
func (db *DB) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	return db.getProject(ctx, `SELECT `+projectColumns+` FROM projects WHERE slug = $1`, slug)
}

// GetProjectByAPIKey resolves either the server API key or the browser ingest key.
func (db *DB) GetProjectByAPIKey(ctx context.Context, key string) (*models.Project, error) {
	return db.getProject(ctx, `SELECT `+projectColumns+` FROM projects
		WHERE settings->>'api_key' = $1 OR settings->>'ingest_key' = $1
		LIMIT 1`, key)
}

func (db *DB) getProject(ctx context.Context, query string, arg any) (*models.Project, error) {
	p, err := scanProject(db.executor.QueryRow(ctx, query, arg))
	if isNoRows(err) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w project: %w", ErrFailedToQuery, err)
	}

	return p, nil
}

// ListProjects returns every project ordered by slug.
func (db *DB) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := db.executor.Query(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("%w projects: %w", ErrFailedToQuery, err)
	}

	projects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Project, error) {
		return scanProject(row)
	})
	if err != nil {
		return nil, fmt.Errorf("%w projects: %w", ErrFailedToScan, err)
	}

	return projects, nil
}
