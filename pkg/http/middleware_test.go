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

package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

type fakeLookup struct {
	projects map[string]*models.Project
	calls    int
	err      error
}

func (f *fakeLookup) GetProjectByAPIKey(_ context.Context, key string) (*models.Project, error) {
	f.calls++

	if f.err != nil {
		return nil, f.err
	}

	p, ok := f.projects[key]
	if !ok {
		return nil, db.ErrNotFound
	}

	return p, nil
}

func testProject() *models.Project {
	return &models.Project{
		ID:   uuid.New(),
		Slug: "shop",
		Name: "Shop",
		Settings: map[string]interface{}{
			models.SettingAPIKey:    "pls_api",
			models.SettingIngestKey: "pls_ingest",
		},
	}
}

func okHandler(t *testing.T) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, err := w.Write([]byte("OK"))
		if err != nil {
			t.Errorf("Error writing response: %v", err)
		}
	})
}

func TestCommonMiddleware_CORS(t *testing.T) {
	log := logger.NewTestLogger()

	corsConfig := models.CORSConfig{
		AllowedOrigins:   []string{"http://localhost:3000"},
		AllowCredentials: true,
	}

	handler := CommonMiddleware(okHandler(t), corsConfig, log)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Origin", "http://localhost:3000")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Origin", "http://evil.com")

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCommonMiddleware_Preflight(t *testing.T) {
	called := false
	handler := CommonMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}), models.CORSConfig{AllowedOrigins: []string{"*"}}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/traces", http.NoBody)
	req.Header.Set("Origin", "https://app.example.com")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCommonMiddleware_RecoversPanics(t *testing.T) {
	handler := CommonMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), models.CORSConfig{}, logger.NewTestLogger())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestKeyFromRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		header map[string]string
		url    string
		want   string
	}{
		{name: "bearer", header: map[string]string{"Authorization": "Bearer pls_a"}, url: "/", want: "pls_a"},
		{name: "header", header: map[string]string{"X-API-Key": "pls_b"}, url: "/", want: "pls_b"},
		{name: "query", url: "/?api_key=pls_c", want: "pls_c"},
		{name: "basic auth ignored", header: map[string]string{"Authorization": "Basic xyz"}, url: "/", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, tt.url, http.NoBody)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}

			assert.Equal(t, tt.want, KeyFromRequest(req))
		})
	}
}

func TestAPIKeyMiddleware_Unauthorized(t *testing.T) {
	log := logger.NewTestLogger()
	p := testProject()

	opts := APIKeyOptions{
		Resolver:        NewCachedResolver(&fakeLookup{projects: map[string]*models.Project{"pls_api": p}}, time.Minute),
		ExcludePaths:    []string{"/health"},
		LogUnauthorized: true,
		Logger:          log,
	}

	handler := APIKeyMiddlewareWithOptions(opts)(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/api/test", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/test", http.NoBody)
	req.Header.Set("X-API-Key", "pls_unknown")

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAPIKeyMiddleware_StoresProject(t *testing.T) {
	p := testProject()
	lookup := &fakeLookup{projects: map[string]*models.Project{"pls_api": p, "pls_ingest": p}}
	resolver := NewCachedResolver(lookup, time.Minute)

	var seen *models.Project

	handler := APIKeyMiddlewareWithOptions(APIKeyOptions{Resolver: resolver})(
		http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen, _ = ProjectFromContext(r.Context())
		}))

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/overview", http.NoBody)
		req.Header.Set("Authorization", "Bearer pls_api")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	require.NotNil(t, seen)
	assert.Equal(t, p.ID, seen.ID)
	assert.Equal(t, 1, lookup.calls, "lookups are cached")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/traces", http.NoBody)
	req.Header.Set("X-API-Key", "pls_ingest")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "ingest keys are browser only")
}

func TestAPIKeyMiddleware_AllowsIngestKey(t *testing.T) {
	p := testProject()
	resolver := NewCachedResolver(&fakeLookup{projects: map[string]*models.Project{"pls_ingest": p}}, time.Minute)

	handler := APIKeyMiddlewareWithOptions(APIKeyOptions{Resolver: resolver, AllowIngestKey: true})(okHandler(t))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/browser", http.NoBody)
	req.Header.Set("X-API-Key", "pls_ingest")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAPIKeyMiddleware_LookupFailure(t *testing.T) {
	resolver := NewCachedResolver(&fakeLookup{err: errors.New("connection refused")}, time.Minute)
	handler := APIKeyMiddlewareWithOptions(APIKeyOptions{Resolver: resolver})(okHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/overview", http.NoBody)
	req.Header.Set("X-API-Key", "pls_api")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
