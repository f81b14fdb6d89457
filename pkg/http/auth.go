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
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

var (
	ErrMissingKey = errors.New("missing API key")
	ErrInvalidKey = errors.New("invalid API key")
)

// KeyKind says which project key a request presented.
type KeyKind int

const (
	KeyAPI KeyKind = iota
	KeyIngest
)

// ProjectLookup resolves a project from one of its keys.
type ProjectLookup interface {
	GetProjectByAPIKey(ctx context.Context, key string) (*models.Project, error)
}

// CachedResolver memoizes key lookups for a short TTL. Unknown keys are not cached.
type CachedResolver struct {
	lookup ProjectLookup
	cache  *cache.Cache
}

func NewCachedResolver(lookup ProjectLookup, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &CachedResolver{lookup: lookup, cache: cache.New(ttl, 2*ttl)}
}

// Resolve returns the project owning key and which of its keys matched.
func (c *CachedResolver) Resolve(ctx context.Context, key string) (*models.Project, KeyKind, error) {
	if key == "" {
		return nil, KeyAPI, ErrMissingKey
	}

	if v, ok := c.cache.Get(key); ok {
		p := v.(*models.Project)
		return p, kindOf(p, key), nil
	}

	p, err := c.lookup.GetProjectByAPIKey(ctx, key)
	if errors.Is(err, db.ErrNotFound) {
		return nil, KeyAPI, ErrInvalidKey
	}

	if err != nil {
		return nil, KeyAPI, err
	}

	c.cache.SetDefault(key, p)

	return p, kindOf(p, key), nil
}

// Forget drops a cached key, e.g. after the project's keys change.
func (c *CachedResolver) Forget(key string) {
	c.cache.Delete(key)
}

func kindOf(p *models.Project, key string) KeyKind {
	if p.APIKey() != key && p.IngestKey() == key {
		return KeyIngest
	}

	return KeyAPI
}

type projectKey struct{}

// WithProject stores the authenticated project on ctx.
func WithProject(ctx context.Context, p *models.Project) context.Context {
	return context.WithValue(ctx, projectKey{}, p)
}

// ProjectFromContext returns the project set by the auth middleware.
func ProjectFromContext(ctx context.Context) (*models.Project, bool) {
	p, ok := ctx.Value(projectKey{}).(*models.Project)
	return p, ok && p != nil
}

// APIKeyOptions configures APIKeyMiddlewareWithOptions.
type APIKeyOptions struct {
	Resolver        *CachedResolver
	ExcludePaths    []string
	AllowIngestKey  bool
	LogUnauthorized bool
	Logger          logger.Logger
}

// APIKeyMiddlewareWithOptions authenticates the request's project key and
// stores the project on the request context. Ingest keys are write-only and
// rejected unless AllowIngestKey is set.
func APIKeyMiddlewareWithOptions(opts APIKeyOptions) func(next http.Handler) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if slices.Contains(opts.ExcludePaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			var (
				project *models.Project
				kind    KeyKind
				err     = ErrInvalidKey
			)

			if opts.Resolver != nil {
				project, kind, err = opts.Resolver.Resolve(r.Context(), KeyFromRequest(r))
			}

			if err == nil && kind == KeyIngest && !opts.AllowIngestKey {
				err = ErrInvalidKey
			}

			if err != nil {
				status := http.StatusUnauthorized
				if !errors.Is(err, ErrMissingKey) && !errors.Is(err, ErrInvalidKey) {
					status = http.StatusInternalServerError
					log.Error().Err(err).Msg("API key lookup failed")
				} else if opts.LogUnauthorized {
					log.Warn().
						Str("method", r.Method).
						Str("path", r.URL.Path).
						Str("remote", r.RemoteAddr).
						Msg("Unauthorized API access attempt")
				}

				writeUnauthorized(w, status)

				return
			}

			next.ServeHTTP(w, r.WithContext(WithProject(r.Context(), project)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	msg := "Invalid API key"
	if status != http.StatusUnauthorized {
		msg = http.StatusText(status)
	}

	_ = json.NewEncoder(w).Encode(models.ErrorResponse{Message: msg, Status: status})
}
