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
	"crypto/subtle"
	"net/http"
	"net/url"
	"slices"
	"strings"

	phttp "github.com/carverauto/pulse/pkg/http"
)

const browserPath = "/api/v1/browser"

// requireMasterKey guards provisioning. With no master key configured every
// request is refused.
func (s *APIServer) requireMasterKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Master-Key")

		if s.masterKey == "" || key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.masterKey)) != 1 {
			s.logger.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("Rejected provisioning request")
			writeError(w, "Unauthorized", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// browserCORS opens the browser endpoint to every origin; the per-project
// origin list is enforced after authentication.
func (*APIServer) browserCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != browserPath {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers",
			"Content-Type, Authorization, X-API-Key, X-Pulse-Session, traceparent, tracestate")
		h.Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// checkBrowserOrigin rejects origins outside the project's allowed list.
// Local development origins and projects without a list are always accepted.
func (s *APIServer) checkBrowserOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := phttp.ProjectFromContext(r.Context())
		if !ok {
			s.fail(w, r, errNoProject)
			return
		}

		origin := r.Header.Get("Origin")
		if !OriginAllowed(origin, p.AllowedOrigins()) {
			s.logger.Warn().Str("project", p.Slug).Str("origin", origin).Msg("Browser origin not allowed")
			writeError(w, "Origin not allowed", http.StatusForbidden)

			return
		}

		next.ServeHTTP(w, r)
	})
}

// OriginAllowed reports whether origin may post browser telemetry.
func OriginAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 || isLocalOrigin(origin) {
		return true
	}

	return slices.Contains(allowed, origin)
}

func isLocalOrigin(origin string) bool {
	if origin == "" {
		return false
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := u.Hostname()

	return host == "localhost" || host == "127.0.0.1" || strings.HasSuffix(host, ".localhost")
}
