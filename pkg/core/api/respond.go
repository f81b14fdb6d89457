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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/carverauto/pulse/pkg/db"
	phttp "github.com/carverauto/pulse/pkg/http"
	"github.com/carverauto/pulse/pkg/ingest"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/query"
)

const (
	maxBodyBytes = 10 << 20
	defaultLimit = 50
	maxLimit     = 1000
)

var (
	errInvalidJSON = errors.New("invalid JSON payload")
	errInvalidID   = errors.New("invalid id")
	errNoProject   = errors.New("request is not bound to a project")
)

// encodeJSONResponse encodes a response as JSON
func encodeJSONResponse(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(data)
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	if err := encodeJSONResponse(w, status, data); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeErrorResponse(w, models.ErrorResponse{Message: message, Status: statusCode})
}

func writeErrorResponse(w http.ResponseWriter, resp models.ErrorResponse) {
	if err := encodeJSONResponse(w, resp.Status, resp); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}

// fail maps err onto a status code and writes it.
func (s *APIServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verrs models.ValidationErrors

	switch {
	case errors.As(err, &verrs):
		writeErrorResponse(w, models.ErrorResponse{
			Message: "Validation failed",
			Status:  http.StatusUnprocessableEntity,
			Errors:  verrs,
		})
	case errors.Is(err, ingest.ErrEmptyBatch):
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, errInvalidJSON), errors.Is(err, errInvalidID):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, db.ErrNotFound), errors.Is(err, ingest.ErrTraceNotFound), errors.Is(err, query.ErrNotFound):
		writeError(w, "Not found", http.StatusNotFound)
	case errors.Is(err, ingest.ErrTraceOwnedElsewhere), errors.Is(err, db.ErrTraceOwnedElsewhere):
		writeError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, errNoProject), errors.Is(err, ingest.ErrNoProject):
		writeError(w, "Unauthorized", http.StatusUnauthorized)
	default:
		s.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		writeError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errInvalidJSON, err)
	}

	return nil
}

// decodeList accepts either a bare JSON array or an object holding the array under key.
// single reports whether the body was one object without that key.
func decodeList[T any](w http.ResponseWriter, r *http.Request, key string) (items []T, single bool, err error) {
	var raw json.RawMessage
	if err := decodeJSON(w, r, &raw); err != nil {
		return nil, false, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, false, fmt.Errorf("%w: %w", errInvalidJSON, err)
		}

		return items, false, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, false, fmt.Errorf("%w: %w", errInvalidJSON, err)
	}

	if list, ok := wrapped[key]; ok {
		if err := json.Unmarshal(list, &items); err != nil {
			return nil, false, fmt.Errorf("%w: %w", errInvalidJSON, err)
		}

		return items, false, nil
	}

	var one T
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, false, fmt.Errorf("%w: %w", errInvalidJSON, err)
	}

	return []T{one}, true, nil
}

// project returns the authenticated project or writes 401.
func (s *APIServer) project(w http.ResponseWriter, r *http.Request) (*models.Project, bool) {
	p, ok := phttp.ProjectFromContext(r.Context())
	if !ok {
		s.fail(w, r, errNoProject)
		return nil, false
	}

	return p, true
}

func (s *APIServer) requestContext(r *http.Request, p *models.Project) ingest.RequestContext {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	return ingest.NewRequestContext(p, requestID, s.now())
}

// since reads the since parameter as an RFC 3339 instant or a window such as 15m.
func (s *APIServer) since(r *http.Request) time.Time {
	now := s.now()

	v := r.URL.Query().Get("since")
	if t, ok := models.ParseTimestamp(v); ok {
		return t
	}

	return query.Since(v, now)
}

// window is the duration covered by the since parameter.
func (s *APIServer) window(r *http.Request) time.Duration {
	d := s.now().Sub(s.since(r))
	if d <= 0 {
		return query.DefaultWindow
	}

	return d
}

func limitParam(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}

	return min(n, maxLimit)
}

func floatParam(r *http.Request, names ...string) float64 {
	for _, name := range names {
		if v, err := strconv.ParseFloat(r.URL.Query().Get(name), 64); err == nil {
			return v
		}
	}

	return 0
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", errInvalidID, err)
	}

	return id, nil
}
