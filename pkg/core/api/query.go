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
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/nplusone"
)

const (
	defaultEndpointLimit = 20
	defaultNPlusOneLimit = 20
)

type traceResponse struct {
	Trace         *models.Trace           `json:"trace"`
	ApdexCategory string                  `json:"apdex_category,omitempty"`
	Spans         []models.WaterfallEntry `json:"spans"`
}

type nPlusOneResponse struct {
	Patterns []nplusone.AggregatedPattern `json:"patterns"`
	Traces   []nplusone.AffectedTrace     `json:"traces"`
}

// traceFilter reads the list filters. since only applies when given.
func (s *APIServer) traceFilter(r *http.Request) models.TraceFilter {
	q := r.URL.Query()

	f := models.TraceFilter{
		Kind:          models.TraceKind(q.Get("kind")),
		Name:          q.Get("name"),
		Environment:   q.Get("environment"),
		ErrorsOnly:    q.Get("errors") == "true" || q.Get("error") == "true",
		MinDurationMs: floatParam(r, "min_duration", "slow"),
		Limit:         limitParam(r, defaultLimit),
	}

	if !f.Kind.Valid() {
		f.Kind = ""
	}

	if q.Get("since") != "" {
		f.Since = s.since(r)
	}

	return f
}

func (s *APIServer) listTraces(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	traces, err := s.reader.Traces(r.Context(), p, s.traceFilter(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if traces == nil {
		traces = []*models.Trace{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"traces": traces})
}

func (s *APIServer) getTrace(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	detail, err := s.reader.Trace(r.Context(), p, mux.Vars(r)["trace_id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, traceResponse{
		Trace:         detail.Trace,
		ApdexCategory: detail.ApdexCategory,
		Spans:         detail.Waterfall,
	})
}

func (s *APIServer) listMetrics(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	metrics, err := s.reader.Metrics(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if metrics == nil {
		metrics = []*models.Metric{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"metrics": metrics})
}

func (s *APIServer) metricStats(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	g := models.Granularity(r.URL.Query().Get("granularity"))

	series, err := s.reader.Metric(r.Context(), p, mux.Vars(r)["name"], g, s.since(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, series)
}

func (s *APIServer) overview(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	out, err := s.reader.Overview(r.Context(), p, s.since(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *APIServer) endpoints(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	sort := db.EndpointSort(r.URL.Query().Get("sort"))
	if sort == "" {
		sort = db.EndpointSort(r.URL.Query().Get("sort_by"))
	}

	stats, err := s.reader.Endpoints(r.Context(), p, s.since(r), sort, limitParam(r, defaultEndpointLimit))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if stats == nil {
		stats = []models.EndpointStat{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"endpoints": stats})
}

func (s *APIServer) throughput(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	g := models.Granularity(r.URL.Query().Get("granularity"))

	out, err := s.reader.Throughput(r.Context(), p, s.since(r), g)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, out)
}

func (s *APIServer) queries(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	report, err := s.reader.Queries(r.Context(), p, s.since(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

func (s *APIServer) nPlusOne(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	window := s.window(r)
	limit := limitParam(r, defaultNPlusOneLimit)

	patterns, err := s.patterns.AggregatePatterns(r.Context(), p.ID, window, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	traces, err := s.patterns.FindAffectedTraces(r.Context(), p.ID, window, limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := nPlusOneResponse{Patterns: patterns, Traces: traces}
	if resp.Patterns == nil {
		resp.Patterns = []nplusone.AggregatedPattern{}
	}

	if resp.Traces == nil {
		resp.Traces = []nplusone.AffectedTrace{}
	}

	s.writeJSON(w, http.StatusOK, resp)
}
