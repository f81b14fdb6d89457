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
	"strings"

	"github.com/gorilla/mux"

	"github.com/carverauto/pulse/pkg/ingest"
	"github.com/carverauto/pulse/pkg/models"
)

type traceBatchResponse struct {
	Processed int               `json:"processed"`
	Results   []models.TraceRef `json:"results"`
}

type spanBatchResponse struct {
	Spans []ingest.SpanResult `json:"spans"`
	Count int                 `json:"count"`
}

type browserResponse struct {
	Status    string               `json:"status"`
	SessionID string               `json:"session_id,omitempty"`
	Results   ingest.BrowserResult `json:"results"`
}

func traceRef(t *models.Trace) models.TraceRef {
	return models.TraceRef{ID: t.ID, TraceID: t.TraceID}
}

func (s *APIServer) createTrace(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	var payload models.TracePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		s.fail(w, r, err)
		return
	}

	t, err := s.ingestor.Process(r.Context(), s.requestContext(r, p), payload)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, traceRef(t))
}

func (s *APIServer) batchTraces(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	payloads, _, err := decodeList[models.TracePayload](w, r, "traces")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	traces, err := s.ingestor.ProcessBatch(r.Context(), s.requestContext(r, p), payloads)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := traceBatchResponse{Processed: len(traces), Results: make([]models.TraceRef, 0, len(traces))}
	for _, t := range traces {
		resp.Results = append(resp.Results, traceRef(t))
	}

	s.writeJSON(w, http.StatusCreated, resp)
}

func (s *APIServer) appendSpans(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	payloads, single, err := decodeList[models.SpanPayload](w, r, "spans")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	t, spans, err := s.ingestor.AppendSpans(r.Context(), s.requestContext(r, p), mux.Vars(r)["trace_id"], payloads)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	results := make([]ingest.SpanResult, 0, len(spans))
	for _, sp := range spans {
		results = append(results, ingest.SpanResult{SpanID: sp.SpanID, TraceID: t.TraceID})
	}

	if single && len(results) == 1 {
		s.writeJSON(w, http.StatusCreated, results[0])
		return
	}

	s.writeJSON(w, http.StatusCreated, spanBatchResponse{Spans: results, Count: len(results)})
}

func (s *APIServer) createSpan(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	var payload models.SpanPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		s.fail(w, r, err)
		return
	}

	results, err := s.ingestor.ProcessSpanBatch(r.Context(), s.requestContext(r, p), []models.SpanPayload{payload})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if len(results) == 0 {
		writeError(w, "Trace belongs to another project", http.StatusConflict)
		return
	}

	s.writeJSON(w, http.StatusCreated, results[0])
}

func (s *APIServer) batchSpans(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	payloads, _, err := decodeList[models.SpanPayload](w, r, "spans")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	results, err := s.ingestor.ProcessSpanBatch(r.Context(), s.requestContext(r, p), payloads)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if results == nil {
		results = []ingest.SpanResult{}
	}

	s.writeJSON(w, http.StatusCreated, spanBatchResponse{Spans: results, Count: len(results)})
}

func (s *APIServer) createMetric(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	var payload models.MetricPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		s.fail(w, r, err)
		return
	}

	metrics, err := s.recorder.Record(r.Context(), s.requestContext(r, p), []models.MetricPayload{payload})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"metric_id": metrics[0].ID})
}

func (s *APIServer) batchMetrics(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	payloads, _, err := decodeList[models.MetricPayload](w, r, "metrics")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	metrics, err := s.recorder.Record(r.Context(), s.requestContext(r, p), payloads)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]int{"processed": len(metrics)})
}

func (s *APIServer) ingestBrowser(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	var payload ingest.BrowserPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		s.fail(w, r, err)
		return
	}

	tc := ingest.ResolveTraceContext(r.Header.Get("traceparent"), payload.Context)

	result, err := s.ingestor.IngestBrowser(r.Context(), s.requestContext(r, p), payload, tc)
	if err != nil {
		s.logger.Error().Err(err).Str("project", p.Slug).Msg("Failed to process browser events")
		writeError(w, "Failed to process events", http.StatusUnprocessableEntity)

		return
	}

	s.writeJSON(w, http.StatusOK, browserResponse{
		Status:    "ok",
		SessionID: strings.TrimSpace(r.Header.Get("X-Pulse-Session")),
		Results:   result,
	})
}
