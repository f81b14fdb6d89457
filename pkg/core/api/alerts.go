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
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/carverauto/pulse/pkg/alerts"
	"github.com/carverauto/pulse/pkg/broadcast"
	"github.com/carverauto/pulse/pkg/db"
	"github.com/carverauto/pulse/pkg/models"
)

// evaluationResponse reports an on-demand evaluation.
type evaluationResponse struct {
	RuleID        uuid.UUID         `json:"rule_id"`
	Action        string            `json:"action"`
	From          models.RuleStatus `json:"from"`
	To            models.RuleStatus `json:"to"`
	Value         *float64          `json:"value"`
	Alert         *models.Alert     `json:"alert,omitempty"`
	Notifications int               `json:"notifications"`
	Resolved      int64             `json:"resolved"`
}

func newEvaluationResponse(ruleID uuid.UUID, o *alerts.Outcome) evaluationResponse {
	resp := evaluationResponse{
		RuleID:        ruleID,
		Action:        o.Transition.Action.String(),
		From:          o.Transition.From,
		To:            o.Transition.To,
		Alert:         o.Alert,
		Notifications: o.Notifications,
		Resolved:      o.Resolved,
	}

	if o.HasValue {
		v := o.Value
		resp.Value = &v
	}

	return resp
}

func (s *APIServer) publish(ctx context.Context, ev broadcast.Event) {
	if err := s.broadcaster.Broadcast(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("type", ev.Type).Msg("Failed to broadcast configuration change")
	}
}

func (s *APIServer) listAlertRules(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	rules, err := s.config.ListAlertRules(r.Context(), p.ID, false)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if rules == nil {
		rules = []*models.AlertRule{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"alert_rules": rules})
}

func (s *APIServer) createAlertRule(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	rule := models.AlertRule{Enabled: true}
	if err := decodeJSON(w, r, &rule); err != nil {
		s.fail(w, r, err)
		return
	}

	rule.ID = uuid.Nil
	rule.ProjectID = p.ID
	rule.Status = models.RuleStatusOK
	rule.LastTriggeredAt = nil
	rule.LastCheckedAt = nil
	rule.ApplyDefaults()

	if err := rule.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.config.CreateAlertRule(r.Context(), &rule); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), broadcast.RuleChanged(broadcast.TypeRuleCreated, &rule))
	s.writeJSON(w, http.StatusCreated, &rule)
}

// loadRule resolves the {id} path variable to a rule of the project.
func (s *APIServer) loadRule(w http.ResponseWriter, r *http.Request, p *models.Project) (*models.AlertRule, bool) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}

	rule, err := s.config.GetAlertRule(r.Context(), p.ID, id)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}

	return rule, true
}

func (s *APIServer) getAlertRule(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	rule, ok := s.loadRule(w, r, p)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, rule)
}

// updateAlertRule overlays the body on the stored rule. State fields are
// owned by the evaluator and cannot be set here.
func (s *APIServer) updateAlertRule(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	existing, ok := s.loadRule(w, r, p)
	if !ok {
		return
	}

	rule := *existing
	if err := decodeJSON(w, r, &rule); err != nil {
		s.fail(w, r, err)
		return
	}

	rule.ID = existing.ID
	rule.ProjectID = existing.ProjectID
	rule.Status = existing.Status
	rule.LastTriggeredAt = existing.LastTriggeredAt
	rule.LastCheckedAt = existing.LastCheckedAt
	rule.CreatedAt = existing.CreatedAt
	rule.ApplyDefaults()

	if err := rule.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.config.UpdateAlertRule(r.Context(), &rule); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), broadcast.RuleChanged(broadcast.TypeRuleUpdated, &rule))
	s.writeJSON(w, http.StatusOK, &rule)
}

func (s *APIServer) deleteAlertRule(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.config.DeleteAlertRule(r.Context(), p.ID, id); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), broadcast.RuleDeleted(p.ID, id))
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) evaluateAlertRule(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	rule, ok := s.loadRule(w, r, p)
	if !ok {
		return
	}

	outcome, err := s.evaluator.EvaluateRule(r.Context(), p, rule)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, newEvaluationResponse(rule.ID, outcome))
}

func (s *APIServer) listAlerts(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	f := db.AlertFilter{
		Status: models.AlertStatus(q.Get("status")),
		Limit:  limitParam(r, defaultLimit),
	}

	if v := q.Get("rule_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.fail(w, r, errInvalidID)
			return
		}

		f.RuleID = id
	}

	list, err := s.config.ListAlerts(r.Context(), p.ID, f)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if list == nil {
		list = []*models.Alert{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"alerts": list})
}

func (s *APIServer) listChannels(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	channels, err := s.config.ListChannels(r.Context(), p.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if channels == nil {
		channels = []*models.NotificationChannel{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"channels": channels})
}

func (s *APIServer) createChannel(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	ch := models.NotificationChannel{Enabled: true}
	if err := decodeJSON(w, r, &ch); err != nil {
		s.fail(w, r, err)
		return
	}

	ch.ID = uuid.Nil
	ch.ProjectID = p.ID
	ch.SuccessCount, ch.FailureCount, ch.LastUsedAt = 0, 0, nil

	if err := ch.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.config.CreateChannel(r.Context(), &ch); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), broadcast.ChannelChanged(broadcast.TypeChannelCreated, &ch))
	s.writeJSON(w, http.StatusCreated, &ch)
}

func (s *APIServer) loadChannel(
	w http.ResponseWriter, r *http.Request, p *models.Project) (*models.NotificationChannel, bool) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}

	ch, err := s.config.GetChannel(r.Context(), p.ID, id)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}

	return ch, true
}

func (s *APIServer) getChannel(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	ch, ok := s.loadChannel(w, r, p)
	if !ok {
		return
	}

	s.writeJSON(w, http.StatusOK, ch)
}

func (s *APIServer) updateChannel(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	existing, ok := s.loadChannel(w, r, p)
	if !ok {
		return
	}

	ch := *existing
	if err := decodeJSON(w, r, &ch); err != nil {
		s.fail(w, r, err)
		return
	}

	ch.ID = existing.ID
	ch.ProjectID = existing.ProjectID
	ch.SuccessCount = existing.SuccessCount
	ch.FailureCount = existing.FailureCount
	ch.LastUsedAt = existing.LastUsedAt
	ch.CreatedAt = existing.CreatedAt

	if err := ch.Validate(); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.config.UpdateChannel(r.Context(), &ch); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), broadcast.ChannelChanged(broadcast.TypeChannelUpdated, &ch))
	s.writeJSON(w, http.StatusOK, &ch)
}

func (s *APIServer) deleteChannel(w http.ResponseWriter, r *http.Request) {
	p, ok := s.project(w, r)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.config.DeleteChannel(r.Context(), p.ID, id); err != nil {
		s.fail(w, r, err)
		return
	}

	s.publish(r.Context(), broadcast.ChannelDeleted(p.ID, id))
	w.WriteHeader(http.StatusNoContent)
}
