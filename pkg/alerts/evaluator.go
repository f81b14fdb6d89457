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

// Package alerts evaluates alert rules against recent traces and metrics and
// drives each rule's firing and resolution state.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/pulse/pkg/broadcast"
	"github.com/carverauto/pulse/pkg/jobs"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

// Outcome describes one rule evaluation.
type Outcome struct {
	RuleID        string
	Value         float64
	HasValue      bool
	Transition    Transition
	Alert         *models.Alert
	Notifications int
	Resolved      int64
}

// Summary counts what a sweep did.
type Summary struct {
	Projects int
	Rules    int
	Fired    int
	Resolved int
	Failed   int
}

// Evaluator evaluates alert rules.
type Evaluator struct {
	store       Store
	broadcaster broadcast.Broadcaster
	queue       jobs.Enqueuer
	logger      logger.Logger
	now         func() time.Time
}

// NewEvaluator builds an evaluator. A nil broadcaster disables live events.
func NewEvaluator(store Store, b broadcast.Broadcaster, queue jobs.Enqueuer, log logger.Logger) *Evaluator {
	if b == nil {
		b = broadcast.Nop{}
	}

	return &Evaluator{
		store:       store,
		broadcaster: b,
		queue:       queue,
		logger:      log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// EvaluateAll evaluates the enabled rules of every project. A failing
// project or rule is logged and counted; the sweep carries on.
func (e *Evaluator) EvaluateAll(ctx context.Context) (Summary, error) {
	var sum Summary

	projects, err := e.store.ListProjects(ctx)
	if err != nil {
		return sum, fmt.Errorf("list projects: %w", err)
	}

	for _, project := range projects {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}

		s, err := e.EvaluateProject(ctx, project)
		sum.add(s)

		if err != nil {
			e.logger.Error().Err(err).Str("project_id", project.ID.String()).Msg("Alert evaluation failed for project")
		}
	}

	evaluationRuns.WithLabelValues(resultOf(sum.Failed)).Inc()

	return sum, nil
}

// EvaluateProject evaluates every enabled rule of one project. Rule
// failures are joined into the returned error after all rules ran.
func (e *Evaluator) EvaluateProject(ctx context.Context, project *models.Project) (Summary, error) {
	sum := Summary{Projects: 1}

	rules, err := e.store.ListAlertRules(ctx, project.ID, true)
	if err != nil {
		sum.Failed++

		return sum, fmt.Errorf("list alert rules: %w", err)
	}

	var errs []error

	for _, rule := range rules {
		sum.Rules++

		out, err := e.EvaluateRule(ctx, project, rule)
		if err != nil {
			sum.Failed++
			errs = append(errs, fmt.Errorf("rule %s: %w", rule.ID, err))

			continue
		}

		switch out.Transition.Action {
		case ActionFire:
			sum.Fired++
		case ActionResolve:
			sum.Resolved++
		case ActionNone, ActionCooldown:
		}
	}

	return sum, errors.Join(errs...)
}

// EvaluateRule computes the rule's value and applies the resulting
// transition. last_checked_at is stamped on every successful evaluation,
// including when the window has no data. A store error while computing the
// value leaves the rule untouched so the next sweep retries it.
func (e *Evaluator) EvaluateRule(ctx context.Context, project *models.Project, rule *models.AlertRule) (*Outcome, error) {
	now := e.now()
	out := &Outcome{RuleID: rule.ID.String()}

	value, ok, err := e.Value(ctx, project, rule, now)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", rule.MetricType, err)
	}

	out.Value, out.HasValue = value, ok
	out.Transition = Transition{Action: ActionNone, From: rule.Status, To: rule.Status}

	if ok {
		out.Transition = Decide(rule, rule.Operator.Compare(value, rule.Threshold), now)
	}

	ruleEvaluations.WithLabelValues(out.Transition.Action.String()).Inc()

	switch out.Transition.Action {
	case ActionFire:
		return out, e.fire(ctx, rule, out, now)
	case ActionResolve:
		return out, e.resolve(ctx, rule, out, now)
	case ActionNone, ActionCooldown:
	}

	if err := e.store.TouchAlertRule(ctx, rule.ID, now); err != nil {
		return nil, err
	}

	rule.LastCheckedAt = &now

	return out, nil
}

func (e *Evaluator) fire(ctx context.Context, rule *models.AlertRule, out *Outcome, now time.Time) error {
	alert := &models.Alert{
		ProjectID:   rule.ProjectID,
		RuleID:      rule.ID,
		MetricType:  rule.MetricType,
		Operator:    rule.Operator,
		Threshold:   rule.Threshold,
		Value:       out.Value,
		Severity:    rule.Severity,
		Status:      models.AlertStatusFiring,
		Endpoint:    rule.Endpoint,
		Environment: rule.Environment,
		Message:     Message(rule, out.Value),
		TriggeredAt: now,
	}

	notifications, err := e.store.TriggerAlertRule(ctx, alert)
	if err != nil {
		return fmt.Errorf("trigger: %w", err)
	}

	rule.Status = models.RuleStatusAlerting
	rule.LastTriggeredAt = &now
	rule.LastCheckedAt = &now
	out.Alert = alert
	out.Notifications = len(notifications)

	e.logger.Info().
		Str("rule_id", rule.ID.String()).
		Str("rule", rule.Name).
		Float64("value", out.Value).
		Int("notifications", len(notifications)).
		Msg("Alert firing")

	for _, id := range notifications {
		if e.queue == nil || !e.queue.Enqueue(jobs.SendNotification(id)) {
			// the pending sweep picks these up later
			e.logger.Warn().Str("notification_id", id.String()).Msg("Notification job not enqueued")
		}
	}

	e.publish(ctx, broadcast.AlertFiring(alert, rule.Name))

	return nil
}

func (e *Evaluator) resolve(ctx context.Context, rule *models.AlertRule, out *Outcome, now time.Time) error {
	resolved, err := e.store.ResolveAlertRule(ctx, rule.ID, now)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	rule.Status = models.RuleStatusOK
	rule.LastCheckedAt = &now
	out.Resolved = resolved

	e.logger.Info().
		Str("rule_id", rule.ID.String()).
		Str("rule", rule.Name).
		Int64("alerts", resolved).
		Msg("Alert resolved")

	e.publish(ctx, broadcast.AlertResolved(rule))

	return nil
}

func (e *Evaluator) publish(ctx context.Context, ev broadcast.Event) {
	if err := e.broadcaster.Broadcast(ctx, ev); err != nil {
		e.logger.Warn().Err(err).Str("type", ev.Type).Msg("Failed to broadcast alert event")
	}
}

func (s *Summary) add(o Summary) {
	s.Projects += o.Projects
	s.Rules += o.Rules
	s.Fired += o.Fired
	s.Resolved += o.Resolved
	s.Failed += o.Failed
}
