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

package alerts

import (
	"time"

	"github.com/carverauto/pulse/pkg/models"
)

// Action is what a rule evaluation does to the rule's state.
type Action int

const (
	// ActionNone leaves the rule as it is.
	ActionNone Action = iota
	// ActionFire records a new alert and moves the rule to alerting.
	ActionFire
	// ActionResolve moves an alerting rule back to ok.
	ActionResolve
	// ActionCooldown means the condition holds but the rule fired too recently.
	ActionCooldown
)

func (a Action) String() string {
	switch a {
	case ActionFire:
		return "fire"
	case ActionResolve:
		return "resolve"
	case ActionCooldown:
		return "cooldown"
	case ActionNone:
	}

	return "none"
}

// Transition is the outcome of Decide.
type Transition struct {
	Action Action
	From   models.RuleStatus
	To     models.RuleStatus
}

// Decide runs the rule state machine for one observation.
//
// Cooldown is measured from last_triggered_at regardless of the current
// status, so a rule that resolved and immediately breached again stays
// quiet until the cooldown elapses. Rules in the recovering state have no
// transitions.
func Decide(rule *models.AlertRule, conditionMet bool, now time.Time) Transition {
	from := rule.Status
	if from == "" {
		from = models.RuleStatusOK
	}

	t := Transition{Action: ActionNone, From: from, To: from}

	if from == models.RuleStatusRecovering {
		return t
	}

	switch {
	case conditionMet && rule.InCooldown(now):
		t.Action = ActionCooldown
	case conditionMet:
		t.Action = ActionFire
		t.To = models.RuleStatusAlerting
	case from == models.RuleStatusAlerting:
		t.Action = ActionResolve
		t.To = models.RuleStatusOK
	}

	return t
}
