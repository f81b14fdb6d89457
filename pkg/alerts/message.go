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
	"fmt"
	"math"
	"strconv"

	"github.com/carverauto/pulse/pkg/models"
)

// MetricDisplay is the human name of the rule's metric.
func MetricDisplay(rule *models.AlertRule) string {
	switch rule.MetricType {
	case models.MetricTypeApdex:
		return "Apdex"
	case models.MetricTypeErrorRate:
		return "Error rate"
	case models.MetricTypeThroughput:
		return "Throughput"
	case models.MetricTypeResponseTime:
		return "Response time"
	case models.MetricTypeP95:
		return "P95 latency"
	case models.MetricTypeP99:
		return "P99 latency"
	case models.MetricTypeCustom:
		return rule.MetricName
	}

	return string(rule.MetricType)
}

// ThresholdDisplay renders the threshold with the metric's unit.
func ThresholdDisplay(rule *models.AlertRule) string {
	threshold := formatFloat(rule.Threshold)

	switch rule.MetricType {
	case models.MetricTypeErrorRate:
		return threshold + "%"
	case models.MetricTypeResponseTime, models.MetricTypeP95, models.MetricTypeP99:
		return threshold + "ms"
	case models.MetricTypeThroughput:
		return threshold + " rpm"
	case models.MetricTypeApdex, models.MetricTypeCustom:
	}

	return threshold
}

// FormatValue renders an observed value with the metric's unit and precision.
func FormatValue(rule *models.AlertRule, value float64) string {
	switch rule.MetricType {
	case models.MetricTypeErrorRate:
		return formatFloat(models.Round2(value)) + "%"
	case models.MetricTypeResponseTime, models.MetricTypeP95, models.MetricTypeP99:
		return formatFloat(math.Round(value)) + "ms"
	case models.MetricTypeThroughput:
		return formatFloat(math.Round(value)) + " rpm"
	case models.MetricTypeApdex:
		return formatFloat(models.Round2(value))
	case models.MetricTypeCustom:
	}

	return formatFloat(value)
}

// Message is the alert text stored on the snapshot and sent to channels.
func Message(rule *models.AlertRule, value float64) string {
	return fmt.Sprintf("%s is %s (threshold: %s)", MetricDisplay(rule), FormatValue(rule, value), ThresholdDisplay(rule))
}

// Condition renders the rule as "Error rate > 5%".
func Condition(rule *models.AlertRule) string {
	return fmt.Sprintf("%s %s %s", MetricDisplay(rule), rule.Operator.Symbol(), ThresholdDisplay(rule))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
