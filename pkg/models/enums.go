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

package models

import "time"

// TraceKind classifies a trace.
type TraceKind string

const (
	TraceKindRequest TraceKind = "request"
	TraceKindJob     TraceKind = "job"
	TraceKindCustom  TraceKind = "custom"
)

func (k TraceKind) Valid() bool {
	switch k {
	case TraceKindRequest, TraceKindJob, TraceKindCustom:
		return true
	}

	return false
}

// SpanKind classifies a span. The set is closed; unknown kinds are rejected at ingestion.
type SpanKind string

const (
	SpanKindDB            SpanKind = "db"
	SpanKindHTTP          SpanKind = "http"
	SpanKindCache         SpanKind = "cache"
	SpanKindRender        SpanKind = "render"
	SpanKindJob           SpanKind = "job"
	SpanKindCable         SpanKind = "cable"
	SpanKindCustom        SpanKind = "custom"
	SpanKindElasticsearch SpanKind = "elasticsearch"
	SpanKindGraphQL       SpanKind = "graphql"
	SpanKindGraphQLField  SpanKind = "graphql.field"
	SpanKindMongoDB       SpanKind = "mongodb"
	SpanKindMailer        SpanKind = "mailer"
	SpanKindRedis         SpanKind = "redis"
	SpanKindGrape         SpanKind = "grape"
	SpanKindGrapeRender   SpanKind = "grape.render"
	SpanKindGrapeFilter   SpanKind = "grape.filter"
	SpanKindGrapeFormat   SpanKind = "grape.format"
	SpanKindBrowserLCP    SpanKind = "browser.lcp"
	SpanKindBrowserFCP    SpanKind = "browser.fcp"
	SpanKindBrowserTTFB   SpanKind = "browser.ttfb"
	SpanKindBrowserFID    SpanKind = "browser.fid"
	SpanKindBrowserINP    SpanKind = "browser.inp"
	SpanKindBrowserCLS    SpanKind = "browser.cls"
	SpanKindBrowserRes    SpanKind = "browser.resource"
	SpanKindBrowserNet    SpanKind = "browser.network"
)

func (k SpanKind) Valid() bool {
	switch k {
	case SpanKindDB, SpanKindHTTP, SpanKindCache, SpanKindRender, SpanKindJob, SpanKindCable, SpanKindCustom,
		SpanKindElasticsearch, SpanKindGraphQL, SpanKindGraphQLField, SpanKindMongoDB, SpanKindMailer,
		SpanKindRedis, SpanKindGrape, SpanKindGrapeRender, SpanKindGrapeFilter, SpanKindGrapeFormat,
		SpanKindBrowserLCP, SpanKindBrowserFCP, SpanKindBrowserTTFB, SpanKindBrowserFID, SpanKindBrowserINP,
		SpanKindBrowserCLS, SpanKindBrowserRes, SpanKindBrowserNet:
		return true
	}

	return false
}

// MetricKind is the type of a custom metric series.
type MetricKind string

const (
	MetricKindGauge     MetricKind = "gauge"
	MetricKindCounter   MetricKind = "counter"
	MetricKindHistogram MetricKind = "histogram"
)

func (k MetricKind) Valid() bool {
	switch k {
	case MetricKindGauge, MetricKindCounter, MetricKindHistogram:
		return true
	}

	return false
}

// Granularity is the width of an aggregation bucket.
type Granularity string

const (
	GranularityMinute Granularity = "minute"
	GranularityHour   Granularity = "hour"
	GranularityDay    Granularity = "day"
)

func (g Granularity) Valid() bool {
	switch g {
	case GranularityMinute, GranularityHour, GranularityDay:
		return true
	}

	return false
}

// Truncate returns the start of the bucket holding t.
func (g Granularity) Truncate(t time.Time) time.Time {
	t = t.UTC()

	switch g {
	case GranularityMinute:
		return t.Truncate(time.Minute)
	case GranularityHour:
		return t.Truncate(time.Hour)
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}

	return t
}

// Width returns the bucket length.
func (g Granularity) Width() time.Duration {
	switch g {
	case GranularityMinute:
		return time.Minute
	case GranularityHour:
		return time.Hour
	case GranularityDay:
		return 24 * time.Hour
	}

	return 0
}

// MetricType is the quantity an alert rule watches. Custom rules also carry a metric name.
type MetricType string

const (
	MetricTypeApdex        MetricType = "apdex"
	MetricTypeErrorRate    MetricType = "error_rate"
	MetricTypeThroughput   MetricType = "throughput"
	MetricTypeResponseTime MetricType = "response_time"
	MetricTypeP95          MetricType = "p95"
	MetricTypeP99          MetricType = "p99"
	MetricTypeCustom       MetricType = "custom"
)

func (m MetricType) Valid() bool {
	switch m {
	case MetricTypeApdex, MetricTypeErrorRate, MetricTypeThroughput, MetricTypeResponseTime,
		MetricTypeP95, MetricTypeP99, MetricTypeCustom:
		return true
	}

	return false
}

// Operator compares an observed value with a threshold.
type Operator string

const (
	OperatorGT  Operator = "gt"
	OperatorGTE Operator = "gte"
	OperatorLT  Operator = "lt"
	OperatorLTE Operator = "lte"
	OperatorEQ  Operator = "eq"
)

func (o Operator) Valid() bool {
	switch o {
	case OperatorGT, OperatorGTE, OperatorLT, OperatorLTE, OperatorEQ:
		return true
	}

	return false
}

// Compare reports whether value satisfies the operator against threshold.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OperatorGT:
		return value > threshold
	case OperatorGTE:
		return value >= threshold
	case OperatorLT:
		return value < threshold
	case OperatorLTE:
		return value <= threshold
	case OperatorEQ:
		return value == threshold
	}

	return false
}

// Symbol renders the operator for messages.
func (o Operator) Symbol() string {
	switch o {
	case OperatorGT:
		return ">"
	case OperatorGTE:
		return ">="
	case OperatorLT:
		return "<"
	case OperatorLTE:
		return "<="
	case OperatorEQ:
		return "=="
	}

	return string(o)
}

// Aggregation reduces a window of samples to one value.
type Aggregation string

const (
	AggregationAvg   Aggregation = "avg"
	AggregationMax   Aggregation = "max"
	AggregationMin   Aggregation = "min"
	AggregationSum   Aggregation = "sum"
	AggregationCount Aggregation = "count"
	AggregationP95   Aggregation = "p95"
	AggregationP99   Aggregation = "p99"
)

func (a Aggregation) Valid() bool {
	switch a {
	case AggregationAvg, AggregationMax, AggregationMin, AggregationSum, AggregationCount,
		AggregationP95, AggregationP99:
		return true
	}

	return false
}

// Severity of an alert rule.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}

	return false
}

// RuleStatus is the state of an alert rule.
//
// RuleStatusRecovering is accepted from storage but no transition produces or consumes it.
type RuleStatus string

const (
	RuleStatusOK         RuleStatus = "ok"
	RuleStatusAlerting   RuleStatus = "alerting"
	RuleStatusRecovering RuleStatus = "recovering"
)

func (s RuleStatus) Valid() bool {
	switch s {
	case RuleStatusOK, RuleStatusAlerting, RuleStatusRecovering:
		return true
	}

	return false
}

// AlertStatus is the state of a fired alert.
type AlertStatus string

const (
	AlertStatusFiring   AlertStatus = "firing"
	AlertStatusResolved AlertStatus = "resolved"
)

// ChannelKind selects a notification transport.
type ChannelKind string

const (
	ChannelKindWebhook   ChannelKind = "webhook"
	ChannelKindEmail     ChannelKind = "email"
	ChannelKindSlack     ChannelKind = "slack"
	ChannelKindPagerDuty ChannelKind = "pagerduty"
)

func (k ChannelKind) Valid() bool {
	switch k {
	case ChannelKindWebhook, ChannelKindEmail, ChannelKindSlack, ChannelKindPagerDuty:
		return true
	}

	return false
}

// NotificationStatus tracks delivery of one alert to one channel. sent and failed are terminal.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)
