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

// Package config loads the pulse process configuration: a JSON file, then
// environment overrides, then defaults and validation.
package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

const (
	DefaultListenAddr        = ":8080"
	DefaultWorkerMetricsAddr = ":9090"
	DefaultRetentionDays     = 30
	DefaultWorkerPoolSize    = 16
	DefaultFetchBatch        = 50
	DefaultAPIKeyCacheTTL    = time.Minute
	DefaultStreamName        = "PULSE_JOBS"
	DefaultConsumerName      = "pulse-worker"
	DefaultNotifyTimeout     = 10 * time.Second
)

var (
	errListenAddrRequired = errors.New("listen_addr is required")
	errDatabaseHost       = errors.New("database.host is required")
	errDatabaseName       = errors.New("database.database is required")
	errNATSURL            = errors.New("nats.url is required")
	errRetentionDays      = errors.New("retention_days must be positive")
	errPoolSize           = errors.New("worker.pool_size must be positive")
)

// Config is the process configuration shared by the api and worker roles.
type Config struct {
	ListenAddr        string              `json:"listen_addr" env:"PULSE_LISTEN_ADDR"`
	WorkerMetricsAddr string              `json:"worker_metrics_addr" env:"PULSE_WORKER_METRICS_ADDR"`
	MasterKey         string              `json:"master_key" env:"PULSE_MASTER_KEY"`
	RetentionDays     int                 `json:"retention_days" env:"DATA_RETENTION_DAYS"`
	APIKeyCacheTTL    models.Duration     `json:"api_key_cache_ttl" env:"PULSE_API_KEY_CACHE_TTL"`
	Database          models.CNPGDatabase `json:"database" envPrefix:"DATABASE_"`
	NATS              models.NATSConfig   `json:"nats" envPrefix:"NATS_"`
	Worker            WorkerConfig        `json:"worker" envPrefix:"PULSE_WORKER_"`
	Schedule          ScheduleConfig      `json:"schedule" envPrefix:"PULSE_SCHEDULE_"`
	SMTP              SMTPConfig          `json:"smtp" envPrefix:"SMTP_"`
	NotifyTimeout     models.Duration     `json:"notify_timeout" env:"PULSE_NOTIFY_TIMEOUT"`
	CORS              models.CORSConfig   `json:"cors" envPrefix:"CORS_"`
	DisableMCP        bool                `json:"disable_mcp" env:"PULSE_DISABLE_MCP"`
	Logging           logger.Config       `json:"logging"`
}

type WorkerConfig struct {
	PoolSize   int `json:"pool_size" env:"POOL_SIZE"`
	FetchBatch int `json:"fetch_batch" env:"FETCH_BATCH"`
}

// ScheduleConfig holds cron specs for the periodic sweeps.
type ScheduleConfig struct {
	AlertEvaluation string `json:"alert_evaluation" env:"ALERTS"`
	PendingNotify   string `json:"pending_notifications" env:"NOTIFICATIONS"`
	HourlyRollup    string `json:"hourly_rollup" env:"HOURLY_ROLLUP"`
	DailyRollup     string `json:"daily_rollup" env:"DAILY_ROLLUP"`
	Retention       string `json:"retention" env:"RETENTION"`
}

type SMTPConfig struct {
	Host     string `json:"host" env:"HOST"`
	Port     int    `json:"port" env:"PORT"`
	Username string `json:"username" env:"USERNAME"`
	Password string `json:"password" env:"PASSWORD"`
	From     string `json:"from" env:"FROM"`
}

// Loader resolves a Config from a file path.
type Loader interface {
	Load(ctx context.Context, path string, dst *Config) error
}

// Load reads path (when non-empty), overlays the environment, fills
// defaults and validates the result.
func Load(ctx context.Context, path string, log logger.Logger) (*Config, error) {
	if log == nil {
		log = logger.NewTestLogger()
	}

	cfg := &Config{}

	if path != "" {
		if err := (&FileConfigLoader{}).Load(ctx, path, cfg); err != nil {
			return nil, err
		}
	}

	if err := (&EnvConfigLoader{logger: log}).Load(ctx, path, cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	normalizeSecurityPaths(cfg, log)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	if c.WorkerMetricsAddr == "" {
		c.WorkerMetricsAddr = DefaultWorkerMetricsAddr
	}

	if c.RetentionDays == 0 {
		c.RetentionDays = DefaultRetentionDays
	}

	if c.APIKeyCacheTTL == 0 {
		c.APIKeyCacheTTL = models.Duration(DefaultAPIKeyCacheTTL)
	}

	if c.NotifyTimeout == 0 {
		c.NotifyTimeout = models.Duration(DefaultNotifyTimeout)
	}

	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}

	if c.Database.ApplicationName == "" {
		c.Database.ApplicationName = "pulse"
	}

	if c.NATS.StreamName == "" {
		c.NATS.StreamName = DefaultStreamName
	}

	if c.NATS.ConsumerName == "" {
		c.NATS.ConsumerName = DefaultConsumerName
	}

	if c.Worker.PoolSize == 0 {
		c.Worker.PoolSize = DefaultWorkerPoolSize
	}

	if c.Worker.FetchBatch == 0 {
		c.Worker.FetchBatch = DefaultFetchBatch
	}

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 25
	}

	c.Schedule.applyDefaults()
	c.Logging.ApplyDefaults()
}

func (s *ScheduleConfig) applyDefaults() {
	if s.AlertEvaluation == "" {
		s.AlertEvaluation = "@every 1m"
	}

	if s.PendingNotify == "" {
		s.PendingNotify = "@every 1m"
	}

	if s.HourlyRollup == "" {
		s.HourlyRollup = "5 * * * *"
	}

	if s.DailyRollup == "" {
		s.DailyRollup = "15 0 * * *"
	}

	if s.Retention == "" {
		s.Retention = "30 3 * * *"
	}
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errListenAddrRequired)
	}

	if c.Database.Host == "" {
		errs = append(errs, errDatabaseHost)
	}

	if c.Database.Database == "" {
		errs = append(errs, errDatabaseName)
	}

	if c.NATS.URL == "" {
		errs = append(errs, errNATSURL)
	}

	if c.RetentionDays <= 0 {
		errs = append(errs, errRetentionDays)
	}

	if c.Worker.PoolSize <= 0 {
		errs = append(errs, errPoolSize)
	}

	return errors.Join(errs...)
}
