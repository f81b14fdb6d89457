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

package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

const (
	defaultServiceName    = "pulse"
	defaultServiceVersion = "1.0.0"
	defaultBatchTimeout   = 5 * time.Second
)

// Config controls the zerolog output and the optional OTLP log export.
type Config struct {
	Level      string     `json:"level" env:"LOG_LEVEL"`
	Debug      bool       `json:"debug" env:"DEBUG"`
	Output     string     `json:"output" env:"LOG_OUTPUT"`
	TimeFormat string     `json:"time_format" env:"LOG_TIME_FORMAT"`
	OTel       OTelConfig `json:"otel"`
}

type OTelConfig struct {
	Enabled      bool              `json:"enabled" env:"OTEL_LOGS_ENABLED"`
	Endpoint     string            `json:"endpoint" env:"OTEL_EXPORTER_OTLP_LOGS_ENDPOINT"`
	Headers      map[string]string `json:"headers" env:"OTEL_EXPORTER_OTLP_LOGS_HEADERS" envKeyValSeparator:"="`
	ServiceName  string            `json:"service_name" env:"OTEL_SERVICE_NAME"`
	BatchTimeout Duration          `json:"batch_timeout" env:"OTEL_EXPORTER_OTLP_LOGS_TIMEOUT"`
	Insecure     bool              `json:"insecure" env:"OTEL_EXPORTER_OTLP_LOGS_INSECURE"`
	TLS          *TLSConfig        `json:"tls,omitempty"`
}

type TLSConfig struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	CAFile   string `json:"ca_file,omitempty"`
}

// Duration accepts "5s" style strings or integer nanoseconds in JSON.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		return d.UnmarshalText([]byte(value))
	default:
		return fmt.Errorf("%w: %v", errInvalidDuration, v)
	}

	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidDuration, err)
	}

	*d = Duration(parsed)

	return nil
}

func defaultConfig() *Config {
	return &Config{
		Level:  "info",
		Output: "stdout",
		OTel: OTelConfig{
			ServiceName:  defaultServiceName,
			BatchTimeout: Duration(defaultBatchTimeout),
		},
	}
}

// DefaultConfig overlays the logging environment on the defaults. An
// unparseable environment falls back to plain defaults instead of failing.
func DefaultConfig() *Config {
	cfg := defaultConfig()
	if err := env.Parse(cfg); err != nil {
		return defaultConfig()
	}

	return cfg
}

// ApplyDefaults fills zero values left by a partial config file.
func (c *Config) ApplyDefaults() {
	d := defaultConfig()

	if c.Level == "" {
		c.Level = d.Level
	}

	if c.Output == "" {
		c.Output = d.Output
	}

	if c.OTel.ServiceName == "" {
		c.OTel.ServiceName = d.OTel.ServiceName
	}

	if c.OTel.BatchTimeout == 0 {
		c.OTel.BatchTimeout = d.OTel.BatchTimeout
	}
}

// ParseLevel resolves the effective level. Debug wins over Level.
func (c *Config) ParseLevel() (zerolog.Level, error) {
	if c.Debug {
		return zerolog.DebugLevel, nil
	}

	if c.Level == "" {
		return zerolog.InfoLevel, nil
	}

	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("parse log level %q: %w", c.Level, err)
	}

	return level, nil
}

// Writer returns the console sink selected by Output.
func (c *Config) Writer() io.Writer {
	if c.Output == "stderr" {
		return os.Stderr
	}

	return os.Stdout
}
