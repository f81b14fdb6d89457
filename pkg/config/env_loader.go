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

package config

import (
	"context"
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/carverauto/pulse/pkg/logger"
)

// EnvConfigLoader overlays environment variables on an already loaded
// Config. Unset variables leave the file values alone.
type EnvConfigLoader struct {
	logger logger.Logger
}

func (e *EnvConfigLoader) Load(_ context.Context, _ string, dst *Config) error {
	if err := env.Parse(dst); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if e.logger != nil {
		e.logger.Debug().Msg("Applied environment overrides")
	}

	return nil
}
