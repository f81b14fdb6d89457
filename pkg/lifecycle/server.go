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

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/pulse/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

// Service is anything RunServer can drive. Start blocks until ctx is
// cancelled or the service fails.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type ServerOptions struct {
	ServiceName     string
	Service         Service
	Logger          logger.Logger
	ShutdownTimeout time.Duration
	// Signals overrides SIGINT/SIGTERM, mainly for tests.
	Signals []os.Signal
}

var errNoService = errors.New("lifecycle: no service configured")

// RunServer starts the service and blocks until it exits, the parent
// context ends, or a termination signal arrives. Stop always runs.
func RunServer(ctx context.Context, opts *ServerOptions) error {
	if opts == nil || opts.Service == nil {
		return errNoService
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewTestLogger()
	}

	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}

	runCtx, stopSignals := signal.NotifyContext(ctx, signals...)
	defer stopSignals()

	errCh := make(chan error, 1)

	go func() {
		errCh <- opts.Service.Start(runCtx)
	}()

	log.Info().Str("service", opts.ServiceName).Msg("Service started")

	var runErr error

	select {
	case <-runCtx.Done():
		log.Info().Str("service", opts.ServiceName).Msg("Shutdown requested")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("%s: %w", opts.ServiceName, err)
		}
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := opts.Service.Stop(stopCtx); err != nil {
		log.Error().Err(err).Str("service", opts.ServiceName).Msg("Service stop failed")
		runErr = errors.Join(runErr, fmt.Errorf("stop %s: %w", opts.ServiceName, err))
	}

	log.Info().Str("service", opts.ServiceName).Msg("Service stopped")

	return runErr
}
