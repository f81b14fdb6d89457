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

package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/carverauto/pulse/pkg/lifecycle"
	"github.com/carverauto/pulse/pkg/logger"
)

type namedService struct {
	name string
	svc  lifecycle.Service
}

// group runs several services as one. The first failure cancels the rest;
// Stop unwinds them in reverse order of registration.
type group struct {
	log      logger.Logger
	services []namedService
	stops    []func()
	cleanup  func()
}

func (g *group) add(name string, svc lifecycle.Service) {
	g.services = append(g.services, namedService{name: name, svc: svc})
}

func (g *group) onStop(fn func()) {
	g.stops = append(g.stops, fn)
}

func (g *group) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	for _, s := range g.services {
		eg.Go(func() error {
			if err := s.svc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("%s: %w", s.name, err)
			}

			return nil
		})
	}

	return eg.Wait()
}

func (g *group) Stop(ctx context.Context) error {
	var errs []error

	for i := len(g.services) - 1; i >= 0; i-- {
		s := g.services[i]

		if err := s.svc.Stop(ctx); err != nil {
			g.log.Warn().Err(err).Str("service", s.name).Msg("Service stop failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}

	for _, fn := range g.stops {
		fn()
	}

	if g.cleanup != nil {
		g.cleanup()
	}

	return errors.Join(errs...)
}

// runFunc adapts a blocking function to lifecycle.Service.
type runFunc func(ctx context.Context) error

func (f runFunc) Start(ctx context.Context) error { return f(ctx) }
func (runFunc) Stop(context.Context) error        { return nil }

// blockingService keeps Start of a background service open until ctx ends.
type blockingService struct {
	lifecycle.Service
}

func blockUntilDone(svc lifecycle.Service) lifecycle.Service {
	return blockingService{Service: svc}
}

func (b blockingService) Start(ctx context.Context) error {
	if err := b.Service.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	return nil
}
