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

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/panjf2000/ants/v2"

	"github.com/carverauto/pulse/pkg/jobs"
	"github.com/carverauto/pulse/pkg/lifecycle"
	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
	"github.com/carverauto/pulse/pkg/natsutil"
)

const defaultRetryDelay = 5 * time.Second

// Config configures the job consumer.
type Config struct {
	NATS       models.NATSConfig
	PoolSize   int
	FetchBatch int
}

type connectFunc func(ctx context.Context) (*nats.Conn, jetstream.JetStream, *Consumer, error)

// Service consumes the pulse job stream, reconnecting when the connection drops.
type Service struct {
	cfg            Config
	processor      MessageProcessor
	pool           *ants.Pool
	logger         logger.Logger
	connectFactory connectFunc
	retryDelay     time.Duration

	mu sync.Mutex
	nc *nats.Conn
}

// NewService builds the consumer service and its goroutine pool.
func NewService(cfg Config, proc MessageProcessor, log logger.Logger) (*Service, error) {
	if log == nil {
		log = logger.NewTestLogger()
	}

	size := cfg.PoolSize
	if size <= 0 {
		size = 16
	}

	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p interface{}) {
		log.Error().Interface("panic", p).Msg("Worker job panicked")
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	s := &Service{
		cfg:        cfg,
		processor:  proc,
		pool:       pool,
		logger:     log,
		retryDelay: defaultRetryDelay,
	}
	s.connectFactory = s.connect

	return s, nil
}

func (s *Service) connect(ctx context.Context) (*nats.Conn, jetstream.JetStream, *Consumer, error) {
	nc, err := natsutil.ConnectWithSecurity(s.cfg.NATS.URL, s.cfg.NATS.Security, s.logger)
	if err != nil {
		return nil, nil, nil, err
	}

	js, err := natsutil.NewJetStream(nc, s.cfg.NATS.Domain)
	if err != nil {
		nc.Close()
		return nil, nil, nil, err
	}

	if _, err = natsutil.EnsureStream(ctx, js, s.cfg.NATS.StreamName, []string{jobs.SubjectWildcard}); err != nil {
		nc.Close()
		return nil, nil, nil, err
	}

	consumer, err := NewConsumer(ctx, js, s.cfg.NATS.StreamName, s.cfg.NATS.ConsumerName, nil, s.logger)
	if err != nil {
		nc.Close()
		return nil, nil, nil, err
	}

	if s.cfg.FetchBatch > 0 {
		consumer.batchSize = s.cfg.FetchBatch
	}

	return nc, js, consumer, nil
}

// Start consumes until ctx is cancelled. Connection failures are retried after a delay.
func (s *Service) Start(ctx context.Context) error {
	if s.pool == nil {
		return errPoolRequired
	}

	for {
		nc, _, consumer, err := s.connectFactory(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			s.logger.Warn().Err(err).Dur("retry_in", s.retryDelay).Msg("Failed to connect job consumer")

			if !sleepCtx(ctx, s.retryDelay) {
				return nil
			}

			continue
		}

		s.setConn(nc)

		s.logger.Info().
			Str("stream", s.cfg.NATS.StreamName).
			Str("consumer", s.cfg.NATS.ConsumerName).
			Msg("Job consumer started")

		err = consumer.ProcessMessages(ctx, s.processor, s.pool)

		s.closeConn()

		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil
		}

		s.logger.Warn().Err(err).Dur("retry_in", s.retryDelay).Msg("Job consumer stopped, reconnecting")

		if !sleepCtx(ctx, s.retryDelay) {
			return nil
		}
	}
}

// Stop closes the connection and waits for in-flight jobs.
func (s *Service) Stop(ctx context.Context) error {
	s.closeConn()

	if s.pool != nil {
		if err := s.pool.ReleaseTimeout(stopTimeout(ctx)); err != nil {
			s.logger.Warn().Err(err).Msg("Worker pool did not drain before timeout")
		}
	}

	s.logger.Info().Msg("Job consumer stopped")

	return nil
}

func stopTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
	}

	return 10 * time.Second
}

func (s *Service) setConn(nc *nats.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nc = nc
}

func (s *Service) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nc != nil {
		s.nc.Close()
		s.nc = nil
	}
}

var _ lifecycle.Service = (*Service)(nil)
