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

	"github.com/carverauto/pulse/pkg/logger"
)

const (
	defaultMaxPullMessages = 50
	defaultPullExpiry      = 5 * time.Second
	defaultMaxRetries      = 3
	fetchErrorBackoff      = time.Second
)

// MessageProcessor handles one message payload.
type MessageProcessor interface {
	Process(ctx context.Context, data []byte) error
}

type pullConsumer interface {
	Fetch(batch int, opts ...jetstream.FetchOpt) (jetstream.MessageBatch, error)
}

// Consumer wraps a JetStream pull consumer.
type Consumer struct {
	streamName   string
	consumerName string
	consumer     pullConsumer
	batchSize    int
	fetchWait    time.Duration
	logger       logger.Logger
}

// NewConsumer creates or retrieves a durable pull consumer for the given stream.
func NewConsumer(
	ctx context.Context, js jetstream.JetStream, streamName, consumerName string, subjects []string, log logger.Logger,
) (*Consumer, error) {
	log.Info().
		Str("stream", streamName).
		Str("consumer", consumerName).
		Strs("subjects", subjects).
		Msg("Creating/getting pull consumer")

	consumer, err := js.Consumer(ctx, streamName, consumerName)
	if err != nil {
		cfg := jetstream.ConsumerConfig{
			Durable:       consumerName,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    defaultMaxRetries,
			MaxAckPending: 1000,
		}

		if len(subjects) == 1 {
			cfg.FilterSubject = subjects[0]
		} else if len(subjects) > 1 {
			cfg.FilterSubjects = subjects
		}

		consumer, err = js.CreateConsumer(ctx, streamName, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	return &Consumer{
		streamName:   streamName,
		consumerName: consumerName,
		consumer:     consumer,
		batchSize:    defaultMaxPullMessages,
		fetchWait:    defaultPullExpiry,
		logger:       log,
	}, nil
}

// ProcessMessages fetches batches and fans each message out to pool until ctx ends or
// the connection is lost. Fatal fetch errors are returned so the caller can reconnect.
func (c *Consumer) ProcessMessages(ctx context.Context, proc MessageProcessor, pool *ants.Pool) error {
	c.logger.Info().
		Str("stream", c.streamName).
		Str("consumer", c.consumerName).
		Msg("Starting pull consumer")

	batchSize := c.batchSize
	if batchSize <= 0 {
		batchSize = defaultMaxPullMessages
	}

	wait := c.fetchWait
	if wait <= 0 {
		wait = defaultPullExpiry
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msgs, err := c.consumer.Fetch(batchSize, jetstream.FetchMaxWait(wait))
		if err != nil {
			if isFatalFetchErr(err) {
				return err
			}

			fetchErrorsTotal.Inc()
			c.logger.Warn().Err(err).Msg("Failed to fetch messages")

			if !sleepCtx(ctx, fetchErrorBackoff) {
				return ctx.Err()
			}

			continue
		}

		var wg sync.WaitGroup

		for msg := range msgs.Messages() {
			c.dispatch(ctx, &wg, pool, proc, msg)
		}

		wg.Wait()

		if fetchErr := msgs.Error(); fetchErr != nil && !errors.Is(fetchErr, nats.ErrTimeout) {
			if isFatalFetchErr(fetchErr) {
				return fetchErr
			}

			c.logger.Debug().Err(fetchErr).Msg("Fetch ended with error")
		}
	}
}

func (c *Consumer) dispatch(
	ctx context.Context, wg *sync.WaitGroup, pool *ants.Pool, proc MessageProcessor, msg jetstream.Msg,
) {
	wg.Add(1)

	err := pool.Submit(func() {
		defer wg.Done()
		c.handleMessage(ctx, proc, msg)
	})
	if err != nil {
		wg.Done()
		c.logger.Warn().Err(err).Str("subject", msg.Subject()).Msg("Worker pool rejected message")

		_ = msg.Nak()
	}
}

func (c *Consumer) handleMessage(ctx context.Context, proc MessageProcessor, msg jetstream.Msg) {
	err := proc.Process(ctx, msg.Data())
	if err == nil {
		_ = msg.Ack()
		return
	}

	if errors.Is(err, ErrPoisonMessage) {
		c.logger.Error().Err(err).Str("subject", msg.Subject()).Msg("Dropping malformed message")

		_ = msg.Term()

		return
	}

	var delivered uint64

	if md, mdErr := msg.Metadata(); mdErr == nil && md != nil {
		delivered = md.NumDelivered
	}

	if delivered >= defaultMaxRetries {
		c.logger.Error().Err(err).
			Str("subject", msg.Subject()).
			Uint64("deliveries", delivered).
			Msg("Giving up on message after max deliveries")

		_ = msg.Ack()

		return
	}

	c.logger.Warn().Err(err).
		Str("subject", msg.Subject()).
		Uint64("deliveries", delivered).
		Msg("Message processing failed, will retry")

	_ = msg.Nak()
}

func isFatalFetchErr(err error) bool {
	return errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, jetstream.ErrConsumerDeleted) ||
		errors.Is(err, jetstream.ErrConsumerNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
