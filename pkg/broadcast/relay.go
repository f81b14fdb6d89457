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

package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/pulse/pkg/logger"
)

// SubjectPrefix scopes live events on core NATS; the project id is the last token.
const SubjectPrefix = "pulse.live."

// Subject returns the subject an event is published on.
func Subject(ev Event) string {
	return SubjectPrefix + ev.ProjectID.String()
}

// NATSPublisher forwards events to core NATS so processes without a websocket hub
// (the worker) can reach dashboard clients.
type NATSPublisher struct {
	nc *nats.Conn
}

func NewNATSPublisher(nc *nats.Conn) *NATSPublisher {
	return &NATSPublisher{nc: nc}
}

func (p *NATSPublisher) Broadcast(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode live event: %w", err)
	}

	if err := p.nc.Publish(Subject(ev), data); err != nil {
		return fmt.Errorf("failed to publish live event: %w", err)
	}

	return nil
}

// Relay feeds events published on NATS into a local broadcaster.
type Relay struct {
	nc     *nats.Conn
	target Broadcaster
	logger logger.Logger

	mu  sync.Mutex
	sub *nats.Subscription
}

func NewRelay(nc *nats.Conn, target Broadcaster, log logger.Logger) *Relay {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Relay{nc: nc, target: target, logger: log}
}

// Start subscribes and blocks until ctx ends.
func (r *Relay) Start(ctx context.Context) error {
	sub, err := r.nc.Subscribe(SubjectPrefix+"*", func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			r.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("Dropping malformed live event")
			return
		}

		if err := r.target.Broadcast(ctx, ev); err != nil {
			r.logger.Debug().Err(err).Msg("Live relay broadcast failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to live events: %w", err)
	}

	r.mu.Lock()
	r.sub = sub
	r.mu.Unlock()

	<-ctx.Done()

	return nil
}

// Stop drops the subscription.
func (r *Relay) Stop(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sub == nil {
		return nil
	}

	err := r.sub.Unsubscribe()
	r.sub = nil

	if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
		return nil
	}

	return err
}

var _ Broadcaster = (*NATSPublisher)(nil)
