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

// Package notify delivers alert notifications to webhook, Slack, PagerDuty
// and email channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

//go:generate mockgen -destination=mock_notify.go -package=notify github.com/carverauto/pulse/pkg/notify Store,Transport

// Store is the notification persistence. *db.DB satisfies it.
type Store interface {
	GetNotificationDelivery(ctx context.Context, id uuid.UUID) (*models.NotificationDelivery, error)
	MarkNotificationSent(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	MarkNotificationFailed(ctx context.Context, id uuid.UUID, msg string, at time.Time) (bool, error)
}

// Transport delivers one notification over one channel kind.
type Transport interface {
	Deliver(ctx context.Context, d *models.NotificationDelivery) error
}

// Breaker settings per channel.
const (
	breakerTrips   = 5
	breakerTimeout = time.Minute
)

// Dispatcher sends pending notifications. Each channel gets its own circuit
// breaker so a dead endpoint fails fast instead of holding workers.
type Dispatcher struct {
	store      Store
	transports map[models.ChannelKind]Transport
	logger     logger.Logger
	now        func() time.Time

	mu       sync.Mutex
	breakers map[uuid.UUID]*gobreaker.CircuitBreaker
}

// NewDispatcher builds a dispatcher over the given transports.
func NewDispatcher(store Store, transports map[models.ChannelKind]Transport, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:      store,
		transports: transports,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
		breakers:   make(map[uuid.UUID]*gobreaker.CircuitBreaker),
	}
}

// Send delivers one notification. It does nothing when the notification is
// no longer pending. A delivery failure marks the notification failed and
// bumps the channel's failure counter; it is not returned as an error and is
// never retried. Errors are returned only when the store itself fails.
func (d *Dispatcher) Send(ctx context.Context, notificationID uuid.UUID) error {
	delivery, err := d.store.GetNotificationDelivery(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("load notification %s: %w", notificationID, err)
	}

	if delivery.Notification.Status != models.NotificationPending {
		d.logger.Debug().
			Str("notification_id", notificationID.String()).
			Str("status", string(delivery.Notification.Status)).
			Msg("Notification already finished, skipping")

		return nil
	}

	deliverErr := d.deliver(ctx, delivery)
	now := d.now()

	if deliverErr != nil {
		if _, err := d.store.MarkNotificationFailed(ctx, notificationID, deliverErr.Error(), now); err != nil {
			return err
		}

		deliveries.WithLabelValues(string(delivery.Channel.Kind), resultFailed).Inc()
		d.logger.Error().
			Err(deliverErr).
			Str("notification_id", notificationID.String()).
			Str("channel", delivery.Channel.Name).
			Msg("Failed to send notification")

		return nil
	}

	if _, err := d.store.MarkNotificationSent(ctx, notificationID, now); err != nil {
		return err
	}

	deliveries.WithLabelValues(string(delivery.Channel.Kind), resultSent).Inc()
	d.logger.Info().
		Str("notification_id", notificationID.String()).
		Str("channel", delivery.Channel.Name).
		Msg("Notification sent")

	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, delivery *models.NotificationDelivery) error {
	transport, ok := d.transports[delivery.Channel.Kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoTransport, delivery.Channel.Kind)
	}

	_, err := d.breaker(delivery.Channel).Execute(func() (interface{}, error) {
		return nil, transport.Deliver(ctx, delivery)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("channel %s unavailable: %w", delivery.Channel.Name, err)
	}

	return err
}

func (d *Dispatcher) breaker(ch *models.NotificationChannel) *gobreaker.CircuitBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cb, ok := d.breakers[ch.ID]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        ch.ID.String(),
		MaxRequests: 1,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			d.logger.Warn().
				Str("channel_id", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Notification channel breaker changed state")
		},
	})
	d.breakers[ch.ID] = cb

	return cb
}
