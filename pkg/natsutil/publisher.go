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

package natsutil

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/pulse/pkg/logger"
)

// Publisher writes raw payloads to JetStream subjects.
type Publisher struct {
	js     jetstream.JetStream
	logger logger.Logger
}

func NewPublisher(js jetstream.JetStream, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Publisher{js: js, logger: log}
}

// Publish sends data to subject. A non-empty msgID lets the stream drop duplicates
// inside its dedup window.
func (p *Publisher) Publish(ctx context.Context, subject string, data []byte, msgID string) error {
	var opts []jetstream.PublishOpt
	if msgID != "" {
		opts = append(opts, jetstream.WithMsgID(msgID))
	}

	ack, err := p.js.Publish(ctx, subject, data, opts...)
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("stream", ack.Stream).
		Uint64("seq", ack.Sequence).
		Bool("duplicate", ack.Duplicate).
		Msg("Published message")

	return nil
}
