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

package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/pulse/pkg/logger"
)

const (
	defaultBuffer         = 1024
	defaultPublishTimeout = 5 * time.Second
)

// Publisher is the transport under the dispatcher. natsutil.Publisher implements it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, msgID string) error
}

// Enqueuer is what producers depend on.
type Enqueuer interface {
	Enqueue(job Job) bool
}

// Dispatcher hands jobs to a background publisher without blocking the caller.
// Delivery is best effort: a full buffer or a publish failure is logged and the job dropped.
type Dispatcher struct {
	pub     Publisher
	logger  logger.Logger
	queue   chan Job
	timeout time.Duration

	dropped atomic.Int64
	failed  atomic.Int64

	closeOnce sync.Once
	done      chan struct{}
}

// NewDispatcher creates a dispatcher with the given buffer size. Call Run to start publishing.
func NewDispatcher(pub Publisher, buffer int, log logger.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	if log == nil {
		log = logger.NewTestLogger()
	}

	return &Dispatcher{
		pub:     pub,
		logger:  log,
		queue:   make(chan Job, buffer),
		timeout: defaultPublishTimeout,
		done:    make(chan struct{}),
	}
}

// Enqueue never blocks. It reports whether the job was accepted.
func (d *Dispatcher) Enqueue(job Job) bool {
	select {
	case <-d.done:
		d.drop(job, "dispatcher closed")
		return false
	default:
	}

	select {
	case d.queue <- job:
		return true
	default:
		d.drop(job, "queue full")
		return false
	}
}

func (d *Dispatcher) drop(job Job, reason string) {
	d.dropped.Add(1)
	d.logger.Warn().
		Str("job_id", job.ID).
		Str("job_type", string(job.Type)).
		Str("reason", reason).
		Msg("Dropping job")
}

// Run publishes queued jobs until ctx ends or Close is called, then drains what is buffered.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case <-d.done:
			d.drain()
			return
		case job := <-d.queue:
			d.publish(job)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case job := <-d.queue:
			d.publish(job)
		default:
			return
		}
	}
}

func (d *Dispatcher) publish(job Job) {
	data, err := json.Marshal(job)
	if err != nil {
		d.failed.Add(1)
		d.logger.Error().Err(err).Str("job_id", job.ID).Msg("Failed to encode job")

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.pub.Publish(ctx, job.Subject(), data, job.ID); err != nil {
		d.failed.Add(1)
		d.logger.Warn().Err(err).
			Str("job_id", job.ID).
			Str("job_type", string(job.Type)).
			Msg("Failed to publish job")
	}
}

// Close stops accepting jobs. Run drains the buffer before returning.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.done) })
}

// Dropped returns the number of jobs rejected by Enqueue.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Failed returns the number of jobs that could not be published.
func (d *Dispatcher) Failed() int64 { return d.failed.Load() }

var _ Enqueuer = (*Dispatcher)(nil)
