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
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

var errTestFixture = errors.New("fixture error")

func TestEnsureSubjectList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		subjects []string
		subject  string
		want     []string
	}{
		{
			name:    "adds subject when list empty",
			subject: "pulse.jobs.aggregate",
			want:    []string{"pulse.jobs.aggregate"},
		},
		{
			name:     "keeps list when wildcard matches",
			subjects: []string{"pulse.jobs.*"},
			subject:  "pulse.jobs.aggregate",
			want:     []string{"pulse.jobs.*"},
		},
		{
			name:     "keeps list when greater wildcard matches",
			subjects: []string{"pulse.>"},
			subject:  "pulse.jobs.notify",
			want:     []string{"pulse.>"},
		},
		{
			name:     "appends when unmatched",
			subjects: []string{"pulse.live.*"},
			subject:  "pulse.jobs.notify",
			want:     []string{"pulse.live.*", "pulse.jobs.notify"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ensureSubjectList(append([]string(nil), tc.subjects...), tc.subject)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pattern  string
		subject  string
		expected bool
	}{
		{"exact match", "pulse.jobs.aggregate", "pulse.jobs.aggregate", true},
		{"single wildcard", "pulse.*.aggregate", "pulse.jobs.aggregate", true},
		{"greater wildcard", "pulse.>", "pulse.jobs.aggregate", true},
		{"greater wildcard needs a token", "pulse.jobs.>", "pulse.jobs", false},
		{"no match length", "pulse.*", "pulse.jobs.aggregate", false},
		{"no match tokens", "pulse.live.*", "pulse.jobs.aggregate", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, matchesSubject(tc.pattern, tc.subject))
		})
	}
}

func TestIsStreamMissingErr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"jetstream no stream response", jetstream.ErrNoStreamResponse, true},
		{"jetstream stream not found", jetstream.ErrStreamNotFound, true},
		{"nats stream not found", nats.ErrStreamNotFound, true},
		{"nats no responders", nats.ErrNoResponders, true},
		{"other error", errTestFixture, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, isStreamMissingErr(tc.err))
		})
	}
}

func TestTLSConfigRequiresMTLS(t *testing.T) {
	t.Parallel()

	_, err := TLSConfig(nil)
	require.ErrorIs(t, err, ErrMTLSRequired)

	_, err = TLSConfig(&models.SecurityConfig{Mode: "none"})
	require.ErrorIs(t, err, ErrMTLSRequired)

	_, err = TLSConfig(&models.SecurityConfig{Mode: "mtls", TLS: models.TLSConfig{CertFile: "/missing.pem"}})
	require.Error(t, err)
}

func TestEnsureStreamAndPublish(t *testing.T) {
	t.Parallel()

	srv := runJetStreamServer(t)
	defer srv.Shutdown()

	nc, err := ConnectWithSecurity(srv.ClientURL(), nil, logger.NewTestLogger())
	require.NoError(t, err)
	defer nc.Close()

	js, err := NewJetStream(nc, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err = EnsureStream(ctx, js, "PULSE_TEST", []string{"pulse.jobs.aggregate"})
	require.NoError(t, err)

	// A second call widens the subject list instead of failing.
	stream, err := EnsureStream(ctx, js, "PULSE_TEST", []string{"pulse.jobs.aggregate", "pulse.jobs.notify"})
	require.NoError(t, err)

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"pulse.jobs.aggregate", "pulse.jobs.notify"}, info.Config.Subjects)

	pub := NewPublisher(js, logger.NewTestLogger())
	require.NoError(t, pub.Publish(ctx, "pulse.jobs.notify", []byte(`{}`), "job-1"))
	require.NoError(t, pub.Publish(ctx, "pulse.jobs.notify", []byte(`{}`), "job-1"))

	info, err = stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs, "duplicate message id should be dropped")
}

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	opts := &server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	}

	srv, err := server.NewServer(opts)
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, func() bool {
		return srv.JetStreamEnabled()
	}, 5*time.Second, 50*time.Millisecond, "embedded NATS server not ready for JetStream")

	return srv
}
