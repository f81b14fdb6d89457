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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/pulse/pkg/logger"
	"github.com/carverauto/pulse/pkg/models"
)

func serveHub(t *testing.T, hub *Hub, projectID uuid.UUID, channels ...Channel) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, projectID, channels)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return hub.Clients(projectID) > 0 }, 2*time.Second, 10*time.Millisecond)

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))

	return ev
}

func TestHubDeliversProjectEvents(t *testing.T) {
	t.Parallel()

	hub := NewHub(logger.NewTestLogger(), nil)
	defer hub.Close()

	project := uuid.New()
	conn := serveHub(t, hub, project)

	dur := 12.5
	trace := &models.Trace{ID: uuid.New(), ProjectID: project, TraceID: "t-1", Name: "GET /", DurationMs: &dur}

	require.NoError(t, hub.Broadcast(context.Background(), Event{Channel: ChannelMetrics, ProjectID: uuid.New(), Type: TypeTrace}))
	require.NoError(t, hub.Broadcast(context.Background(), TraceEvent(trace)))

	ev := readEvent(t, conn)
	assert.Equal(t, TypeTrace, ev.Type)
	assert.Equal(t, project, ev.ProjectID)
	assert.Equal(t, "t-1", ev.Data["trace_id"])
}

func TestHubFiltersChannels(t *testing.T) {
	t.Parallel()

	hub := NewHub(logger.NewTestLogger(), nil)
	defer hub.Close()

	project := uuid.New()
	conn := serveHub(t, hub, project, ChannelAlerts)

	rule := &models.AlertRule{ID: uuid.New(), ProjectID: project, Name: "errors"}

	require.NoError(t, hub.Broadcast(context.Background(), TraceEvent(&models.Trace{ProjectID: project})))
	require.NoError(t, hub.Broadcast(context.Background(), AlertResolved(rule)))

	ev := readEvent(t, conn)
	assert.Equal(t, TypeAlertResolved, ev.Type)
	assert.Equal(t, "errors", ev.Data["name"])
}

func TestHubDropsWhenClientBufferFull(t *testing.T) {
	t.Parallel()

	hub := NewHub(logger.NewTestLogger(), nil)
	defer hub.Close()

	project := uuid.New()

	// Registered but never drained.
	_, err := hub.register(project, nil)
	require.NoError(t, err)

	for i := 0; i < clientBuffer+5; i++ {
		require.NoError(t, hub.Broadcast(context.Background(), Event{ProjectID: project, Type: TypeTrace}))
	}

	assert.Equal(t, int64(5), hub.Dropped())
}

func TestHubRejectsAfterClose(t *testing.T) {
	t.Parallel()

	hub := NewHub(logger.NewTestLogger(), nil)
	hub.Close()

	require.ErrorIs(t, hub.Broadcast(context.Background(), Event{ProjectID: uuid.New()}), errHubClosed)

	_, err := hub.register(uuid.New(), nil)
	require.ErrorIs(t, err, errHubClosed)
}

func TestRelayForwardsNATSEvents(t *testing.T) {
	t.Parallel()

	srv, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)

	go srv.Start()
	defer srv.Shutdown()

	require.True(t, srv.ReadyForConnections(10*time.Second))

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)
	defer nc.Close()

	hub := NewHub(logger.NewTestLogger(), nil)
	defer hub.Close()

	project := uuid.New()
	conn := serveHub(t, hub, project)

	relay := NewRelay(nc, hub, logger.NewTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = relay.Start(ctx) }()

	require.Eventually(t, func() bool {
		relay.mu.Lock()
		defer relay.mu.Unlock()

		return relay.sub != nil
	}, 2*time.Second, 10*time.Millisecond)

	pub := NewNATSPublisher(nc)
	alert := &models.Alert{ID: uuid.New(), ProjectID: project, Severity: models.SeverityCritical, TriggeredAt: time.Now()}
	require.NoError(t, pub.Broadcast(ctx, AlertFiring(alert, "p95 too high")))
	require.NoError(t, nc.Flush())

	ev := readEvent(t, conn)
	assert.Equal(t, TypeAlertFiring, ev.Type)
	assert.Equal(t, "p95 too high", ev.Data["rule_name"])

	require.NoError(t, relay.Stop(context.Background()))
}
