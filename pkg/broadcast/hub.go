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
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/carverauto/pulse/pkg/logger"
)

const (
	clientBuffer = 64
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
	pongWait     = 60 * time.Second
)

var errHubClosed = errors.New("broadcast hub closed")

type client struct {
	projectID uuid.UUID
	channels  map[Channel]bool
	send      chan []byte
}

func (c *client) wants(ch Channel) bool {
	return len(c.channels) == 0 || c.channels[ch]
}

// Hub fans events out to websocket clients of the event's project.
// A client whose buffer is full misses the event rather than stalling the sender.
type Hub struct {
	logger   logger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[uuid.UUID]map[*client]struct{}
	closed  bool

	dropped atomic.Int64
}

// NewHub creates a hub. checkOrigin may be nil to accept every origin.
func NewHub(log logger.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if log == nil {
		log = logger.NewTestLogger()
	}

	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Hub{
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		clients: make(map[uuid.UUID]map[*client]struct{}),
	}
}

// Broadcast queues ev for every matching client. It never blocks.
func (h *Hub) Broadcast(_ context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return errHubClosed
	}

	for c := range h.clients[ev.ProjectID] {
		if !c.wants(ev.Channel) {
			continue
		}

		select {
		case c.send <- payload:
		default:
			h.dropped.Add(1)
		}
	}

	return nil
}

func (h *Hub) register(projectID uuid.UUID, channels []Channel) (*client, error) {
	c := &client{
		projectID: projectID,
		channels:  make(map[Channel]bool, len(channels)),
		send:      make(chan []byte, clientBuffer),
	}

	for _, ch := range channels {
		c.channels[ch] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, errHubClosed
	}

	set, ok := h.clients[projectID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[projectID] = set
	}

	set[c] = struct{}{}

	return c, nil
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[c.projectID]
	if _, ok := set[c]; !ok {
		return
	}

	delete(set, c)
	close(c.send)

	if len(set) == 0 {
		delete(h.clients, c.projectID)
	}
}

// Clients returns the number of connected clients for a project.
func (h *Hub) Clients(projectID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[projectID])
}

// Dropped returns how many per-client deliveries were skipped because a buffer was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// ServeWS upgrades the request and streams the project's events until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, projectID uuid.UUID, channels []Channel) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Failed to upgrade to WebSocket")
		return
	}

	c, err := h.register(projectID, channels)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(writeWait))
		_ = conn.Close()

		return
	}

	h.logger.Debug().
		Str("project_id", projectID.String()).
		Str("remote_addr", r.RemoteAddr).
		Msg("Live client connected")

	go h.readPump(conn, c)
	h.writePump(conn, c)

	h.logger.Debug().
		Str("project_id", projectID.String()).
		Str("remote_addr", r.RemoteAddr).
		Msg("Live client disconnected")
}

// readPump discards client messages and unregisters on disconnect.
func (h *Hub) readPump(conn *websocket.Conn, c *client) {
	defer h.unregister(c)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true

	for _, set := range h.clients {
		for c := range set {
			close(c.send)
		}
	}

	h.clients = make(map[uuid.UUID]map[*client]struct{})
}

var _ Broadcaster = (*Hub)(nil)
