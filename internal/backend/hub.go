/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	applog "rockviewer/internal/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
)

// Channels a websocket client can subscribe to.
const (
	ChannelMeasurements = "measurements"
	ChannelAnnotations  = "annotations"
	ChannelSamples      = "samples"
)

// Message types.
const (
	TypeMeasurement = "measurement"
	TypeAnnotation  = "annotation"
	TypeSamples     = "samples"
	TypeSubscribe   = "subscribe"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"
)

// Message is the websocket envelope in both directions.
type Message struct {
	Type      string          `json:"type"`
	Sample    string          `json:"sample,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Channels  []string        `json:"channels,omitempty"`
}

// ChannelFor maps an event type to the channel it is broadcast on.
func ChannelFor(typ string) (string, bool) {
	switch typ {
	case TypeMeasurement:
		return ChannelMeasurements, true
	case TypeAnnotation:
		return ChannelAnnotations, true
	case TypeSamples:
		return ChannelSamples, true
	}
	return "", false
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu   sync.RWMutex
	subs map[string]bool
}

func (c *wsClient) subscribe(channels ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		c.subs[ch] = true
	}
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subs[channel]
}

func (c *wsClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read failed", slog.Any("err", err))
			}
			return
		}
		c.handle(data)
	}
}

func (c *wsClient) handle(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(Message{Type: TypeError, Data: json.RawMessage(`{"code":"invalid_json"}`)})
		return
	}
	switch msg.Type {
	case TypeSubscribe:
		var valid []string
		for _, ch := range msg.Channels {
			switch ch {
			case ChannelMeasurements, ChannelAnnotations, ChannelSamples:
				valid = append(valid, ch)
			}
		}
		if len(valid) == 0 {
			c.reply(Message{Type: TypeError, Data: json.RawMessage(`{"code":"invalid_subscribe"}`)})
			return
		}
		c.subscribe(valid...)
		c.reply(Message{Type: TypeSubscribe, Channels: valid})
	case TypePing:
		c.reply(Message{Type: TypePong})
	default:
		c.hub.log.Debug("unknown websocket message", slog.String("type", msg.Type))
	}
}

// reply queues msg for this client only; a full buffer drops it.
func (c *wsClient) reply(msg Message) {
	msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Hub fans viewer events (measurements, opened annotations, catalog
// changes) out to subscribed websocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]bool

	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	stopOnce   sync.Once
	log        *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		log:        applog.WithComponent("server").With(slog.String("sub", "ws")),
	}
}

// Run serves registrations until Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client connected", slog.Int("clients", n))
		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client disconnected", slog.Int("clients", n))
		}
	}
}

// Stop ends Run and closes every client. It is safe to call twice.
func (h *Hub) Stop() { h.stopOnce.Do(func() { close(h.done) }) }

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish sends msg to every client subscribed to the channel of its type
// and returns how many clients it was queued for. Slow clients whose buffer
// is full are skipped.
func (h *Hub) Publish(msg Message) (int, error) {
	channel, ok := ChannelFor(msg.Type)
	if !ok {
		return 0, &unknownTypeError{typ: msg.Type}
	}
	if msg.Timestamp == "" {
		msg.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if !c.subscribed(channel) {
			continue
		}
		select {
		case c.send <- data:
			n++
		default:
		}
	}
	return n, nil
}

type unknownTypeError struct{ typ string }

func (e *unknownTypeError) Error() string { return "unknown event type " + e.typ }

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}
	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, sendBufferSize), subs: make(map[string]bool)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}
