package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-elements/pkg/models"
	"github.com/mattsolo1/grove-elements/pkg/relay"
)

// HubSettings tunes the push hub connections.
type HubSettings struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	SendBufferSize int
}

func DefaultHubSettings() *HubSettings {
	return &HubSettings{
		WriteTimeout:   5 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   20 * time.Second,
		SendBufferSize: 32,
	}
}

// SnapshotFunc returns the current collection for initialData replies.
type SnapshotFunc func(ctx context.Context) (*models.Collection, error)

// Hub fans server events out to every connected push client and relays
// client notifications to the other clients. Delivery is best-effort: a
// client whose buffer is full misses the frame.
type Hub struct {
	log      logrus.FieldLogger
	settings *HubSettings
	snapshot SnapshotFunc
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*hubConn]struct{}
	closed bool
}

type hubConn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. snapshot may be nil, in which case initialData
// carries no payload.
func NewHub(log logrus.FieldLogger, snapshot SnapshotFunc, settings *HubSettings) *Hub {
	if settings == nil {
		settings = DefaultHubSettings()
	}
	return &Hub{
		log:      log,
		settings: settings,
		snapshot: snapshot,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*hubConn]struct{}),
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// ServeHTTP upgrades the request and serves the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("push upgrade failed")
		return
	}

	c := &hubConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, h.settings.SendBufferSize),
	}
	if !h.register(c) {
		ws.Close()
		return
	}
	log := h.log.WithField("conn", c.id)
	log.Debug("push client connected")

	go h.writeLoop(c)
	h.readLoop(r.Context(), c)

	h.unregister(c)
	log.Debug("push client disconnected")
}

// Broadcast sends event to every client.
func (h *Hub) Broadcast(event string, payload any) {
	h.broadcast(nil, event, payload)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.conns {
		delete(h.conns, c)
		close(c.send)
	}
}

func (h *Hub) register(c *hubConn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *hubConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(except *hubConn, event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("encode push frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		if c == except {
			continue
		}
		select {
		case c.send <- frame:
		default:
			h.log.WithFields(logrus.Fields{"conn": c.id, "event": event}).Warn("push buffer full, dropping frame")
		}
	}
}

func (h *Hub) sendTo(c *hubConn, event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.log.WithError(err).WithField("event", event).Error("encode push frame")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
		h.log.WithFields(logrus.Fields{"conn": c.id, "event": event}).Warn("push buffer full, dropping frame")
	}
}

func (h *Hub) readLoop(ctx context.Context, c *hubConn) {
	c.ws.SetReadLimit(1 << 20)
	c.ws.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout))
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout))
		if messageType != websocket.TextMessage {
			continue
		}

		var msg relay.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.WithError(err).WithField("conn", c.id).Debug("bad push frame")
			continue
		}
		h.handle(ctx, c, msg)
	}
}

func (h *Hub) handle(ctx context.Context, c *hubConn, msg relay.Message) {
	switch msg.Event {
	case relay.EventRequestInitialData:
		var payload any
		if h.snapshot != nil {
			snap, err := h.snapshot(ctx)
			if err != nil {
				h.log.WithError(err).Warn("snapshot for initialData")
			} else {
				payload = snap
			}
		}
		h.sendTo(c, relay.EventInitialData, payload)
	case relay.EventCreateItem:
		h.broadcast(c, relay.EventItemCreated, msg.Data)
	case relay.EventCreateFolder:
		h.broadcast(c, relay.EventFolderCreated, msg.Data)
	case relay.EventUpdateElement:
		var notice relay.UpdateNotice
		if err := json.Unmarshal(msg.Data, &notice); err != nil {
			h.log.WithError(err).WithField("conn", c.id).Debug("bad updateElement payload")
			return
		}
		h.broadcast(c, relay.UpdatedEvent(notice.Kind), msg.Data)
	default:
		h.log.WithFields(logrus.Fields{"conn": c.id, "event": msg.Event}).Debug("ignoring push event")
	}
}

func (h *Hub) writeLoop(c *hubConn) {
	ping := time.NewTicker(h.settings.PingInterval)
	defer func() {
		ping.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(h.settings.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.WithError(err).WithField("conn", c.id).Debug("push write")
				return
			}
		case <-ping.C:
			c.ws.SetWriteDeadline(time.Now().Add(h.settings.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	var msg relay.Message
	if raw, ok := payload.(json.RawMessage); ok {
		msg = relay.Message{Event: event, Data: raw}
	} else {
		var err error
		msg, err = relay.NewMessage(event, payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(msg)
}
