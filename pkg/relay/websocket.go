package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// DefaultPushURL matches the default listen address of `el serve`.
const DefaultPushURL = "ws://localhost:5023/socket"

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("push channel closed")

// ErrSendBufferFull is returned when a best-effort emit is dropped.
var ErrSendBufferFull = errors.New("push send buffer full")

// Channel is a server-push connection. Implementations own reconnection.
type Channel interface {
	// Connect starts the connection. It does not wait for the first dial.
	Connect(ctx context.Context) error
	// Emit queues an outbound event. Delivery is best-effort.
	Emit(event string, payload any) error
	// Messages delivers inbound frames. It is closed after Close.
	Messages() <-chan Message
	Close() error
}

// Settings tunes the websocket channel.
type Settings struct {
	HandshakeTimeout time.Duration
	ReconnectTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	SendBufferSize   int
	ReceiveBuffer    int
}

func DefaultSettings() *Settings {
	return &Settings{
		HandshakeTimeout: 5 * time.Second,
		ReconnectTimeout: 2 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     20 * time.Second,
		SendBufferSize:   32,
		ReceiveBuffer:    32,
	}
}

// WebsocketChannel is a Channel over gorilla/websocket with JSON text frames.
// Frames queued while disconnected are sent after the next successful dial;
// inbound frames that cannot be delivered within ReadTimeout are dropped.
type WebsocketChannel struct {
	url      string
	header   http.Header
	settings *Settings
	log      logrus.FieldLogger
	dialer   *websocket.Dialer

	send     chan []byte
	messages chan Message

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	closed    bool
	connected bool
	wg        sync.WaitGroup
}

// NewWebsocketChannel creates an unconnected channel to url.
func NewWebsocketChannel(url string, log logrus.FieldLogger, settings *Settings) *WebsocketChannel {
	if settings == nil {
		settings = DefaultSettings()
	}
	if url == "" {
		url = DefaultPushURL
	}
	return &WebsocketChannel{
		url:      url,
		header:   http.Header{},
		settings: settings,
		log:      log.WithField("push", url),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: settings.HandshakeTimeout,
		},
		send:     make(chan []byte, settings.SendBufferSize),
		messages: make(chan Message, settings.ReceiveBuffer),
	}
}

// Connected reports whether a websocket is currently open.
func (c *WebsocketChannel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *WebsocketChannel) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return nil
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.run()
	return nil
}

func (c *WebsocketChannel) Emit(event string, payload any) error {
	msg, err := NewMessage(event, payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.log.WithField("event", event).Warn("push send buffer full, dropping")
		return ErrSendBufferFull
	}
}

func (c *WebsocketChannel) Messages() <-chan Message {
	return c.messages
}

// Close stops the connection loop and closes Messages.
func (c *WebsocketChannel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	c.wg.Wait()
	if !started {
		close(c.messages)
	}
	return nil
}

func (c *WebsocketChannel) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *WebsocketChannel) run() {
	defer c.wg.Done()
	defer close(c.messages)

	for {
		ws, _, err := c.dialer.DialContext(c.ctx, c.url, c.header)
		if err != nil {
			c.log.WithError(err).Debug("push dial failed")
		} else {
			c.log.Debug("push connected")
			c.setConnected(true)
			c.serve(ws)
			c.setConnected(false)
			c.log.Debug("push disconnected")
		}

		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.settings.ReconnectTimeout):
		}
	}
}

// serve pumps frames until the connection fails or the channel is closed.
func (c *WebsocketChannel) serve(ws *websocket.Conn) {
	defer ws.Close()

	handleCtx, handleCancel := context.WithCancel(c.ctx)
	defer handleCancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer handleCancel()
		ping := time.NewTicker(c.settings.PingInterval)
		defer ping.Stop()

		for {
			select {
			case <-handleCtx.Done():
				ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
				ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			case frame := <-c.send:
				ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
					c.log.WithError(err).Debug("push write failed")
					return
				}
			case <-ping.C:
				ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer handleCancel()

		ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
		ws.SetPingHandler(func(data string) error {
			ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
			return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(c.settings.WriteTimeout))
		})
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
		})

		for {
			messageType, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
			if messageType != websocket.TextMessage {
				continue
			}
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				c.log.WithError(err).Debug("bad push frame")
				continue
			}
			select {
			case <-handleCtx.Done():
				return
			case c.messages <- msg:
			case <-time.After(c.settings.ReadTimeout):
				c.log.WithField("event", msg.Event).Info("push receiver stalled, dropping")
			}
		}
	}()

	<-handleCtx.Done()
	// Unblock the reader.
	ws.SetReadDeadline(time.Now())
	wg.Wait()
}
