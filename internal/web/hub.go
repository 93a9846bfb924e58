package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sweeney/button-sensor/internal/events"
	"github.com/sweeney/button-sensor/internal/status"
)

// Messages are JSON text frames with an envelope: {type, ts, data}.
// The first message on connect is "status_init" with the status JSON in data;
// "status_update" carries the same shape when pressed or latched state changes.
const (
	msgStatusInit   = "status_init"
	msgStatusUpdate = "status_update"
	msgButtonEvent  = "button_event"
	msgSystemEvent  = "system_event"
)

type envelope struct {
	Type string      `json:"type"`
	Ts   *time.Time  `json:"ts,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

type wsButtonEvent struct {
	Name         string `json:"name"`
	Index        int    `json:"index"`
	Pin          int    `json:"pin"`
	Event        string `json:"event"`
	DurationMs   uint32 `json:"duration_ms"`
	Latched      bool   `json:"latched"`
	LatchChanged bool   `json:"latch_changed"`
}

type wsSystemEvent struct {
	Event  string `json:"event"`
	Reason string `json:"reason,omitempty"`
}

func encodeEnvelope(typ string, at time.Time, data interface{}) ([]byte, error) {
	ts := at.UTC()
	return json.Marshal(envelope{Type: typ, Ts: &ts, Data: data})
}

// HubConfig sizes the hub queues. Zero values use defaults.
type HubConfig struct {
	SendBuf      int
	BroadcastBuf int
}

// Hub tracks connected websocket clients and fans out frames to them.
// Slow clients are disconnected when their send buffer fills.
type Hub struct {
	logger *slog.Logger

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

var _ events.Publisher = (*Hub)(nil)

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// Clients returns the number of registered clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.closeSend()
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.closeSend()
		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

// BroadcastBytes enqueues a pre-serialized JSON frame for broadcast.
// It never blocks; if the hub queue is full it drops the message.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// Publish broadcasts a button event to every client.
func (h *Hub) Publish(e events.Event) error {
	msg, err := encodeEnvelope(msgButtonEvent, e.Timestamp, wsButtonEvent{
		Name:         e.Button,
		Index:        e.Index,
		Pin:          e.Pin,
		Event:        string(e.Type),
		DurationMs:   e.DurationMs,
		Latched:      e.Latched,
		LatchChanged: e.LatchChanged,
	})
	if err != nil {
		return err
	}
	h.BroadcastBytes(msg)
	return nil
}

// PublishSystem broadcasts a system lifecycle event to every client.
func (h *Hub) PublishSystem(e events.SystemEvent) error {
	msg, err := encodeEnvelope(msgSystemEvent, e.Timestamp, wsSystemEvent{Event: e.Event, Reason: e.Reason})
	if err != nil {
		return err
	}
	h.BroadcastBytes(msg)
	return nil
}

// PublishStatus broadcasts a full status snapshot to every client.
func (h *Hub) PublishStatus(snap status.Snapshot) error {
	msg, err := encodeEnvelope(msgStatusUpdate, snap.Now, json.RawMessage(status.FormatJSON(snap)))
	if err != nil {
		return err
	}
	h.BroadcastBytes(msg)
	return nil
}

// Close is a no-op; clients are closed when Run's context ends.
func (h *Hub) Close() error {
	return nil
}

// Client is one websocket connection with its own outbound queue.
type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte
	once sync.Once

	remoteAddr string
	logger     *slog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, hub.sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

func (c *Client) closeSend() {
	c.once.Do(func() { close(c.send) })
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Debug("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Debug("ws "+pump+" exiting", "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes queued frames and keepalive pings.
// It exits on write error or when send is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", err)
				return
			}
		}
	}
}

// readPump discards incoming frames to detect disconnects, then unregisters.
func (c *Client) readPump() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", err)
			c.hub.unregister <- c
			return
		}
	}
}
