package live

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Viewers only send control frames, anything bigger is a misbehaving client.
	maxMessageSize = 512
)

const SnapshotEventType = "matches:snapshot"

// Message is the envelope written to websocket viewers.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub serves websocket viewers, one broker subscription per connection.
type Hub struct {
	broker   *Broker
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}
	stopped bool

	done     chan struct{}
	stopOnce sync.Once
}

type Client struct {
	hub  *Hub
	conn *websocket.Conn
	sub  *Subscription

	closeOnce sync.Once
}

// NewHub creates a hub. Pages served from the same host may always connect, other
// origins only when listed in allowedOrigins.
func NewHub(broker *Broker, allowedOrigins []string) *Hub {
	return &Hub{
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		clients: make(map[*Client]struct{}),
		done:    make(chan struct{}),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}

// ServeWs upgrades the request and streams match snapshots of eventID until the peer goes away.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request, eventID uuid.UUID) {
	h.mu.Lock()
	stopped := h.stopped
	h.mu.Unlock()
	if stopped {
		http.Error(w, "live feed is not running", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		slog.Warn("websocket upgrade failed", "event_id", eventID, "error", err)
		return
	}

	sub, err := h.broker.Subscribe(r.Context(), eventID)
	if err != nil {
		slog.Error("failed to subscribe to matches", "event_id", eventID, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "could not load matches"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}

	client := &Client{hub: h, conn: conn, sub: sub}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		client.close()
		return
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	slog.Info("viewer connected", "event_id", eventID, "viewers", h.broker.SubscriberCount(eventID))

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected viewers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Stop disconnects every viewer. Safe to call multiple times.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.mu.Lock()
		h.stopped = true
		h.mu.Unlock()
		close(h.done)
	})
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.sub.Cancel()
		c.hub.remove(c)
		if err := c.conn.Close(); err != nil {
			slog.Debug("websocket close error", "error", err)
		}
	})
}

// readPump only exists to notice the peer leaving and to answer pongs.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read error", "event_id", c.sub.EventID, "error", err)
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case snapshot, ok := <-c.sub.C():
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(Message{Type: SnapshotEventType, Data: snapshot})
			if err != nil {
				slog.Error("failed to marshal snapshot", "event_id", snapshot.EventID, "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.hub.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}
