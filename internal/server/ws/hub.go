// Package ws pushes committed auction events to browser clients over
// WebSocket. Clients subscribe to topics such as "auctions/{id}" or
// "users/{id}". A trailing "*" matches by prefix and is only accepted under
// "auctions/", so no client can listen to every user's balances.
//
// There is no authentication: anyone who knows a user id can subscribe to
// that user's topic. Deployments that expose the hub publicly must put it
// behind an authenticating proxy.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"livebid/internal/events"
	"livebid/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 256
)

// wildcardScope is the only topic prefix a "*" subscription may cover
const wildcardScope = "auctions/"

// allowedTopic rejects empty topics and wildcards outside wildcardScope
func allowedTopic(topic string) bool {
	if topic == "" {
		return false
	}
	prefix, wildcard := strings.CutSuffix(topic, "*")
	if !wildcard {
		return !strings.Contains(topic, "*")
	}
	return strings.HasPrefix(prefix, wildcardScope) && !strings.Contains(prefix, "*")
}

// HubOption configures a Hub
type HubOption func(*Hub)

// WithAllowedOrigins accepts upgrades from the listed origins besides the
// hub's own host. A single "*" accepts any origin.
func WithAllowedOrigins(origins ...string) HubOption {
	return func(h *Hub) {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			if o = strings.TrimSpace(o); o != "" {
				allowed[strings.ToLower(o)] = true
			}
		}
		if len(allowed) == 0 {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] || allowed[strings.ToLower(origin)] {
				return true
			}
			return sameOrigin(r)
		}
	}
}

// sameOrigin mirrors gorilla's default check
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// subscribeMsg is what a client sends to change its topics, e.g.
// {"action":"subscribe","topics":["auctions/42"]}
type subscribeMsg struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	subs map[string]bool
	mu   sync.RWMutex
}

type broadcastMsg struct {
	topic string
	data  []byte
}

// Hub fans events out to connected clients and implements events.Sink.
// Delivery is best effort: a slow client loses messages instead of stalling
// the publisher.
type Hub struct {
	upgrader   websocket.Upgrader
	clients    map[*client]bool
	broadcast  chan broadcastMsg
	register   chan *client
	unregister chan *client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

// NewHub creates a Hub. Call Run before serving connections. Without
// WithAllowedOrigins only same-origin browsers may connect.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		clients:    make(map[*client]bool),
		broadcast:  make(chan broadcastMsg, sendBufferSize),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run handles registration and broadcasting until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer h.stopOnce.Do(func() { close(h.done) })

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			utils.Debug("ws: client connected", map[string]any{"total_clients": total})

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			utils.Debug("ws: client disconnected", map[string]any{"total_clients": total})

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				if !c.isSubscribed(msg.topic) {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					utils.Warn("ws: dropping message for slow client", map[string]any{"topic": msg.topic})
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish queues e for every client subscribed to its topic.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	data, err := json.Marshal(events.Wrap(e))
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- broadcastMsg{topic: e.Topic(), data: data}:
	case <-h.done:
	default:
		utils.Warn("ws: broadcast queue full, event dropped", map[string]any{"topic": e.Topic(), "type": e.Type()})
	}
	return nil
}

// ServeWS upgrades the request and registers the client. Initial topics may
// be given as a comma separated "topics" query parameter.
// GET /ws
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.Warn("ws: upgrade failed", map[string]any{"error": err.Error()})
		return
	}

	cl := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		subs: make(map[string]bool),
	}
	for _, t := range strings.Split(c.Query("topics"), ",") {
		if t = strings.TrimSpace(t); allowedTopic(t) {
			cl.subs[t] = true
		} else if t != "" {
			utils.Warn("ws: topic rejected", map[string]any{"topic": t})
		}
	}

	select {
	case h.register <- cl:
	case <-h.done:
		conn.Close()
		return
	}

	go cl.writePump()
	go cl.readPump()
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.Warn("ws: unexpected close", map[string]any{"error": err.Error()})
			}
			return
		}

		var sub subscribeMsg
		if err := json.Unmarshal(message, &sub); err != nil {
			continue
		}
		c.handleSubscription(sub)
	}
}

func (c *client) handleSubscription(msg subscribeMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Action {
	case "subscribe":
		for _, t := range msg.Topics {
			if !allowedTopic(t) {
				utils.Warn("ws: topic rejected", map[string]any{"topic": t})
				continue
			}
			c.subs[t] = true
		}
	case "unsubscribe":
		for _, t := range msg.Topics {
			delete(c.subs, t)
		}
	}
}

func (c *client) isSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.subs[topic] {
		return true
	}
	for sub := range c.subs {
		if prefix, ok := strings.CutSuffix(sub, "*"); ok && strings.HasPrefix(topic, prefix) {
			return true
		}
	}
	return false
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

var _ events.Sink = (*Hub)(nil)
