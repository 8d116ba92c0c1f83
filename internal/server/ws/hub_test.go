package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"livebid/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, opts ...HubOption) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(opts...)
	go hub.Run(ctx)

	r := gin.New()
	r.GET("/ws", hub.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// anySubscribed reports whether some connected client listens on topic
func (h *Hub) anySubscribed(topic string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.isSubscribed(topic) {
			return true
		}
	}
	return false
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

// Test isSubscribed
func TestIsSubscribed(t *testing.T) {
	t.Parallel()

	c := &client{subs: map[string]bool{"auctions/a1": true, "users/u1": true, "auctions/lot-*": true}}
	tests := []struct {
		topic string
		want  bool
	}{
		{"auctions/a1", true},
		{"auctions/a2", false},
		{"auctions/lot-7", true},
		{"users/u1", true},
		{"users/u2", false},
		{"users/u1/notifications", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, c.isSubscribed(tt.topic), tt.topic)
	}
}

// Test a client only receives the topics it asked for
func TestHub_QueryTopics(t *testing.T) {
	t.Parallel()

	hub, url := startHub(t)
	conn := dial(t, url+"?topics=auctions/a1")
	require.Eventually(t, func() bool { return hub.anySubscribed("auctions/a1") }, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, events.BidPlaced{AuctionID: "a2", NewPrice: 5}))
	require.NoError(t, hub.Publish(ctx, events.BidPlaced{AuctionID: "a1", NewPrice: 1200, NewLeaderID: "b1"}))

	env := readEnvelope(t, conn)
	require.Equal(t, events.TypeBidPlaced, env["type"])
	require.Equal(t, "auctions/a1", env["topic"])
	payload := env["payload"].(map[string]any)
	require.Equal(t, float64(1200), payload["new_price"])
}

// Test subscribe and unsubscribe messages
func TestHub_SubscribeMessage(t *testing.T) {
	t.Parallel()

	hub, url := startHub(t)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.clientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "subscribe", Topics: []string{"users/u1"}}))
	require.Eventually(t, func() bool { return hub.anySubscribed("users/u1") }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), events.BalanceChanged{UserID: "u1", AvailableBalance: 900}))
	env := readEnvelope(t, conn)
	require.Equal(t, events.TypeBalanceChanged, env["type"])

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "unsubscribe", Topics: []string{"users/u1"}}))
	require.Eventually(t, func() bool { return !hub.anySubscribed("users/u1") }, 2*time.Second, 10*time.Millisecond)
}

// Test Publish never blocks once the hub has stopped
func TestHub_PublishAfterStop(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	for i := 0; i < sendBufferSize*2; i++ {
		require.NoError(t, hub.Publish(context.Background(), events.BidPlaced{AuctionID: "a1"}))
	}
}

// Test allowedTopic
func TestAllowedTopic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		topic string
		want  bool
	}{
		{"auctions/a1", true},
		{"users/u1", true},
		{"users/u1/notifications", true},
		{"auctions/*", true},
		{"auctions/lot-*", true},
		{"", false},
		{"*", false},
		{"users/*", false},
		{"users/u1*", false},
		{"auctions/*/x", false},
		{"auctions/**", false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, allowedTopic(tt.topic), tt.topic)
	}
}

// Test wildcards over user topics are ignored on connect and on subscribe
func TestHub_RejectsUserWildcards(t *testing.T) {
	t.Parallel()

	hub, url := startHub(t)
	conn := dial(t, url+"?topics=users/*,*")
	require.Eventually(t, func() bool { return hub.clientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteJSON(subscribeMsg{Action: "subscribe", Topics: []string{"users/*", "*", "auctions/a1"}}))
	require.Eventually(t, func() bool { return hub.anySubscribed("auctions/a1") }, 2*time.Second, 10*time.Millisecond)
	require.False(t, hub.anySubscribed("users/u1"))
	require.False(t, hub.anySubscribed("users/u1/notifications"))

	ctx := context.Background()
	require.NoError(t, hub.Publish(ctx, events.BalanceChanged{UserID: "u1", AvailableBalance: 900}))
	require.NoError(t, hub.Publish(ctx, events.BidPlaced{AuctionID: "a1", NewPrice: 1200, NewLeaderID: "b1"}))

	env := readEnvelope(t, conn)
	require.Equal(t, events.TypeBidPlaced, env["type"], "balance of another user must not be delivered")
}

// Test cross-origin upgrades are refused unless the origin is allowed
func TestHub_OriginCheck(t *testing.T) {
	t.Parallel()

	dialFrom := func(url, origin string) (*websocket.Conn, error) {
		header := http.Header{}
		header.Set("Origin", origin)
		conn, _, err := websocket.DefaultDialer.Dial(url, header)
		return conn, err
	}

	_, url := startHub(t)
	_, err := dialFrom(url, "http://evil.example")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)

	_, allowedURL := startHub(t, WithAllowedOrigins("http://app.example"))
	conn, err := dialFrom(allowedURL, "http://app.example")
	require.NoError(t, err)
	conn.Close()

	_, err = dialFrom(allowedURL, "http://evil.example")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
}
