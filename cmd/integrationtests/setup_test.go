package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	bidding "livebid/internal/biddingService"
	"livebid/internal/events"
	"livebid/internal/notification"
	"livebid/internal/repository"
	"livebid/internal/server"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var startOfTest = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// manualClock lets a test move time past an auction's end
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv is the full HTTP stack over an in-memory repository
type testEnv struct {
	router *gin.Engine
	repo   *repository.MemoryRepo
	outbox *events.Outbox
	clock  *manualClock
}

// setupTestEnv wires the router, bidding service and notification service
// the same way main does, minus the background loops. Tests drain the
// outbox themselves with Flush.
func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryRepo()
	clock := &manualClock{now: startOfTest}

	notes := notification.NewService(repo, repo, notification.WithClock(clock.Now))
	outbox := events.NewOutbox()
	outbox.Register("notifications", notes)

	service := bidding.NewBiddingService(repo, outbox,
		bidding.WithClock(clock.Now),
		bidding.WithStartingBalance(10000),
	)
	return &testEnv{
		router: server.SetupRouter(service, notes, nil),
		repo:   repo,
		outbox: outbox,
		clock:  clock,
	}
}

// response is the envelope every handler writes
type response struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// do executes a request. A []byte body is sent as is, anything else is
// marshalled to JSON.
func (e *testEnv) do(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, response) {
	t.Helper()

	var reqBody []byte
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		var err error
		reqBody, err = json.Marshal(v)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var resp response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

// decode unmarshals the data field of a response into out
func decode(t *testing.T, resp response, out any) {
	t.Helper()
	require.NotEmpty(t, resp.Data, "response has no data")
	require.NoError(t, json.Unmarshal(resp.Data, out))
}
