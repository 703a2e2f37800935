package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"PhantomEx/internal/domain/models"
	applogger "PhantomEx/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "console", Output: "stdout"})
	require.NoError(t, err)
	return l
}

// testConn dials a real websocket connection against a throwaway upgrader so
// dropped clients have a conn to close.
func testConn(t *testing.T) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = upgrader.Upgrade(w, r, nil)
	}))
	t.Cleanup(srv.Close)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func addClient(h *Hub, conn *websocket.Conn, buf int) *client {
	cl := &client{conn: conn, send: make(chan []byte, buf)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	return cl
}

func TestHubBroadcastDelivers(t *testing.T) {
	h := NewHub(testLogger(t))
	cl := addClient(h, testConn(t), 8)

	h.TradeExecuted("a1", &models.Trade{Symbol: "BTC", Side: models.SideBuy})
	h.AgentRemoved("a1")

	var ev event
	require.NoError(t, json.Unmarshal(<-cl.send, &ev))
	require.Equal(t, "trade", ev.Type)
	require.Equal(t, "a1", ev.AgentID)

	require.NoError(t, json.Unmarshal(<-cl.send, &ev))
	require.Equal(t, "agent_removed", ev.Type)
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub(testLogger(t))
	cl := addClient(h, testConn(t), 1)

	h.Prices(models.PriceSnapshot{"BTC": {Price: 1}})
	h.Prices(models.PriceSnapshot{"BTC": {Price: 2}}) // buffer full: client dropped

	h.mu.Lock()
	_, ok := h.clients[cl]
	h.mu.Unlock()
	require.False(t, ok)

	_, open := <-cl.send // the buffered payload survives
	require.True(t, open)
	_, open = <-cl.send
	require.False(t, open, "send channel closed on drop")
}

func TestHubConcurrentBroadcastAndDrop(t *testing.T) {
	h := NewHub(testLogger(t))
	conn := testConn(t)

	clients := make([]*client, 16)
	for i := range clients {
		clients[i] = addClient(h, conn, 1)
	}

	var wg sync.WaitGroup
	panics := make(chan any, len(clients)+4)

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panics <- r
				}
			}()
			for i := 0; i < 200; i++ {
				h.AgentState(&models.AgentState{Running: true})
			}
		}()
	}
	// Disconnecting readers race the broadcasters for the same clients.
	for _, cl := range clients {
		wg.Add(1)
		go func(cl *client) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panics <- r
				}
			}()
			h.drop(cl)
		}(cl)
	}

	wg.Wait()
	close(panics)
	for p := range panics {
		t.Fatalf("hub panicked: %v", p)
	}

	h.mu.Lock()
	remaining := len(h.clients)
	h.mu.Unlock()
	require.Zero(t, remaining)
}

func TestHubDropIdempotent(t *testing.T) {
	h := NewHub(testLogger(t))
	cl := addClient(h, testConn(t), 1)

	h.drop(cl)
	h.drop(cl)
	h.sendTo(cl, event{Type: "pong"}) // no-op for an evicted client
}
