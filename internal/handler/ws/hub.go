package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"PhantomEx/internal/domain/models"
	drepo "PhantomEx/internal/domain/repository"
	"PhantomEx/internal/usecase"
	applogger "PhantomEx/pkg/logger"
)

// event is the wire envelope for every outbound and inbound message.
type event struct {
	Type    string `json:"type"`
	AgentID string `json:"agent_id,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans agent and market events out to every connected browser and routes
// approve/reject commands back in. It is the Notifier implementation; all
// notify methods are non-blocking (slow clients get dropped, not waited on).
type Hub struct {
	log      *applogger.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}

	registry *usecase.Registry
	feed     *usecase.MarketFeed
}

func NewHub(log *applogger.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

var _ drepo.Notifier = (*Hub)(nil)

// Bind attaches the live components the hub reads on connect and commands
// against. Called once during wiring; the registry itself is constructed
// with the hub as its Notifier, so this cannot happen in the constructor.
func (h *Hub) Bind(registry *usecase.Registry, feed *usecase.MarketFeed) {
	h.registry = registry
	h.feed = feed
}

// Serve upgrades the connection, replays current state, then reads commands
// until the client goes away.
func (h *Hub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &client{conn: conn, send: make(chan []byte, 64)}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(cl)

	prices := h.feed.Prices()
	if len(prices) > 0 {
		h.sendTo(cl, event{Type: "prices", Data: prices})
	}
	for _, agent := range h.registry.All() {
		h.sendTo(cl, event{Type: "agent_state", Data: agent.State(prices)})
	}

	h.readLoop(c, cl)
	return nil
}

func (h *Hub) readLoop(c echo.Context, cl *client) {
	defer h.drop(cl)
	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg event
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		h.handle(c, cl, msg)
	}
}

func (h *Hub) handle(c echo.Context, cl *client, msg event) {
	switch msg.Type {
	case "approve_trade":
		if agent := h.registry.Get(msg.AgentID); agent != nil {
			agent.ApprovePending(c.Request().Context(), h.feed.Prices())
		}
	case "reject_trade":
		if agent := h.registry.Get(msg.AgentID); agent != nil {
			agent.RejectPending()
		}
	case "ping":
		h.sendTo(cl, event{Type: "pong"})
	}
}

func (h *Hub) writeLoop(cl *client) {
	for payload := range cl.send {
		if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.drop(cl)
			return
		}
	}
	_ = cl.conn.Close()
}

func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	h.dropLocked(cl)
	h.mu.Unlock()
}

// dropLocked removes the client and closes its send channel. Caller holds
// h.mu: every send on cl.send also happens under h.mu, so the close can
// never race a send.
func (h *Hub) dropLocked(cl *client) {
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
	_ = cl.conn.Close()
}

func (h *Hub) sendTo(cl *client, ev event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal ws event", applogger.Error(err))
		return
	}
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		select {
		case cl.send <- payload:
		default:
			h.dropLocked(cl)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast(ev event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("marshal ws event", applogger.Error(err))
		return
	}
	// Sends stay under the lock. They are non-blocking, so the lock is held
	// only for buffered channel writes; a full buffer drops the client.
	h.mu.Lock()
	for cl := range h.clients {
		select {
		case cl.send <- payload:
		default:
			h.dropLocked(cl)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) AgentState(state *models.AgentState) {
	h.broadcast(event{Type: "agent_state", Data: state})
}

func (h *Hub) TradeExecuted(agentID string, trade *models.Trade) {
	h.broadcast(event{Type: "trade", AgentID: agentID, Data: trade})
}

func (h *Hub) PendingDecision(agentID string, decision *models.Decision) {
	h.broadcast(event{Type: "pending_decision", AgentID: agentID, Data: decision})
}

func (h *Hub) Prices(snap models.PriceSnapshot) {
	h.broadcast(event{Type: "prices", Data: snap})
}

func (h *Hub) AgentRemoved(agentID string) {
	h.broadcast(event{Type: "agent_removed", AgentID: agentID})
}
