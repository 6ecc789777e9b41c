// Package ws fans agent presence changes out to connected dashboard clients.
package ws

import (
	"encoding/json"
	"sync"
	"time"

	"syncbridge-service/internal/domain/agent"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

// presenceMessage is the wire shape pushed to dashboards.
type presenceMessage struct {
	Type                string    `json:"type"`
	AgentID             int64     `json:"agent_id"`
	LiveChatAgentID     string    `json:"livechat_agent_id"`
	LiveChatStatus      string    `json:"livechat_status"`
	RingCentralPresence string    `json:"ringcentral_presence"`
	Reason              string    `json:"reason,omitempty"`
	StateChangedAt      time.Time `json:"state_changed_at"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks connected dashboard sockets. Slow clients are dropped rather
// than allowed to block the broadcast path.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
	}
}

// Register attaches a freshly upgraded connection to the hub and starts its
// read/write pumps.
func (h *Hub) Register(conn *websocket.Conn) {
	c := &client{
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("dashboard client connected", zap.Int("clients", n))

	go h.writePump(c)
	go h.readPump(c)
}

// BroadcastPresence pushes one presence change to every connected client.
func (h *Hub) BroadcastPresence(ag *agent.Agent, rec *agent.PresenceRecord) {
	msg := presenceMessage{
		Type:                "agent_state_changed",
		AgentID:             ag.ID,
		LiveChatAgentID:     ag.LiveChatAgentID,
		LiveChatStatus:      rec.LiveChatStatus,
		RingCentralPresence: rec.RingCentralPresence,
		Reason:              rec.Reason.String,
		StateChangedAt:      rec.StateChangedAt,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal presence message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up; its write pump will close it.
			go h.remove(c)
		}
	}
}

// ClientCount reports the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()

	if ok {
		c.conn.Close()
		h.logger.Info("dashboard client disconnected")
	}
}

// readPump discards inbound frames; the socket is push-only. It exists to
// process pongs and detect closed connections.
func (h *Hub) readPump(c *client) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.remove(c)
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
