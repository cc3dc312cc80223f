package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"market_pulse/internal/domain"
	"market_pulse/internal/hub"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 5 * time.Second
	pongWait  = 60 * time.Second
)

// pingInterval derives the ping cadence from the keepalive window. Pings
// go out at half the window so an ack always lands before the hub's
// reaper inspects the handle, even when no ticks are flowing.
func pingInterval(keepalive time.Duration) time.Duration {
	if keepalive <= 0 {
		return 15 * time.Second
	}
	return keepalive / 2
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The read API is open; the push channel follows suit.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsMessage is the frame pushed to websocket consumers.
type wsMessage struct {
	Type string           `json:"type"`
	Data domain.PriceTick `json:"data"`
}

// handleWS upgrades the connection and binds it to one hub subscription.
// The hub queues the latest-price snapshot before live deltas, so the
// client renders immediately.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	sub := s.hub.Subscribe()
	client := &wsClient{
		conn:      conn,
		hub:       s.hub,
		sub:       sub,
		pingEvery: pingInterval(s.cfg.Keepalive()),
	}
	go client.writePump()
	go client.readPump()
}

type wsClient struct {
	conn      *websocket.Conn
	hub       *hub.Hub
	sub       *hub.Subscriber
	pingEvery time.Duration
}

// writePump drains the subscriber queue to the socket and pings on a
// timer. Any successful write, tick or ping, marks the subscriber alive.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.pingEvery)
	defer func() {
		ticker.Stop()
		c.hub.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	for {
		select {
		case tick, ok := <-c.sub.Out():
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			payload, err := json.Marshal(wsMessage{Type: "tick", Data: tick})
			if err != nil {
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			c.sub.Touch()
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.sub.Touch()
		}
	}
}

// readPump consumes client frames. Pongs and any inbound text count as
// acks for the keepalive window.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.sub)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.sub.Touch()
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.sub.Touch()
	}
}
