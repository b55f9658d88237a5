package ws

import (
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeTimeout = 10 * time.Second
	// Peers silent for longer than this are dropped.
	idleTimeout  = 60 * time.Second
	pingInterval = idleTimeout * 9 / 10
	// Dashboards only send control frames.
	readLimit    = 512
	sendQueue    = 256
)

// Client is one dashboard connection in a shop room.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	shopID int64
	send   chan []byte
}

// readLoop discards application frames and returns when the peer goes away.
func (c *Client) readLoop() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(readLimit)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	}
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, _, err := c.conn.ReadMessage()
		if err == nil {
			continue
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
			c.hub.log.Warn("websocket read", zap.Int64("shop_id", c.shopID), zap.Error(err))
		}
		return
	}
}

// writeLoop sends each queued event as its own text frame and pings the
// peer while idle.
func (c *Client) writeLoop() {
	pings := time.NewTicker(pingInterval)
	defer func() {
		pings.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, open := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !open {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.log.Debug("websocket write", zap.Int64("shop_id", c.shopID), zap.Error(err))
				return
			}

		case <-pings.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler upgrades dashboard connections and joins them to one shop's room.
type Handler struct {
	hub      *Hub
	shopID   int64
	upgrader websocket.Upgrader
}

// NewHandler accepts connections from allowedOrigins; an empty list accepts
// any origin.
func NewHandler(hub *Hub, shopID int64, allowedOrigins []string) *Handler {
	return &Handler{
		hub:    hub,
		shopID: shopID,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readLimit,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

// ServeHTTP handles GET /ws.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.log.Warn("websocket upgrade", zap.Error(err))
		return
	}

	c := &Client{hub: h.hub, conn: conn, shopID: h.shopID, send: make(chan []byte, sendQueue)}
	if !h.hub.addClient(c) {
		conn.Close()
		return
	}
	go c.writeLoop()
	go c.readLoop()
}
