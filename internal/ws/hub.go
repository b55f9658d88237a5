package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// shopEvent is an internal struct for routing events to one shop's room
type shopEvent struct {
	ShopID int64
	Event  Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by shop ID
	rooms map[int64]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *shopEvent
	done       chan struct{}

	log *zap.Logger

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		rooms:      make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *shopEvent, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run is the hub's main loop. It returns when ctx is done, after closing
// every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for shopID, clients := range h.rooms {
				for client := range clients {
					close(client.send)
				}
				delete(h.rooms, shopID)
			}
			h.mu.Unlock()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.shopID] == nil {
				h.rooms[client.shopID] = make(map[*Client]bool)
			}
			h.rooms[client.shopID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.log.Error("marshal ws event", zap.String("type", event.Event.Type), zap.Error(err))
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.ShopID] {
				select {
				case client.send <- message:
				default:
					// Slow client; the read pump will see the closed conn.
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(client *Client) {
	clients, ok := h.rooms[client.shopID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.shopID)
	}
}

// Clients returns the number of connected clients of a shop.
func (h *Hub) Clients(shopID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[shopID])
}

// BroadcastToShop sends an event to all clients of a shop. It never blocks
// once the hub has stopped.
func (h *Hub) BroadcastToShop(shopID int64, event Event) {
	select {
	case h.broadcast <- &shopEvent{ShopID: shopID, Event: event}:
	case <-h.done:
	}
}

// Publish marshals payload and broadcasts it as eventType.
func (h *Hub) Publish(shopID int64, eventType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("marshal ws payload", zap.String("type", eventType), zap.Error(err))
		return
	}
	h.BroadcastToShop(shopID, Event{Type: eventType, Payload: raw})
}

func (h *Hub) addClient(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) removeClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
