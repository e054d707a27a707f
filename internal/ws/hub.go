package ws

import (
	"encoding/json"
	"sync"
)

// Event is a typed invalidation message broadcast to subscribed views.
// Receiving one tells a client to refetch the named resource immediately
// instead of waiting for its next poll tick; the payload is advisory.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// topicEvent is an internal struct for routing events to topic rooms
type topicEvent struct {
	Topic string
	Event Event
}

// Hub maintains the set of active clients and broadcasts invalidation
// events to them, grouped by topic ("orders", "menu", "reports").
type Hub struct {
	// Registered clients by topic
	rooms map[string]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *topicEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *topicEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			for _, topic := range client.topics {
				if h.rooms[topic] == nil {
					h.rooms[topic] = make(map[*Client]bool)
				}
				h.rooms[topic][client] = true
			}
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			removed := false
			for _, topic := range client.topics {
				if clients, ok := h.rooms[topic]; ok {
					if _, exists := clients[client]; exists {
						delete(clients, client)
						removed = true
						if len(clients) == 0 {
							delete(h.rooms, topic)
						}
					}
				}
			}
			if removed {
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.Topic]

			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					h.dropClient(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// dropClient removes a client from every room it subscribed to.
// Caller must hold h.mu.
func (h *Hub) dropClient(client *Client) {
	for _, topic := range client.topics {
		if clients, ok := h.rooms[topic]; ok {
			delete(clients, client)
			if len(clients) == 0 {
				delete(h.rooms, topic)
			}
		}
	}
}

// Broadcast sends an invalidation event to all clients subscribed to topic.
// This is the public API for handlers to signal out-of-band refetches.
func (h *Hub) Broadcast(topic string, event Event) {
	h.broadcast <- &topicEvent{
		Topic: topic,
		Event: event,
	}
}
