package websocket

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/studentos/chat_backend/metrics"
)

// Hub is the broadcast-group registry: it maps room IDs to the set of
// connections currently subscribed to them. Every mutation and every fan-out
// goes through the run loop's mailbox, so there is no shared mutable state
// between join/leave and broadcast.
type Hub struct {
	logger zerolog.Logger

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	broadcast   chan roomEvent

	// Closed when Run returns. Mailbox senders select on it so connection
	// goroutines cannot block after shutdown.
	done chan struct{}

	// Owned by the run loop.
	clients map[*Client]bool
	rooms   map[string]map[*Client]bool
}

type subscription struct {
	client *Client
	roomID string
}

type roomEvent struct {
	roomID string
	data   []byte
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:      logger,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan subscription),
		unsubscribe: make(chan subscription),
		broadcast:   make(chan roomEvent),
		done:        make(chan struct{}),
		clients:     make(map[*Client]bool),
		rooms:       make(map[string]map[*Client]bool),
	}
}

// Run processes the mailbox until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.dropClient(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			metrics.ConnectedClients.Inc()
		case client := <-h.unregister:
			h.dropClient(client)
		case sub := <-h.subscribe:
			if !h.clients[sub.client] {
				continue
			}
			if h.rooms[sub.roomID] == nil {
				h.rooms[sub.roomID] = make(map[*Client]bool)
			}
			h.rooms[sub.roomID][sub.client] = true
		case sub := <-h.unsubscribe:
			h.leaveRoom(sub.client, sub.roomID)
		case event := <-h.broadcast:
			h.fanOut(event)
		}
	}
}

// BroadcastToRoom sends an event to every connection subscribed to the room
// at the moment the mailbox processes it. Safe to call from any goroutine;
// after shutdown the event is discarded.
func (h *Hub) BroadcastToRoom(roomID, event string, payload interface{}) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("marshal broadcast event")
		return
	}
	select {
	case h.broadcast <- roomEvent{roomID: roomID, data: data}:
	case <-h.done:
	}
}

func (h *Hub) addClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) removeClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) subscribeRoom(c *Client, roomID string) {
	select {
	case h.subscribe <- subscription{client: c, roomID: roomID}:
	case <-h.done:
	}
}

func (h *Hub) unsubscribeRoom(c *Client, roomID string) {
	select {
	case h.unsubscribe <- subscription{client: c, roomID: roomID}:
	case <-h.done:
	}
}

func (h *Hub) fanOut(event roomEvent) {
	clients := h.rooms[event.roomID]
	if len(clients) == 0 {
		return
	}
	metrics.RoomBroadcasts.Inc()
	for client := range clients {
		select {
		case client.send <- event.data:
		default:
			// Slow consumer; drop the connection rather than block the hub.
			h.dropClient(client)
		}
	}
}

func (h *Hub) leaveRoom(client *Client, roomID string) {
	if clients, ok := h.rooms[roomID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// dropClient removes a client from the registry and signals its write pump.
// The send channel is never closed: the read pump keeps enqueueing error
// frames for its own connection until it exits, so closing here would race
// with those sends.
func (h *Hub) dropClient(client *Client) {
	if !h.clients[client] {
		return
	}
	delete(h.clients, client)
	close(client.done)
	metrics.ConnectedClients.Dec()
	for roomID := range h.rooms {
		h.leaveRoom(client, roomID)
	}
}

func marshalEvent(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(struct {
		Type    string      `json:"type"`
		Payload interface{} `json:"payload"`
	}{Type: event, Payload: payload})
}
