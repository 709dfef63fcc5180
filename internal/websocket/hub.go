package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quizora/exam-agent/internal/session"
)

// Hub fans controller notices out to every connected UI stream. It
// implements session.Notifier.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     log.With().Str("component", "ws_hub").Logger(),
	}
}

// Register wraps the connection and adds it to the broadcast set. All
// subsequent writes to the connection must go through the returned
// client.
func (h *Hub) Register(conn *websocket.Conn) *Client {
	client := newClient(conn)
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	return client
}

// Unregister removes a client; safe to call twice.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
}

// Notify pushes a controller notice to every connected stream. A write
// failure only logs: the read loop owns closing broken connections.
func (h *Hub) Notify(n session.Notice) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if err := client.WriteTyped(NoticeResponse{Event: EventNotice, Notice: n}); err != nil {
			h.log.Debug().Err(err).Msg("Notice push failed")
		}
	}
}
