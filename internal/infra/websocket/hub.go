package websocket

import (
	"context"
	"sync"

	"github.com/sonartrack/api/pkg/logger"
)

const (
	// Broadcast buffer size
	broadcastBufferSize = 256
)

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Channel subscriptions: channel -> set of clients
	channels map[string]map[*Client]bool

	// Inbound messages for broadcast
	broadcast chan *BroadcastMessage

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	logger *logger.Logger

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast to a channel.
type BroadcastMessage struct {
	Channel string
	Message *Message
}

// NewHub creates a new Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		channels:   make(map[string]map[*Client]bool),
		broadcast:  make(chan *BroadcastMessage, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     log,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("websocket hub started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("websocket hub stopping")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			h.logger.Debug("client registered", "client_id", client.ID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				h.removeClientFromAllChannels(client)
			}
			h.mu.Unlock()

			h.logger.Debug("client unregistered", "client_id", client.ID)

		case msg := <-h.broadcast:
			h.broadcastToChannel(msg)
		}
	}
}

// RegisterClient registers a new client.
func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient unregisters a client.
func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// Broadcast sends a message to all clients subscribed to a channel. A full
// broadcast buffer drops the message instead of blocking the producer.
func (h *Hub) Broadcast(channel string, msg *Message) {
	select {
	case h.broadcast <- &BroadcastMessage{Channel: channel, Message: msg}:
	default:
		h.logger.Warn("broadcast buffer full, dropping message", "channel", channel)
	}
}

// BroadcastEvent is a convenience method to broadcast an event to a channel.
func (h *Hub) BroadcastEvent(channel string, data any) {
	msg := NewMessage(MessageTypeEvent).
		WithChannel(channel).
		WithData(data)
	h.Broadcast(channel, msg)
}

// subscribeToChannel adds a client to a channel (internal use).
func (h *Hub) subscribeToChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][client] = true
}

// unsubscribeFromChannel removes a client from a channel (internal use).
func (h *Hub) unsubscribeFromChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.channels[channel]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}
}

// validChannel reports whether a channel name is something this hub serves.
func validChannel(channel string) bool {
	channelType, id := ParseChannel(channel)
	switch channelType {
	case ChannelTypeSync, ChannelTypeProject:
		return id != ""
	}
	return false
}

// broadcastToChannel sends a message to all clients subscribed to a channel.
func (h *Hub) broadcastToChannel(msg *BroadcastMessage) {
	h.mu.RLock()
	clients, ok := h.channels[msg.Channel]
	if !ok || len(clients) == 0 {
		h.mu.RUnlock()
		return
	}

	// Copy client list to avoid holding lock during send
	clientList := make([]*Client, 0, len(clients))
	for client := range clients {
		clientList = append(clientList, client)
	}
	h.mu.RUnlock()

	for _, client := range clientList {
		if err := client.SendMessage(msg.Message); err != nil {
			h.logger.Debug("failed to send message to client",
				"client_id", client.ID,
				"channel", msg.Channel,
				"error", err,
			)
		}
	}
}

// removeClientFromAllChannels removes a client from all channel subscriptions.
func (h *Hub) removeClientFromAllChannels(client *Client) {
	for channel, clients := range h.channels {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.channels, channel)
		}
	}
}

// closeAllClients closes all client connections.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
	h.channels = make(map[string]map[*Client]bool)
}

// GetStats returns hub statistics.
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	channelStats := make(map[string]int)
	for channel, clients := range h.channels {
		channelStats[channel] = len(clients)
	}

	return HubStats{
		TotalClients:   len(h.clients),
		TotalChannels:  len(h.channels),
		ChannelClients: channelStats,
	}
}

// HubStats contains hub statistics.
type HubStats struct {
	TotalClients   int            `json:"total_clients"`
	TotalChannels  int            `json:"total_channels"`
	ChannelClients map[string]int `json:"channel_clients"`
}
