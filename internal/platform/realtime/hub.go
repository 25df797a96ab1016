package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is the message written to subscribed clients.
type Event struct {
	Type      string    `json:"type"`
	Topic     string    `json:"topic"`
	Table     string    `json:"table"`
	Op        Op        `json:"op"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is an inbound subscribe/unsubscribe request.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Client is one WebSocket connection.
type Client struct {
	ID     string
	UserID string
	Send   chan []byte
	topics map[string]struct{}
}

func NewClient(id, userID string, buffer int) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Send:   make(chan []byte, buffer),
		topics: make(map[string]struct{}),
	}
}

// Hub tracks clients and their topic subscriptions.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> subscribers
	all     map[*Client]struct{}
	logger  zerolog.Logger
	dropped int
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[client] = struct{}{}
}

// Unregister removes the client from every topic and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for topic := range client.topics {
		h.removeLocked(topic, client)
	}
	delete(h.all, client)
	close(client.Send)
}

func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
		client.topics[topic] = struct{}{}
	}
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		h.removeLocked(topic, client)
		delete(client.topics, topic)
	}
}

func (h *Hub) removeLocked(topic string, client *Client) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

// Deliver fans a change out to every subscriber of each of its topics. A
// client subscribed to several matching topics receives one event per topic.
func (h *Hub) Deliver(change Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range change.Topics() {
		subscribers, ok := h.clients[topic]
		if !ok {
			continue
		}
		data, err := json.Marshal(Event{
			Type:      "change",
			Topic:     topic,
			Table:     change.Table,
			Op:        change.Op,
			ID:        change.ID,
			Timestamp: change.Timestamp,
		})
		if err != nil {
			h.logger.Error().Err(err).Str("topic", topic).Msg("marshal realtime event")
			continue
		}
		for client := range subscribers {
			select {
			case client.Send <- data:
			default:
				// Slow client; it will catch up on its next refetch.
				h.dropped++
			}
		}
	}
}

// Publish delivers locally; it satisfies Publisher for single-instance
// deployments.
func (h *Hub) Publish(_ context.Context, change Change) {
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now().UTC()
	}
	h.Deliver(change)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Dropped returns how many events were skipped because a client buffer was full.
func (h *Hub) Dropped() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}
