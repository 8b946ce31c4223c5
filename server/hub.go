package server

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"cryptomon/logger"
	"cryptomon/models"
	"cryptomon/store"
)

// Conn is the subset of the websocket connection the hub needs.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const textMessage = 1

// Client is one registered dashboard connection.
type Client struct {
	ID   uuid.UUID
	conn Conn
}

// Hub fans out display updates to every registered client. A client whose
// write fails is dropped on the spot; the remaining clients keep receiving.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]bool
	history *store.History
	log     *logger.Log

	// Throttles the repeated dropped-client warning under churn.
	warnLimiter *rate.Limiter
}

func NewHub(history *store.History) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		history:     history,
		log:         logger.GetLogger(),
		warnLimiter: rate.NewLimiter(rate.Limit(1), 5),
	}
}

// Register adds a connection and immediately sends it the full current state
// so the client catches up before any incremental update arrives. The
// snapshot is taken under the hub lock: a concurrent publish lands either
// entirely before it (and is inside the snapshot) or after the client is
// registered (and is delivered as an update).
func (h *Hub) Register(conn Conn) (*Client, error) {
	client := &Client{ID: uuid.New(), conn: conn}

	h.mu.Lock()
	defer h.mu.Unlock()

	funding, liqs, trades, whales := h.history.Snapshot()
	snapshot := models.NewInitialData(funding, liqs, trades, whales)
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}

	if err := client.conn.WriteMessage(textMessage, data); err != nil {
		client.conn.Close()
		return nil, err
	}

	h.clients[client] = true
	logger.SetClientCount(len(h.clients))
	h.log.WithComponent("hub").WithFields(logger.Fields{
		"client_id": client.ID.String(),
		"clients":   len(h.clients),
	}).Info("client connected")

	return client, nil
}

// Unregister removes a client. Unknown clients are ignored so the call is
// safe to repeat.
func (h *Hub) Unregister(client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	client.conn.Close()
	logger.SetClientCount(len(h.clients))
	h.log.WithComponent("hub").WithFields(logger.Fields{
		"client_id": client.ID.String(),
		"clients":   len(h.clients),
	}).Info("client disconnected")
}

// Broadcast marshals the event once and writes it to every client. Clients
// whose write fails are closed and removed without affecting the rest.
func (h *Hub) Broadcast(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.WithComponent("hub").WithError(err).Error("failed to marshal broadcast event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if err := client.conn.WriteMessage(textMessage, data); err != nil {
			client.conn.Close()
			delete(h.clients, client)
			if h.warnLimiter.Allow() {
				h.log.WithComponent("hub").WithError(err).WithFields(logger.Fields{
					"client_id": client.ID.String(),
				}).Warn("dropping client after failed write")
			}
		}
	}

	logger.SetClientCount(len(h.clients))
	logger.IncrementBroadcast(len(data))
}

// ClientCount reports the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
