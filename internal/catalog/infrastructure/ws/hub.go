// Package ws pushes catalog refresh notices to connected cashier stations.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dmehra2102/pos-order-engine/internal/catalog/domain"
)

const clientBuffer = 16

type client struct {
	send chan []byte
	once sync.Once
	done chan struct{}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// Hub fans notices out to every registered station. A station whose buffer
// is full misses the notice rather than stalling the others.
type Hub struct {
	log        *slog.Logger
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	stopped    chan struct{}

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:        log,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		stopped:    make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.close()
			}
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.log.Warn("station too slow, notice dropped")
				}
			}
			h.mu.RUnlock()
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.close()
			}
			h.clients = make(map[*client]struct{})
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast never blocks; notices are advisory.
func (h *Hub) Broadcast(n domain.Notice) {
	b, err := json.Marshal(n)
	if err != nil {
		h.log.Error("marshal notice", "err", err)
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.log.Warn("broadcast queue full, notice dropped", "type", n.Type)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add() (*client, bool) {
	c := &client{send: make(chan []byte, clientBuffer), done: make(chan struct{})}
	select {
	case h.register <- c:
		return c, true
	case <-h.stopped:
		return nil, false
	}
}

func (h *Hub) remove(c *client) {
	select {
	case h.unregister <- c:
	case <-h.stopped:
		c.close()
	}
}
