package ws

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"

	"citysim/internal/protocol"
	"citysim/internal/sim/city"
)

// Hub fans STATE messages out to connected clients. It is a city.StateSink;
// PublishState never blocks the simulation, slow clients only see the latest state.
type Hub struct {
	log logrus.FieldLogger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	state   chan []byte
	results chan []byte
}

func NewHub(logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{log: logger, clients: map[*client]struct{}{}}
}

func (h *Hub) PublishState(v city.StateView) {
	b, err := json.Marshal(protocol.NewStateMsg(v))
	if err != nil {
		h.log.WithError(err).Error("encode state")
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		sendLatest(c.state, b)
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add() *client {
	c := &client{
		state:   make(chan []byte, 1),
		results: make(chan []byte, 16),
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// sendLatest replaces a pending message instead of blocking.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
