package inprocess

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/atm-server/internal/domain"
	"github.com/bnema/atm-server/internal/ports"
	"github.com/google/uuid"
)

var (
	ErrRouteNotFound = errors.New("route not found")
	ErrNoListener    = errors.New("no message listener")
	ErrDisconnected  = errors.New("connection is closed")
)

// Hub is the server end of the in-process transport. Requests from client
// connections reach the server listener; replies are routed back by
// Message.Route.
type Hub struct {
	mu       sync.RWMutex
	listener ports.MessageListener
	clients  map[domain.Route]*ClientConnection
}

var _ ports.Connection = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{clients: make(map[domain.Route]*ClientConnection)}
}

func (h *Hub) SetMessageListener(listener ports.MessageListener) {
	h.mu.Lock()
	h.listener = listener
	h.mu.Unlock()
}

// SendMessage delivers a server reply to the client owning msg.Route.
func (h *Hub) SendMessage(msg ports.Message) error {
	h.mu.RLock()
	client, ok := h.clients[msg.Route]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrRouteNotFound, msg.Route)
	}

	return client.deliver(msg)
}

// Connect registers a new client under a fresh route.
func (h *Hub) Connect() *ClientConnection {
	client := &ClientConnection{
		hub:   h,
		route: domain.Route(uuid.NewString()),
	}

	h.mu.Lock()
	h.clients[client.route] = client
	h.mu.Unlock()

	return client
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) toServer(msg ports.Message) error {
	h.mu.RLock()
	listener := h.listener
	h.mu.RUnlock()
	if listener == nil {
		return ErrNoListener
	}

	listener.OnMessage(msg)
	return nil
}

func (h *Hub) disconnect(route domain.Route) {
	h.mu.Lock()
	delete(h.clients, route)
	h.mu.Unlock()
}

// ClientConnection is one client's end of the hub.
type ClientConnection struct {
	hub   *Hub
	route domain.Route

	mu       sync.RWMutex
	listener ports.MessageListener
	closed   bool
}

var _ ports.Connection = (*ClientConnection)(nil)

func (c *ClientConnection) Route() domain.Route {
	return c.route
}

// SendMessage stamps the connection route on msg and hands it to the server.
func (c *ClientConnection) SendMessage(msg ports.Message) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrDisconnected
	}

	msg.Route = c.route
	return c.hub.toServer(msg)
}

func (c *ClientConnection) SetMessageListener(listener ports.MessageListener) {
	c.mu.Lock()
	c.listener = listener
	c.mu.Unlock()
}

func (c *ClientConnection) Disconnect() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.hub.disconnect(c.route)
}

func (c *ClientConnection) deliver(msg ports.Message) error {
	c.mu.RLock()
	listener := c.listener
	c.mu.RUnlock()
	if listener == nil {
		return fmt.Errorf("%w on route %q", ErrNoListener, c.route)
	}

	listener.OnMessage(msg)
	return nil
}
