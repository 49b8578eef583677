package server

import (
	"sync"

	"candle-replay/src/logger"
)

// -----------------------------------------------------------------------------
// Hub
// -----------------------------------------------------------------------------

// Hub maps a session id to the clients watching it. Publish delivers inline, so
// events reach each client queue in the order the session produced them.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Client]struct{}
	Logger *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		groups: make(map[string]map[*Client]struct{}),
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) Subscribe(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
}

// -----------------------------------------------------------------------------

func (h *Hub) Unsubscribe(group string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[group]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.groups, group)
	}
}

// -----------------------------------------------------------------------------

// Publish sends event to every member of group. A member whose queue is full is
// disconnected by its own Send.
func (h *Hub) Publish(group string, event interface{}) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.groups[group]))
	for c := range h.groups[group] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.Send(event)
	}
}

// -----------------------------------------------------------------------------

// CloseGroup disconnects every member of group.
func (h *Hub) CloseGroup(group string) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.groups[group]))
	for c := range h.groups[group] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		c.Close()
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []*Client
	for _, members := range h.groups {
		for c := range members {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range all {
		c.Close()
	}
}

// -----------------------------------------------------------------------------

func (h *Hub) Count(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, members := range h.groups {
		n += len(members)
	}
	return n
}
