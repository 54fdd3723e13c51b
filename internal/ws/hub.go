package ws

import (
	"context"
	"sync"

	"github.com/driftchat/internal/logger"
	"github.com/driftchat/internal/model"
	"github.com/driftchat/internal/repository"
)

// PushNotifier delivers a message notification out of band when a recipient
// has no live connection.
type PushNotifier interface {
	Notify(ctx context.Context, userID string, msg *model.Message)
}

// Hub tracks live connections per user and routes real-time events to them.
// A user may hold several simultaneous connections (multiple tabs/devices);
// the user counts as online while at least one connection remains.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	total   int

	maxConns int

	users repository.UserStore
	push  PushNotifier

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(users repository.UserStore, push PushNotifier, maxConns int) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		users:      users,
		push:       push,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Run processes register/unregister events until ctx is cancelled, then
// closes every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			added, first := h.addClient(c)
			if first {
				h.setOnline(ctx, c.userID, true)
			}
			// Every accepted connection triggers a snapshot broadcast,
			// not just offline->online transitions: a user's second tab
			// needs the current online set too.
			if added {
				h.broadcastPresence()
			}
		case c := <-h.unregister:
			removed, last := h.removeClient(c)
			if last {
				h.setOnline(ctx, c.userID, false)
			}
			if removed {
				h.broadcastPresence()
			}
		}
	}
}

// addClient registers a connection. added is false for a duplicate or a
// rejected connection; first is true when this is the user's first live
// connection (an offline -> online transition).
func (h *Hub) addClient(c *Client) (added, first bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.clients[c.userID]
	if conns == nil {
		conns = make(map[*Client]struct{})
		h.clients[c.userID] = conns
	}
	if _, ok := conns[c]; ok {
		return false, false
	}
	if h.maxConns > 0 && h.total >= h.maxConns {
		logger.Errorf("hub: connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		if len(conns) == 0 {
			delete(h.clients, c.userID)
		}
		return false, false
	}
	conns[c] = struct{}{}
	h.total++
	return true, len(conns) == 1
}

// removeClient drops a connection. removed is false for an unknown client;
// last is true when the user has no connections left (an online -> offline
// transition).
func (h *Hub) removeClient(c *Client) (removed, last bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[c.userID]
	if !ok {
		return false, false
	}
	if _, ok := conns[c]; !ok {
		return false, false
	}
	delete(conns, c)
	h.total--
	c.Close()
	if len(conns) == 0 {
		delete(h.clients, c.userID)
		return true, true
	}
	return true, false
}

// Snapshot returns the IDs of every user with at least one live connection.
func (h *Hub) Snapshot() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// IsOnline reports whether the user has at least one live connection.
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// ConnectionCount returns the total number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// broadcastPresence sends the full online-user snapshot to every connection.
// Clients replace their online set wholesale, so a dropped snapshot is
// corrected by the next one.
func (h *Hub) broadcastPresence() {
	snapshot := h.Snapshot()
	ev := Event{Type: EventOnlineUsers, Payload: snapshot}

	h.mu.RLock()
	targets := make([]*Client, 0, h.total)
	for _, conns := range h.clients {
		for c := range conns {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.sendToClient(c, ev)
	}
}

// Deliver routes a persisted message and its notifications to the live
// connections of each recipient. Each connection gets the message event
// followed by its notification event. Recipients with no live connection
// get a browser push instead when a notifier is configured.
func (h *Hub) Deliver(msg *model.Message, notifs []*model.Notification) {
	msgEv := Event{Type: EventNewMessage, Payload: msg}

	for _, n := range notifs {
		notifEv := Event{Type: EventNewNotification, Payload: n}

		h.mu.RLock()
		conns := h.clients[n.ReceiverID]
		targets := make([]*Client, 0, len(conns))
		for c := range conns {
			targets = append(targets, c)
		}
		h.mu.RUnlock()

		if len(targets) == 0 {
			if h.push != nil {
				go h.push.Notify(context.Background(), n.ReceiverID, msg)
			}
			continue
		}
		for _, c := range targets {
			h.sendToClient(c, msgEv)
			h.sendToClient(c, notifEv)
		}
	}
}

// sendToClient enqueues an event without blocking the hub. A client whose
// send buffer is full is considered stuck and gets unregistered.
func (h *Hub) sendToClient(c *Client, ev Event) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- ev:
	default:
		logger.Errorf("hub: send buffer full, dropping client user=%s", c.userID)
		// The run loop reaches here during presence broadcasts, so a
		// blocking send on h.unregister could deadlock on itself. If the
		// channel is full, close the client; its read pump exits and
		// unregisters from its own goroutine.
		select {
		case h.unregister <- c:
		default:
			c.Close()
		}
	}
}

func (h *Hub) setOnline(ctx context.Context, userID string, online bool) {
	if h.users == nil {
		return
	}
	if err := h.users.SetOnline(ctx, userID, online); err != nil {
		logger.Errorf("hub: set online user=%s: %v", userID, err)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	for _, conns := range h.clients {
		for c := range conns {
			c.Close()
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()
}
