// Package windows tracks the app windows currently connected to the
// gateway. It is the gateway-side stand-in for the platform's window
// client list: notifications, claim and update signals go out through it,
// and the notification gateway consults it to focus-or-open on click.
package windows

import (
	"sync"

	"couriergate/internal/notify"
)

// Conn is one connected window. The network connection itself is managed
// by the websocket handler.
type Conn interface {
	Send(message []byte) bool
	Close()
}

type session struct {
	conn Conn
	url  string
}

type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[string]*session)}
}

// Register adds a window under its id with the URL it reported.
func (h *Hub) Register(id, url string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[id] = &session{conn: conn, url: url}
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, id)
}

// Navigate records a window's new URL after in-app navigation.
func (h *Hub) Navigate(id, url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[id]; ok {
		s.url = url
	}
}

// Broadcast sends a message to every connected window.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.sessions {
		if ok := s.conn.Send(message); !ok {
			// write failed; the ws handler cleans the session up
		}
	}
}

// Send delivers a message to one window.
func (h *Hub) Send(id string, message []byte) bool {
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return s.conn.Send(message)
}

// MatchAll snapshots the open windows for click routing.
func (h *Hub) MatchAll() []notify.Window {
	h.mu.RLock()
	defer h.mu.RUnlock()

	wins := make([]notify.Window, 0, len(h.sessions))
	for id, s := range h.sessions {
		wins = append(wins, notify.Window{ID: id, URL: s.url})
	}
	return wins
}

var _ notify.Registry = (*Hub)(nil)
