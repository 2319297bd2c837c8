package ws

import (
	"context"
	"log"
	"sync"

	"avenir-sync/internal/models"
	"avenir-sync/internal/observability"
)

// Hub maintains active realtime sessions keyed by user id. Events are routed
// by user, not by room: a conversation event goes to each participant's
// sessions, help requests fan out to every connected advisor.
type Hub struct {
	sessions map[int]map[EventWriter]ConnInfo
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[int]map[EventWriter]ConnInfo)}
}

// Add registers a session for a user.
func (h *Hub) Add(userID int, w EventWriter, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[userID]; !ok {
		h.sessions[userID] = make(map[EventWriter]ConnInfo)
	}
	h.sessions[userID][w] = info
}

// Remove drops a session.
func (h *Hub) Remove(userID int, w EventWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if writers, ok := h.sessions[userID]; ok {
		delete(writers, w)
		if len(writers) == 0 {
			delete(h.sessions, userID)
		}
	}
}

// SendToUser delivers an event to every session of a user.
func (h *Hub) SendToUser(userID int, ev models.EventFrame) {
	h.mu.RLock()
	targets := make(map[EventWriter]ConnInfo, len(h.sessions[userID]))
	for w, info := range h.sessions[userID] {
		targets[w] = info
	}
	h.mu.RUnlock()

	for w, info := range targets {
		if err := w.WriteEvent(ev); err != nil {
			log.Printf("session write error: %v", err)
			w.Close()
			h.Remove(userID, w)
			h.publishWSError(info, err)
		}
	}
	observability.IncWSEvent(ev.Type)
}

// BroadcastToAdvisors delivers an event to every connected advisor session.
func (h *Hub) BroadcastToAdvisors(ev models.EventFrame) {
	h.mu.RLock()
	targets := make(map[EventWriter]ConnInfo)
	for _, writers := range h.sessions {
		for w, info := range writers {
			if info.Role == models.RoleAdvisor {
				targets[w] = info
			}
		}
	}
	h.mu.RUnlock()

	for w, info := range targets {
		if err := w.WriteEvent(ev); err != nil {
			log.Printf("session write error: %v", err)
			w.Close()
			h.Remove(info.UserID, w)
			h.publishWSError(info, err)
		}
	}
	observability.IncWSEvent(ev.Type)
}

func (h *Hub) publishWSError(info ConnInfo, err error) {
	observability.PublishSessionEvent(context.Background(), info.sessionEvent("ws_error", err.Error()), info.headers())
	observability.IncWSEvent("ws_error")
}
