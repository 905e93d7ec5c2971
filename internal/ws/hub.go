package ws

import (
	"context"
	"sync"
	"time"

	"karaoke-service/internal/observability"
)

// Hub tracks which gateway connections are in which session.
type Hub struct {
	sessions map[string]map[*Client]ConnInfo
	mu       sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[*Client]ConnInfo),
	}
}

// Attach registers a connection under a session.
func (h *Hub) Attach(sessionID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[sessionID]; !ok {
		h.sessions[sessionID] = make(map[*Client]ConnInfo)
	}
	h.sessions[sessionID][client] = client.info
}

// Detach removes a connection from a session.
func (h *Hub) Detach(sessionID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.sessions[sessionID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.sessions, sessionID)
		}
	}
}

// Count returns the number of live connections in a session.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// Sessions returns the number of sessions with at least one connection.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) publishWSError(sessionID string, client *Client, err error) {
	info := client.info
	if sessionID != "" {
		h.mu.RLock()
		if stored, ok := h.sessions[sessionID][client]; ok {
			info = stored
		}
		h.mu.RUnlock()
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), wsRoutingKey, observability.NewWSEvent("ws_error",
		wsEventPayload("ws_error", sessionID, info, time.Since(info.ConnectedAt).Milliseconds(), err.Error())), headers)
	observability.IncWSEvent(wsKind, "ws_error")
}
