package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"karaoke-service/internal/models"
	"karaoke-service/internal/repositories"
	"karaoke-service/internal/session"
)

const maxMessagesLimit = 200

// ConnectionCounter reports live gateway connections per session.
type ConnectionCounter interface {
	Count(sessionID string) int
}

// SessionHandler serves read-only views of sessions by room code.
type SessionHandler struct {
	sessions     repositories.SessionRepository
	participants repositories.ParticipantRepository
	messages     repositories.ChatMessageRepository
	connections  ConnectionCounter
}

// NewSessionHandler builds a SessionHandler.
func NewSessionHandler(sessions repositories.SessionRepository, participants repositories.ParticipantRepository, messages repositories.ChatMessageRepository, connections ConnectionCounter) *SessionHandler {
	return &SessionHandler{
		sessions:     sessions,
		participants: participants,
		messages:     messages,
		connections:  connections,
	}
}

// GetSession returns the session for a room code with roster and connection counts.
func (h *SessionHandler) GetSession(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	count, err := h.participants.CountParticipants(c.Request.Context(), s.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count participants"})
		return
	}

	connections := 0
	if h.connections != nil {
		connections = h.connections.Count(s.ID)
	}

	c.JSON(http.StatusOK, gin.H{
		"session":           s,
		"participant_count": count,
		"connection_count":  connections,
	})
}

// ListParticipants returns the roster, oldest join first.
func (h *SessionHandler) ListParticipants(c *gin.Context) {
	s, ok := h.lookup(c)
	if !ok {
		return
	}

	list, err := h.participants.ListParticipants(c.Request.Context(), s.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load participants"})
		return
	}
	if list == nil {
		list = []models.Participant{}
	}
	c.JSON(http.StatusOK, gin.H{"participants": list})
}

// ListMessages returns the newest chat messages, oldest first.
func (h *SessionHandler) ListMessages(c *gin.Context) {
	limit := session.ChatWindow
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxMessagesLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	s, ok := h.lookup(c)
	if !ok {
		return
	}

	msgs, err := h.messages.ListRecentMessages(c.Request.Context(), s.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *SessionHandler) lookup(c *gin.Context) (models.Session, bool) {
	code := session.NormalizeRoomCode(c.Param("room_code"))
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room code"})
		return models.Session{}, false
	}

	s, err := h.sessions.FindByRoomCode(c.Request.Context(), code)
	if errors.Is(err, repositories.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return models.Session{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
		return models.Session{}, false
	}
	return s, true
}
