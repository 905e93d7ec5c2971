package session

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"karaoke-service/internal/models"
	"karaoke-service/internal/observability"
	"karaoke-service/internal/repositories"
)

// ChatWindow is how many of the newest messages a client keeps.
const ChatWindow = 50

const chatWriteTimeout = 5 * time.Second

// Chat is the in-memory message log of one session. Not safe for concurrent use.
type Chat struct {
	messages repositories.ChatMessageRepository
	log      []models.ChatMessage
}

func NewChat(messages repositories.ChatMessageRepository) *Chat {
	return &Chat{messages: messages}
}

// Send stores a message without waiting for the result. Blank text is rejected
// before any store call; a failed insert is logged and dropped.
func (c *Chat) Send(ctx context.Context, sessionID, userID, username, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		observability.IncChatMessage("rejected")
		return ErrEmptyMessage
	}
	msg := models.ChatMessage{
		SessionID: sessionID,
		UserID:    userID,
		Username:  username,
		Message:   norm.NFC.String(text),
	}

	writeCtx := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(writeCtx, chatWriteTimeout)
		defer cancel()
		_, err := c.messages.CreateMessage(ctx, msg)
		if errors.Is(err, repositories.ErrSessionNotFound) {
			observability.IncChatMessage("session_gone")
			log.Printf("session: chat insert session=%s dropped, session ended", sessionID)
			return
		}
		if err != nil {
			observability.IncChatMessage("error")
			log.Printf("session: chat insert session=%s user=%s failed: %v", sessionID, userID, err)
			return
		}
		observability.IncChatMessage("ok")
	}()
	return nil
}

// Load replaces the log with the newest stored messages.
func (c *Chat) Load(ctx context.Context, sessionID string) error {
	msgs, err := c.messages.ListRecentMessages(ctx, sessionID, ChatWindow)
	if err != nil {
		return storeFailure("list_messages", err)
	}
	c.log = msgs
	return nil
}

// OnMessage adds a delivered message in created_at order and drops the oldest beyond
// ChatWindow. Redelivered messages are ignored. Reports whether the log changed.
func (c *Chat) OnMessage(msg models.ChatMessage) bool {
	for _, existing := range c.log {
		if existing.ID == msg.ID {
			return false
		}
	}
	pos := sort.Search(len(c.log), func(i int) bool {
		return c.log[i].CreatedAt.After(msg.CreatedAt)
	})
	c.log = append(c.log, models.ChatMessage{})
	copy(c.log[pos+1:], c.log[pos:])
	c.log[pos] = msg

	if len(c.log) > ChatWindow {
		c.log = append([]models.ChatMessage(nil), c.log[len(c.log)-ChatWindow:]...)
	}
	return true
}

// Messages returns a copy of the log, oldest first.
func (c *Chat) Messages() []models.ChatMessage {
	out := make([]models.ChatMessage, len(c.log))
	copy(out, c.log)
	return out
}
