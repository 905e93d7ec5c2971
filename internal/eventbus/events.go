// Package eventbus delivers row-change events for one session to its subscribers.
package eventbus

import (
	"encoding/json"
	"fmt"

	"karaoke-service/internal/models"
)

// Event kinds as they appear on the wire and in metrics.
const (
	KindSessionChanged      = "session_changed"
	KindSessionEnded        = "session_ended"
	KindParticipantsChanged = "participants_changed"
	KindChatInserted        = "chat_inserted"
)

// Event is one of SessionChanged, SessionEnded, ParticipantsChanged or ChatInserted.
type Event interface {
	Kind() string
	SessionID() string
	isEvent()
}

// SessionChanged carries the session row after a write.
type SessionChanged struct {
	Session models.Session
}

// SessionEnded is published when the session row is deleted.
type SessionEnded struct {
	ID string
}

// ParticipantsChanged signals that the roster must be re-fetched.
type ParticipantsChanged struct {
	ID string
}

// ChatInserted carries a newly stored chat message.
type ChatInserted struct {
	Message models.ChatMessage
}

func (SessionChanged) Kind() string      { return KindSessionChanged }
func (SessionEnded) Kind() string        { return KindSessionEnded }
func (ParticipantsChanged) Kind() string { return KindParticipantsChanged }
func (ChatInserted) Kind() string        { return KindChatInserted }

func (e SessionChanged) SessionID() string      { return e.Session.ID }
func (e SessionEnded) SessionID() string        { return e.ID }
func (e ParticipantsChanged) SessionID() string { return e.ID }
func (e ChatInserted) SessionID() string        { return e.Message.SessionID }

func (SessionChanged) isEvent()      {}
func (SessionEnded) isEvent()        {}
func (ParticipantsChanged) isEvent() {}
func (ChatInserted) isEvent()        {}

// Envelope is the JSON form of an Event used between processes.
type Envelope struct {
	Kind      string              `json:"kind"`
	SessionID string              `json:"session_id"`
	Session   *models.Session     `json:"session,omitempty"`
	Message   *models.ChatMessage `json:"message,omitempty"`
}

// Encode marshals an event into its envelope form.
func Encode(ev Event) ([]byte, error) {
	env := Envelope{Kind: ev.Kind(), SessionID: ev.SessionID()}
	switch e := ev.(type) {
	case SessionChanged:
		env.Session = &e.Session
	case ChatInserted:
		env.Message = &e.Message
	}
	return json.Marshal(env)
}

// Decode parses an envelope back into a typed event.
func Decode(body []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Kind {
	case KindSessionChanged:
		if env.Session == nil {
			return nil, fmt.Errorf("decode envelope: %s without session", env.Kind)
		}
		return SessionChanged{Session: *env.Session}, nil
	case KindSessionEnded:
		return SessionEnded{ID: env.SessionID}, nil
	case KindParticipantsChanged:
		return ParticipantsChanged{ID: env.SessionID}, nil
	case KindChatInserted:
		if env.Message == nil {
			return nil, fmt.Errorf("decode envelope: %s without message", env.Kind)
		}
		return ChatInserted{Message: *env.Message}, nil
	default:
		return nil, fmt.Errorf("decode envelope: unknown kind %q", env.Kind)
	}
}
