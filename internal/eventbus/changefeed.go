package eventbus

import (
	"context"
	"log"
	"time"

	"karaoke-service/internal/models"
	"karaoke-service/internal/repositories"
)

const publishTimeout = 2 * time.Second

// The feeds wrap repositories and publish a row-change event after every successful write.
// Publish failures are logged; the write itself has already happened.

// SessionFeed publishes SessionChanged and SessionEnded.
type SessionFeed struct {
	repositories.SessionRepository
	publisher Publisher
}

// NewSessionFeed wraps a session repository.
func NewSessionFeed(repo repositories.SessionRepository, publisher Publisher) *SessionFeed {
	return &SessionFeed{SessionRepository: repo, publisher: publisher}
}

func (f *SessionFeed) CreateSession(ctx context.Context, session models.Session) (models.Session, error) {
	created, err := f.SessionRepository.CreateSession(ctx, session)
	if err == nil {
		publish(f.publisher, SessionChanged{Session: created})
	}
	return created, err
}

func (f *SessionFeed) UpdatePlayback(ctx context.Context, sessionID string, playback models.Playback) (models.Session, error) {
	updated, err := f.SessionRepository.UpdatePlayback(ctx, sessionID, playback)
	if err == nil {
		publish(f.publisher, SessionChanged{Session: updated})
	}
	return updated, err
}

func (f *SessionFeed) UpdateElapsed(ctx context.Context, sessionID, songID string, currentTimeMs int64) (models.Session, error) {
	updated, err := f.SessionRepository.UpdateElapsed(ctx, sessionID, songID, currentTimeMs)
	if err == nil {
		publish(f.publisher, SessionChanged{Session: updated})
	}
	return updated, err
}

func (f *SessionFeed) DeleteSession(ctx context.Context, sessionID string) error {
	err := f.SessionRepository.DeleteSession(ctx, sessionID)
	if err == nil {
		publish(f.publisher, SessionEnded{ID: sessionID})
	}
	return err
}

// ParticipantFeed publishes ParticipantsChanged on every roster write, including no-op joins.
type ParticipantFeed struct {
	repositories.ParticipantRepository
	publisher Publisher
}

// NewParticipantFeed wraps a participant repository.
func NewParticipantFeed(repo repositories.ParticipantRepository, publisher Publisher) *ParticipantFeed {
	return &ParticipantFeed{ParticipantRepository: repo, publisher: publisher}
}

func (f *ParticipantFeed) JoinParticipant(ctx context.Context, participant models.Participant) (models.Participant, bool, error) {
	stored, created, err := f.ParticipantRepository.JoinParticipant(ctx, participant)
	if err == nil {
		publish(f.publisher, ParticipantsChanged{ID: participant.SessionID})
	}
	return stored, created, err
}

func (f *ParticipantFeed) RemoveParticipant(ctx context.Context, sessionID string, userID string) error {
	err := f.ParticipantRepository.RemoveParticipant(ctx, sessionID, userID)
	if err == nil {
		publish(f.publisher, ParticipantsChanged{ID: sessionID})
	}
	return err
}

// MessageFeed publishes ChatInserted.
type MessageFeed struct {
	repositories.ChatMessageRepository
	publisher Publisher
}

// NewMessageFeed wraps a chat message repository.
func NewMessageFeed(repo repositories.ChatMessageRepository, publisher Publisher) *MessageFeed {
	return &MessageFeed{ChatMessageRepository: repo, publisher: publisher}
}

func (f *MessageFeed) CreateMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	stored, err := f.ChatMessageRepository.CreateMessage(ctx, msg)
	if err == nil {
		publish(f.publisher, ChatInserted{Message: stored})
	}
	return stored, err
}

func publish(publisher Publisher, ev Event) {
	if publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := publisher.Publish(ctx, ev); err != nil {
		log.Printf("eventbus: publish %s session=%s failed: %v", ev.Kind(), ev.SessionID(), err)
	}
}

var (
	_ repositories.SessionRepository     = (*SessionFeed)(nil)
	_ repositories.ParticipantRepository = (*ParticipantFeed)(nil)
	_ repositories.ChatMessageRepository = (*MessageFeed)(nil)
)
