package session

import (
	"context"
	"errors"

	"karaoke-service/internal/models"
	"karaoke-service/internal/repositories"
)

// Roster keeps the participant list of one session. The cache is only ever replaced
// wholesale by Refresh. Not safe for concurrent use.
type Roster struct {
	participants repositories.ParticipantRepository
	sessions     repositories.SessionRepository
	cache        []models.Participant
}

func NewRoster(participants repositories.ParticipantRepository, sessions repositories.SessionRepository) *Roster {
	return &Roster{participants: participants, sessions: sessions}
}

// Join adds the user unless already present and returns the stored participant.
func (r *Roster) Join(ctx context.Context, sessionID, userID, username string, isHost bool) (models.Participant, error) {
	p, _, err := r.participants.JoinParticipant(ctx, models.Participant{
		SessionID: sessionID,
		UserID:    userID,
		Username:  username,
		IsHost:    isHost,
	})
	if err != nil {
		return models.Participant{}, storeFailure("join_participant", err)
	}
	return p, nil
}

// Leave removes the user. When the user is the host the session row is deleted as well.
// Both steps run even if the first fails.
func (r *Roster) Leave(ctx context.Context, session models.Session, userID string) error {
	var errs []error
	if err := r.participants.RemoveParticipant(ctx, session.ID, userID); err != nil {
		errs = append(errs, storeFailure("remove_participant", err))
	}
	if userID == session.HostID {
		err := r.sessions.DeleteSession(ctx, session.ID)
		if err != nil && !errors.Is(err, repositories.ErrSessionNotFound) {
			errs = append(errs, storeFailure("delete_session", err))
		}
	}
	return errors.Join(errs...)
}

// List reads the roster from the store, oldest join first.
func (r *Roster) List(ctx context.Context, sessionID string) ([]models.Participant, error) {
	list, err := r.participants.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, storeFailure("list_participants", err)
	}
	return list, nil
}

// Refresh replaces the cache with the stored roster.
func (r *Roster) Refresh(ctx context.Context, sessionID string) error {
	list, err := r.List(ctx, sessionID)
	if err != nil {
		return err
	}
	r.cache = list
	return nil
}

// Participants returns a copy of the cached roster.
func (r *Roster) Participants() []models.Participant {
	out := make([]models.Participant, len(r.cache))
	copy(out, r.cache)
	return out
}
