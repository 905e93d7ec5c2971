package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"karaoke-service/internal/models"
	"karaoke-service/internal/repositories"
)

type SessionRepositoryMock struct {
	mock.Mock
}

func (m *SessionRepositoryMock) CreateSession(ctx context.Context, session models.Session) (models.Session, error) {
	args := m.Called(ctx, session)
	var out models.Session
	if val := args.Get(0); val != nil {
		out = val.(models.Session)
	}
	return out, args.Error(1)
}

func (m *SessionRepositoryMock) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	args := m.Called(ctx, sessionID)
	var out models.Session
	if val := args.Get(0); val != nil {
		out = val.(models.Session)
	}
	return out, args.Error(1)
}

func (m *SessionRepositoryMock) FindByRoomCode(ctx context.Context, roomCode string) (models.Session, error) {
	args := m.Called(ctx, roomCode)
	var out models.Session
	if val := args.Get(0); val != nil {
		out = val.(models.Session)
	}
	return out, args.Error(1)
}

func (m *SessionRepositoryMock) UpdatePlayback(ctx context.Context, sessionID string, playback models.Playback) (models.Session, error) {
	args := m.Called(ctx, sessionID, playback)
	var out models.Session
	if val := args.Get(0); val != nil {
		out = val.(models.Session)
	}
	return out, args.Error(1)
}

func (m *SessionRepositoryMock) UpdateElapsed(ctx context.Context, sessionID, songID string, currentTimeMs int64) (models.Session, error) {
	args := m.Called(ctx, sessionID, songID, currentTimeMs)
	var out models.Session
	if val := args.Get(0); val != nil {
		out = val.(models.Session)
	}
	return out, args.Error(1)
}

func (m *SessionRepositoryMock) DeleteSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

type ParticipantRepositoryMock struct {
	mock.Mock
}

func (m *ParticipantRepositoryMock) JoinParticipant(ctx context.Context, participant models.Participant) (models.Participant, bool, error) {
	args := m.Called(ctx, participant)
	var out models.Participant
	if val := args.Get(0); val != nil {
		out = val.(models.Participant)
	}
	return out, args.Bool(1), args.Error(2)
}

func (m *ParticipantRepositoryMock) GetParticipant(ctx context.Context, sessionID string, userID string) (models.Participant, error) {
	args := m.Called(ctx, sessionID, userID)
	var out models.Participant
	if val := args.Get(0); val != nil {
		out = val.(models.Participant)
	}
	return out, args.Error(1)
}

func (m *ParticipantRepositoryMock) RemoveParticipant(ctx context.Context, sessionID string, userID string) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

func (m *ParticipantRepositoryMock) ListParticipants(ctx context.Context, sessionID string) ([]models.Participant, error) {
	args := m.Called(ctx, sessionID)
	var list []models.Participant
	if val := args.Get(0); val != nil {
		list = val.([]models.Participant)
	}
	return list, args.Error(1)
}

func (m *ParticipantRepositoryMock) CountParticipants(ctx context.Context, sessionID string) (int, error) {
	args := m.Called(ctx, sessionID)
	return args.Int(0), args.Error(1)
}

type ChatMessageRepositoryMock struct {
	mock.Mock
}

func (m *ChatMessageRepositoryMock) CreateMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	args := m.Called(ctx, msg)
	var out models.ChatMessage
	if val := args.Get(0); val != nil {
		out = val.(models.ChatMessage)
	}
	return out, args.Error(1)
}

func (m *ChatMessageRepositoryMock) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	args := m.Called(ctx, sessionID, limit)
	var msgs []models.ChatMessage
	if val := args.Get(0); val != nil {
		msgs = val.([]models.ChatMessage)
	}
	return msgs, args.Error(1)
}

type SongRepositoryMock struct {
	mock.Mock
}

func (m *SongRepositoryMock) UpsertSong(ctx context.Context, song models.Song) error {
	args := m.Called(ctx, song)
	return args.Error(0)
}

func (m *SongRepositoryMock) GetSong(ctx context.Context, songID string) (models.Song, error) {
	args := m.Called(ctx, songID)
	var out models.Song
	if val := args.Get(0); val != nil {
		out = val.(models.Song)
	}
	return out, args.Error(1)
}

func (m *SongRepositoryMock) ListSongs(ctx context.Context) ([]models.Song, error) {
	args := m.Called(ctx)
	var songs []models.Song
	if val := args.Get(0); val != nil {
		songs = val.([]models.Song)
	}
	return songs, args.Error(1)
}

var _ repositories.SessionRepository = (*SessionRepositoryMock)(nil)
var _ repositories.ParticipantRepository = (*ParticipantRepositoryMock)(nil)
var _ repositories.ChatMessageRepository = (*ChatMessageRepositoryMock)(nil)
var _ repositories.SongRepository = (*SongRepositoryMock)(nil)
