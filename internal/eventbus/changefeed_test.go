package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"karaoke-service/internal/db"
	"karaoke-service/internal/mocks"
	"karaoke-service/internal/models"
	"karaoke-service/internal/repositories"
)

func TestFeedsPublishAfterWrites(t *testing.T) {
	database, err := db.Connect(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	defer database.Close()

	bus := NewMemory()
	ctx := context.Background()
	sessions := NewSessionFeed(repositories.NewSessionRepo(database), bus)
	participants := NewParticipantFeed(repositories.NewParticipantRepo(database), bus)
	messages := NewMessageFeed(repositories.NewChatMessageRepo(database), bus)

	created, err := sessions.CreateSession(ctx, models.Session{RoomCode: "ABC123", HostID: "host"})
	require.NoError(t, err)

	var rec recorder
	_, err = bus.Subscribe(ctx, created.ID, rec.handle)
	require.NoError(t, err)

	_, err = sessions.UpdatePlayback(ctx, created.ID, models.Playback{SongID: "song-1", IsPlaying: true})
	require.NoError(t, err)
	_, err = sessions.UpdateElapsed(ctx, created.ID, "song-1", 100)
	require.NoError(t, err)
	_, _, err = participants.JoinParticipant(ctx, models.Participant{SessionID: created.ID, UserID: "host", Username: "host", IsHost: true})
	require.NoError(t, err)
	_, err = messages.CreateMessage(ctx, models.ChatMessage{SessionID: created.ID, UserID: "host", Username: "host", Message: "hi"})
	require.NoError(t, err)
	require.NoError(t, participants.RemoveParticipant(ctx, created.ID, "host"))
	require.NoError(t, sessions.DeleteSession(ctx, created.ID))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 6 }, time.Second, 5*time.Millisecond)
	kinds := make([]string, 0, 6)
	for _, ev := range rec.snapshot() {
		kinds = append(kinds, ev.Kind())
	}
	assert.Equal(t, []string{KindSessionChanged, KindSessionChanged, KindParticipantsChanged, KindChatInserted, KindParticipantsChanged, KindSessionEnded}, kinds)
}

func TestFeedDoesNotPublishFailedWrites(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	bus := NewMemory()
	feed := NewSessionFeed(repo, bus)

	var rec recorder
	_, err := bus.Subscribe(context.Background(), "s1", rec.handle)
	require.NoError(t, err)

	repo.On("UpdateElapsed", mock.Anything, "s1", "song-1", int64(5)).Return(models.Session{}, assert.AnError).Once()

	_, err = feed.UpdateElapsed(context.Background(), "s1", "song-1", 5)
	require.ErrorIs(t, err, assert.AnError)
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
	repo.AssertExpectations(t)
}

func TestAMQPBridgePublishesEncodedEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	bridge := NewAMQPBridge(publisher, nil, NewMemory())

	ev := ChatInserted{Message: models.ChatMessage{ID: "m1", SessionID: "s1", Message: "hi"}}
	publisher.On("Publish", mock.Anything, "session.chat_inserted", mock.Anything, map[string]string(nil)).Return(nil).Once()

	require.NoError(t, bridge.Publish(context.Background(), ev))
	publisher.AssertExpectations(t)
}

func TestAMQPBridgeWrapsPublishError(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	bridge := NewAMQPBridge(publisher, nil, NewMemory())

	publisher.On("Publish", mock.Anything, "session.session_ended", mock.Anything, map[string]string(nil)).Return(assert.AnError).Once()

	err := bridge.Publish(context.Background(), SessionEnded{ID: "s1"})
	require.ErrorIs(t, err, assert.AnError)
}
