package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karaoke-service/internal/db"
	"karaoke-service/internal/models"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	database, err := db.Connect(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestSessionRepoLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepo(openTestDB(t))

	created, err := repo.CreateSession(ctx, models.Session{RoomCode: "ABC123", HostID: "host", CurrentSongID: "song-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.IsPlaying)

	found, err := repo.FindByRoomCode(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "host", found.HostID)

	updated, err := repo.UpdatePlayback(ctx, created.ID, models.Playback{SongID: "song-2", IsPlaying: true, CurrentTimeMs: 0})
	require.NoError(t, err)
	assert.Equal(t, "song-2", updated.CurrentSongID)
	assert.True(t, updated.IsPlaying)

	updated, err = repo.UpdateElapsed(ctx, created.ID, "song-2", 4200)
	require.NoError(t, err)
	assert.Equal(t, int64(4200), updated.CurrentTimeMs)
	assert.True(t, updated.IsPlaying)
	assert.Equal(t, "song-2", updated.CurrentSongID)

	require.NoError(t, repo.DeleteSession(ctx, created.ID))
	_, err = repo.GetSession(ctx, created.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = repo.FindByRoomCode(ctx, "ABC123")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, repo.DeleteSession(ctx, created.ID), ErrSessionNotFound)
	_, err = repo.UpdateElapsed(ctx, created.ID, "song-2", 1)
	assert.ErrorIs(t, err, ErrPlaybackMoved)
}

func TestSessionRepoUpdateElapsedIgnoresStalePositions(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepo(openTestDB(t))

	created, err := repo.CreateSession(ctx, models.Session{RoomCode: "ABC123", HostID: "host", CurrentSongID: "song-1"})
	require.NoError(t, err)

	_, err = repo.UpdateElapsed(ctx, created.ID, "song-1", 700)
	assert.ErrorIs(t, err, ErrPlaybackMoved, "paused")

	_, err = repo.UpdatePlayback(ctx, created.ID, models.Playback{SongID: "song-1", IsPlaying: true})
	require.NoError(t, err)
	_, err = repo.UpdateElapsed(ctx, created.ID, "song-1", 5000)
	require.NoError(t, err)

	_, err = repo.UpdatePlayback(ctx, created.ID, models.Playback{SongID: "song-2"})
	require.NoError(t, err)
	_, err = repo.UpdateElapsed(ctx, created.ID, "song-1", 5100)
	assert.ErrorIs(t, err, ErrPlaybackMoved, "song changed")

	row, err := repo.GetSession(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "song-2", row.CurrentSongID)
	assert.False(t, row.IsPlaying)
	assert.Zero(t, row.CurrentTimeMs)
}

func TestSessionRepoRoomCodeCollisionPicksNewest(t *testing.T) {
	ctx := context.Background()
	repo := NewSessionRepo(openTestDB(t))
	base := time.Now().UTC()

	_, err := repo.CreateSession(ctx, models.Session{RoomCode: "SAME01", HostID: "old", CreatedAt: base.Add(-time.Minute)})
	require.NoError(t, err)
	_, err = repo.CreateSession(ctx, models.Session{RoomCode: "SAME01", HostID: "new", CreatedAt: base})
	require.NoError(t, err)

	found, err := repo.FindByRoomCode(ctx, "SAME01")
	require.NoError(t, err)
	assert.Equal(t, "new", found.HostID)
}

func TestParticipantRepoJoinIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewParticipantRepo(openTestDB(t))

	first, created, err := repo.JoinParticipant(ctx, models.Participant{SessionID: "s1", UserID: "u1", Username: "alice", IsHost: true})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := repo.JoinParticipant(ctx, models.Participant{SessionID: "s1", UserID: "u1", Username: "alice again"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "alice", second.Username)
	assert.True(t, second.IsHost)

	count, err := repo.CountParticipants(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestParticipantRepoListOrderAndRemove(t *testing.T) {
	ctx := context.Background()
	repo := NewParticipantRepo(openTestDB(t))
	base := time.Now().UTC()

	_, _, err := repo.JoinParticipant(ctx, models.Participant{SessionID: "s1", UserID: "late", Username: "late", JoinedAt: base.Add(time.Second)})
	require.NoError(t, err)
	_, _, err = repo.JoinParticipant(ctx, models.Participant{SessionID: "s1", UserID: "early", Username: "early", JoinedAt: base})
	require.NoError(t, err)
	_, _, err = repo.JoinParticipant(ctx, models.Participant{SessionID: "s2", UserID: "other", Username: "other"})
	require.NoError(t, err)

	list, err := repo.ListParticipants(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "early", list[0].UserID)
	assert.Equal(t, "late", list[1].UserID)

	require.NoError(t, repo.RemoveParticipant(ctx, "s1", "early"))
	require.NoError(t, repo.RemoveParticipant(ctx, "s1", "missing"))
	_, err = repo.GetParticipant(ctx, "s1", "early")
	assert.ErrorIs(t, err, ErrParticipantNotFound)

	list, err = repo.ListParticipants(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func seedSession(t *testing.T, database *sqlx.DB) string {
	t.Helper()
	created, err := NewSessionRepo(database).CreateSession(context.Background(), models.Session{RoomCode: "CHAT01", HostID: "host"})
	require.NoError(t, err)
	return created.ID
}

func TestChatMessageRepoRecentWindow(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	repo := NewChatMessageRepo(database)
	sessionID := seedSession(t, database)

	for i := 0; i < 5; i++ {
		_, err := repo.CreateMessage(ctx, models.ChatMessage{SessionID: sessionID, UserID: "u", Username: "u", Message: string(rune('a' + i))})
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	msgs, err := repo.ListRecentMessages(ctx, sessionID, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "c", msgs[0].Message)
	assert.Equal(t, "d", msgs[1].Message)
	assert.Equal(t, "e", msgs[2].Message)
	assert.False(t, msgs[0].CreatedAt.After(msgs[2].CreatedAt))
}

func TestChatMessageRepoAssignsTimestamp(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	repo := NewChatMessageRepo(database)
	sessionID := seedSession(t, database)

	before := time.Now().UTC().Add(-time.Second)
	msg, err := repo.CreateMessage(ctx, models.ChatMessage{SessionID: sessionID, UserID: "u", Username: "u", Message: "hi", CreatedAt: time.Unix(0, 0)})
	require.NoError(t, err)
	assert.True(t, msg.CreatedAt.After(before))
	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, sessionID, msg.SessionID)
}

func TestChatMessageRepoRejectsMissingSession(t *testing.T) {
	ctx := context.Background()
	database := openTestDB(t)
	repo := NewChatMessageRepo(database)
	sessionID := seedSession(t, database)
	require.NoError(t, NewSessionRepo(database).DeleteSession(ctx, sessionID))

	for _, id := range []string{sessionID, "never-existed"} {
		_, err := repo.CreateMessage(ctx, models.ChatMessage{SessionID: id, UserID: "u", Username: "u", Message: "late"})
		assert.ErrorIs(t, err, ErrSessionNotFound, id)
	}

	msgs, err := repo.ListRecentMessages(ctx, sessionID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestSongRepoUpsertAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSongRepo(openTestDB(t))

	song := models.Song{ID: "song-1", Title: "Song One", Artist: "Band", Lyrics: []models.LyricLine{
		{TimeOffsetSeconds: 0, Text: "a"},
		{TimeOffsetSeconds: 4, Text: "b"},
	}}
	require.NoError(t, repo.UpsertSong(ctx, song))

	got, err := repo.GetSong(ctx, "song-1")
	require.NoError(t, err)
	assert.Equal(t, song, got)

	song.Title = "Song One (Live)"
	song.Lyrics = song.Lyrics[:1]
	require.NoError(t, repo.UpsertSong(ctx, song))

	songs, err := repo.ListSongs(ctx)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "Song One (Live)", songs[0].Title)
	assert.Len(t, songs[0].Lyrics, 1)

	_, err = repo.GetSong(ctx, "missing")
	assert.ErrorIs(t, err, ErrSongNotFound)
}
