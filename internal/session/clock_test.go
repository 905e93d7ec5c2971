package session

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

var testSong = models.Song{
	ID:    "song-1",
	Title: "Song One",
	Lyrics: []models.LyricLine{
		{TimeOffsetSeconds: 0, Text: "a"},
		{TimeOffsetSeconds: 4, Text: "b"},
	},
}

var otherSong = models.Song{
	ID:    "song-2",
	Title: "Song Two",
	Lyrics: []models.LyricLine{
		{TimeOffsetSeconds: 1, Text: "x"},
		{TimeOffsetSeconds: 2, Text: "y"},
	},
}

func TestClockStartsFromStoredRow(t *testing.T) {
	clock := NewClock(nil, models.Session{ID: "s1", IsPlaying: true, CurrentTimeMs: 4500}, testSong, false)

	state := clock.State()
	assert.True(t, state.IsPlaying)
	assert.Equal(t, 4.5, state.ElapsedSeconds)
	assert.Equal(t, 1, state.LyricIndex)
	assert.Equal(t, "b", state.Line)
}

func TestClockToggleByParticipantIsRejectedWithoutWrite(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	clock := NewClock(repo, models.Session{ID: "s1"}, testSong, false)

	err := clock.TogglePlayback(context.Background())

	require.ErrorIs(t, err, ErrUnauthorized)
	assert.False(t, clock.IsPlaying())
	repo.AssertNotCalled(t, "UpdatePlayback", mock.Anything, mock.Anything, mock.Anything)
}

func TestClockToggleWritesPlayback(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	clock := NewClock(repo, models.Session{ID: "s1", CurrentTimeMs: 1200}, testSong, true)
	repo.On("UpdatePlayback", mock.Anything, "s1", models.Playback{SongID: "song-1", IsPlaying: true, CurrentTimeMs: 1200}).
		Return(models.Session{}, nil).Once()

	require.NoError(t, clock.TogglePlayback(context.Background()))
	assert.True(t, clock.IsPlaying())
	repo.AssertExpectations(t)
}

func TestClockToggleStoreFailureKeepsState(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	clock := NewClock(repo, models.Session{ID: "s1"}, testSong, true)
	repo.On("UpdatePlayback", mock.Anything, "s1", mock.Anything).Return(models.Session{}, assert.AnError).Once()

	err := clock.TogglePlayback(context.Background())

	require.ErrorIs(t, err, ErrStoreFailure)
	require.ErrorIs(t, err, assert.AnError)
	assert.False(t, clock.IsPlaying())
}

func TestClockChangeSongResets(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	clock := NewClock(repo, models.Session{ID: "s1", IsPlaying: true, CurrentTimeMs: 12_300}, testSong, true)
	repo.On("UpdatePlayback", mock.Anything, "s1", models.Playback{SongID: "song-2", IsPlaying: false, CurrentTimeMs: 0}).
		Return(models.Session{}, nil).Once()

	require.NoError(t, clock.ChangeSong(context.Background(), otherSong))

	state := clock.State()
	assert.Equal(t, "song-2", state.SongID)
	assert.False(t, state.IsPlaying)
	assert.Zero(t, state.ElapsedSeconds)
	assert.Zero(t, state.LyricIndex)
	repo.AssertExpectations(t)
}

func TestClockChangeSongByParticipantIsRejected(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	clock := NewClock(repo, models.Session{ID: "s1", IsPlaying: true, CurrentTimeMs: 3000}, testSong, false)

	require.ErrorIs(t, clock.ChangeSong(context.Background(), otherSong), ErrUnauthorized)
	assert.Equal(t, "song-1", clock.SongID())
	assert.True(t, clock.IsPlaying())
}

func TestClockTickHostWritesElapsed(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	clock := NewClock(repo, models.Session{ID: "s1", IsPlaying: true, CurrentTimeMs: 3900}, testSong, true)

	written := make(chan int64, 1)
	repo.On("UpdateElapsed", mock.Anything, "s1", "song-1", int64(4000)).
		Run(func(args mock.Arguments) { written <- args.Get(3).(int64) }).
		Return(models.Session{}, nil).Once()

	moved := clock.Tick(100 * time.Millisecond)

	assert.True(t, moved)
	assert.Equal(t, 1, clock.State().LyricIndex)
	select {
	case ms := <-written:
		assert.Equal(t, int64(4000), ms)
	case <-time.After(time.Second):
		t.Fatal("tick write was not issued")
	}
}

func TestClockTickParticipantNeverWrites(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	clock := NewClock(repo, models.Session{ID: "s1", IsPlaying: true}, testSong, false)

	clock.Tick(5 * time.Second)

	assert.Equal(t, 1, clock.State().LyricIndex)
	time.Sleep(20 * time.Millisecond)
	repo.AssertNotCalled(t, "UpdateElapsed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClockTickWhilePausedIsIgnored(t *testing.T) {
	repo := new(mocks.SessionRepositoryMock)
	clock := NewClock(repo, models.Session{ID: "s1"}, testSong, true)

	assert.False(t, clock.Tick(time.Second))
	assert.Zero(t, clock.State().ElapsedSeconds)
	time.Sleep(20 * time.Millisecond)
	repo.AssertNotCalled(t, "UpdateElapsed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestClockApplyRemoteState(t *testing.T) {
	clock := NewClock(nil, models.Session{ID: "s1"}, testSong, false)

	require.NoError(t, clock.ApplyRemoteState(models.Session{ID: "s1", CurrentSongID: "song-2", IsPlaying: true, CurrentTimeMs: 2500}, otherSong))

	state := clock.State()
	assert.Equal(t, "song-2", state.SongID)
	assert.True(t, state.IsPlaying)
	assert.Equal(t, 1, state.LyricIndex)
	assert.Equal(t, "y", state.Line)

	host := NewClock(nil, models.Session{ID: "s1"}, testSong, true)
	assert.ErrorIs(t, host.ApplyRemoteState(models.Session{IsPlaying: true}, testSong), ErrUnauthorized)
	assert.False(t, host.IsPlaying())
}

// heldTickWrites delays every position write until release is closed.
type heldTickWrites struct {
	repositories.SessionRepository
	release chan struct{}
	results chan error
}

func (h *heldTickWrites) UpdateElapsed(ctx context.Context, sessionID, songID string, currentTimeMs int64) (models.Session, error) {
	<-h.release
	updated, err := h.SessionRepository.UpdateElapsed(ctx, sessionID, songID, currentTimeMs)
	h.results <- err
	return updated, err
}

func TestClockLateTickWriteDoesNotUndoSongChange(t *testing.T) {
	ctx := context.Background()
	database, err := db.Connect(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := repositories.NewSessionRepo(database)
	created, err := store.CreateSession(ctx, models.Session{RoomCode: "LATE01", HostID: "host", CurrentSongID: testSong.ID})
	require.NoError(t, err)

	held := &heldTickWrites{SessionRepository: store, release: make(chan struct{}), results: make(chan error, 1)}
	clock := NewClock(held, created, testSong, true)

	require.NoError(t, clock.TogglePlayback(ctx))
	clock.Tick(5 * time.Second)
	require.NoError(t, clock.ChangeSong(ctx, otherSong))
	close(held.release)

	select {
	case err := <-held.results:
		assert.ErrorIs(t, err, repositories.ErrPlaybackMoved)
	case <-time.After(time.Second):
		t.Fatal("tick write was not issued")
	}

	row, err := store.GetSession(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, otherSong.ID, row.CurrentSongID)
	assert.False(t, row.IsPlaying)
	assert.Zero(t, row.CurrentTimeMs)
}
