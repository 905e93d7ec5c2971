package session

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"karaoke-service/internal/lyrics"
	"karaoke-service/internal/models"
	"karaoke-service/internal/observability"
	"karaoke-service/internal/repositories"
)

const tickWriteTimeout = 5 * time.Second

// PlaybackState is the clock as seen by the UI.
type PlaybackState struct {
	SongID         string  `json:"song_id"`
	IsPlaying      bool    `json:"is_playing"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	LyricIndex     int     `json:"lyric_index"`
	Line           string  `json:"line"`
}

// Clock tracks playback for one session. Only the host's clock writes to the store;
// a participant's clock follows the session row. Not safe for concurrent use.
type Clock struct {
	sessions  repositories.SessionRepository
	sessionID string
	isHost    bool

	song      models.Song
	isPlaying bool
	elapsed   float64
	index     int
}

// NewClock starts a clock from the stored session row.
func NewClock(sessions repositories.SessionRepository, session models.Session, song models.Song, isHost bool) *Clock {
	c := &Clock{
		sessions:  sessions,
		sessionID: session.ID,
		isHost:    isHost,
		song:      song,
		isPlaying: session.IsPlaying,
		elapsed:   float64(session.CurrentTimeMs) / 1000,
	}
	c.reindex()
	return c
}

func (c *Clock) IsPlaying() bool {
	return c.isPlaying
}

func (c *Clock) SongID() string {
	return c.song.ID
}

func (c *Clock) State() PlaybackState {
	return PlaybackState{
		SongID:         c.song.ID,
		IsPlaying:      c.isPlaying,
		ElapsedSeconds: c.elapsed,
		LyricIndex:     c.index,
		Line:           lyrics.LineAt(c.song.Lyrics, c.elapsed),
	}
}

// TogglePlayback flips play/pause and writes the playback row. Returns ErrUnauthorized
// for a participant clock without touching any state.
func (c *Clock) TogglePlayback(ctx context.Context) error {
	if !c.isHost {
		return ErrUnauthorized
	}
	next := models.Playback{
		SongID:        c.song.ID,
		IsPlaying:     !c.isPlaying,
		CurrentTimeMs: c.elapsedMs(),
	}
	if _, err := c.sessions.UpdatePlayback(ctx, c.sessionID, next); err != nil {
		observability.IncPlaybackWrite("toggle", "error")
		return storeFailure("toggle_playback", err)
	}
	observability.IncPlaybackWrite("toggle", "ok")
	c.isPlaying = next.IsPlaying
	return nil
}

// Tick advances a playing clock by delta and reports whether the lyric index moved.
// On the host the new position is written without waiting for the result, so writes
// may land out of order. Each write is scoped to the current song while playing, so a
// late one cannot undo a pause or song change.
func (c *Clock) Tick(delta time.Duration) bool {
	if !c.isPlaying {
		return false
	}
	before := c.index
	c.elapsed += delta.Seconds()
	c.reindex()

	if c.isHost {
		go c.writeElapsed(c.song.ID, c.elapsedMs())
	}
	return c.index != before
}

func (c *Clock) writeElapsed(songID string, ms int64) {
	ctx, cancel := context.WithTimeout(context.Background(), tickWriteTimeout)
	defer cancel()
	_, err := c.sessions.UpdateElapsed(ctx, c.sessionID, songID, ms)
	if errors.Is(err, repositories.ErrPlaybackMoved) {
		observability.IncPlaybackWrite("tick", "stale")
		return
	}
	if err != nil {
		observability.IncPlaybackWrite("tick", "error")
		log.Printf("session: tick write session=%s ms=%d failed: %v", c.sessionID, ms, err)
		return
	}
	observability.IncPlaybackWrite("tick", "ok")
}

// ChangeSong resets the clock to the start of song, paused, in a single row update.
func (c *Clock) ChangeSong(ctx context.Context, song models.Song) error {
	if !c.isHost {
		return ErrUnauthorized
	}
	if _, err := c.sessions.UpdatePlayback(ctx, c.sessionID, models.Playback{SongID: song.ID}); err != nil {
		observability.IncPlaybackWrite("change_song", "error")
		return storeFailure("change_song", err)
	}
	observability.IncPlaybackWrite("change_song", "ok")
	c.song = song
	c.isPlaying = false
	c.elapsed = 0
	c.index = 0
	return nil
}

// ApplyRemoteState overwrites a participant clock from a pushed session row.
// song must be the catalog entry for session.CurrentSongID.
func (c *Clock) ApplyRemoteState(session models.Session, song models.Song) error {
	if c.isHost {
		return ErrUnauthorized
	}
	c.song = song
	c.isPlaying = session.IsPlaying
	c.elapsed = float64(session.CurrentTimeMs) / 1000
	c.reindex()
	return nil
}

func (c *Clock) reindex() {
	c.index = lyrics.IndexFor(c.song.Lyrics, c.elapsed)
}

func (c *Clock) elapsedMs() int64 {
	return int64(math.Round(c.elapsed * 1000))
}
