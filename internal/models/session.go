package models

import "time"

// Session is one karaoke room. HostID never changes for the lifetime of the row.
type Session struct {
	ID            string    `json:"id"`
	RoomCode      string    `json:"room_code"`
	HostID        string    `json:"host_id"`
	CurrentSongID string    `json:"current_song_id"`
	IsPlaying     bool      `json:"is_playing"`
	CurrentTimeMs int64     `json:"current_time_ms"`
	CreatedAt     time.Time `json:"created_at"`
}

// Playback is the set of session fields written only by the host.
type Playback struct {
	SongID        string `json:"song_id"`
	IsPlaying     bool   `json:"is_playing"`
	CurrentTimeMs int64  `json:"current_time_ms"`
}

// Playback returns the host-owned fields of the session.
func (s Session) Playback() Playback {
	return Playback{SongID: s.CurrentSongID, IsPlaying: s.IsPlaying, CurrentTimeMs: s.CurrentTimeMs}
}

// Participant is one joined user, the host included.
type Participant struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	IsHost    bool      `json:"is_host"`
	JoinedAt  time.Time `json:"joined_at"`
}
