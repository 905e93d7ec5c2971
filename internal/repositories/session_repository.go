package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"karaoke-service/internal/models"
)

var ErrSessionNotFound = errors.New("session not found")

// ErrPlaybackMoved reports a position write for a song that is no longer playing.
var ErrPlaybackMoved = errors.New("playback moved on")

// SessionRepository abstracts session persistence.
type SessionRepository interface {
	CreateSession(ctx context.Context, session models.Session) (models.Session, error)
	GetSession(ctx context.Context, sessionID string) (models.Session, error)
	FindByRoomCode(ctx context.Context, roomCode string) (models.Session, error)
	UpdatePlayback(ctx context.Context, sessionID string, playback models.Playback) (models.Session, error)
	UpdateElapsed(ctx context.Context, sessionID, songID string, currentTimeMs int64) (models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

type sessionRow struct {
	ID            string `db:"id"`
	RoomCode      string `db:"room_code"`
	HostID        string `db:"host_id"`
	CurrentSongID string `db:"current_song_id"`
	IsPlaying     bool   `db:"is_playing"`
	CurrentTimeMs int64  `db:"current_time_ms"`
	CreatedAt     int64  `db:"created_at"`
}

func (r sessionRow) model() models.Session {
	return models.Session{
		ID:            r.ID,
		RoomCode:      r.RoomCode,
		HostID:        r.HostID,
		CurrentSongID: r.CurrentSongID,
		IsPlaying:     r.IsPlaying,
		CurrentTimeMs: r.CurrentTimeMs,
		CreatedAt:     fromMillis(r.CreatedAt),
	}
}

const sessionColumns = `id, room_code, host_id, current_song_id, is_playing, current_time_ms, created_at`

// SessionRepo is a sqlx implementation of SessionRepository.
type SessionRepo struct {
	db *sqlx.DB
}

// NewSessionRepo constructs a SessionRepo.
func NewSessionRepo(db *sqlx.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// CreateSession inserts a session row. ID and CreatedAt are assigned when empty.
func (r *SessionRepo) CreateSession(ctx context.Context, session models.Session) (models.Session, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now()
	}

	var row sessionRow
	query := r.db.Rebind(`INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING ` + sessionColumns)
	err := r.db.QueryRowxContext(ctx, query,
		session.ID, session.RoomCode, session.HostID, session.CurrentSongID,
		session.IsPlaying, session.CurrentTimeMs, toMillis(session.CreatedAt),
	).StructScan(&row)
	if err != nil {
		return models.Session{}, err
	}
	return row.model(), nil
}

// GetSession fetches a session by id.
func (r *SessionRepo) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id=?`), sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, err
	}
	return row.model(), nil
}

// FindByRoomCode returns the newest session with the room code. Codes are not unique,
// so a collision resolves to the most recently created room.
func (r *SessionRepo) FindByRoomCode(ctx context.Context, roomCode string) (models.Session, error) {
	var row sessionRow
	query := r.db.Rebind(`SELECT ` + sessionColumns + ` FROM sessions WHERE room_code=? ORDER BY created_at DESC LIMIT 1`)
	err := r.db.GetContext(ctx, &row, query, roomCode)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, err
	}
	return row.model(), nil
}

// UpdatePlayback writes song, play state and position in one row update.
func (r *SessionRepo) UpdatePlayback(ctx context.Context, sessionID string, playback models.Playback) (models.Session, error) {
	query := r.db.Rebind(`UPDATE sessions SET current_song_id=?, is_playing=?, current_time_ms=? WHERE id=? RETURNING ` + sessionColumns)
	return r.updateReturning(ctx, query, playback.SongID, playback.IsPlaying, playback.CurrentTimeMs, sessionID)
}

// UpdateElapsed writes the playback position only, and only while songID is still
// the playing song. A write that arrives after a pause or song change, or after the
// session is gone, returns ErrPlaybackMoved and leaves the row alone.
func (r *SessionRepo) UpdateElapsed(ctx context.Context, sessionID, songID string, currentTimeMs int64) (models.Session, error) {
	query := r.db.Rebind(`UPDATE sessions SET current_time_ms=? WHERE id=? AND current_song_id=? AND is_playing=? RETURNING ` + sessionColumns)
	updated, err := r.updateReturning(ctx, query, currentTimeMs, sessionID, songID, true)
	if errors.Is(err, ErrSessionNotFound) {
		return models.Session{}, ErrPlaybackMoved
	}
	return updated, err
}

func (r *SessionRepo) updateReturning(ctx context.Context, query string, args ...any) (models.Session, error) {
	var row sessionRow
	err := r.db.QueryRowxContext(ctx, query, args...).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, err
	}
	return row.model(), nil
}

// DeleteSession removes the session row. Participant and chat rows are left to the store's cleanup policy.
func (r *SessionRepo) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM sessions WHERE id=?`), sessionID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrSessionNotFound
	}
	return nil
}
