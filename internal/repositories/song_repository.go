package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"karaoke-service/internal/models"
)

var ErrSongNotFound = errors.New("song not found")

// SongRepository reads and seeds the static song catalog.
type SongRepository interface {
	UpsertSong(ctx context.Context, song models.Song) error
	GetSong(ctx context.Context, songID string) (models.Song, error)
	ListSongs(ctx context.Context) ([]models.Song, error)
}

type lyricLineRow struct {
	SongID            string  `db:"song_id"`
	TimeOffsetSeconds float64 `db:"time_offset_seconds"`
	Text              string  `db:"text"`
}

// SongRepo is a sqlx implementation of SongRepository.
type SongRepo struct {
	db *sqlx.DB
}

// NewSongRepo constructs a SongRepo.
func NewSongRepo(db *sqlx.DB) *SongRepo {
	return &SongRepo{db: db}
}

// UpsertSong replaces a song and its lyric lines atomically.
func (r *SongRepo) UpsertSong(ctx context.Context, song models.Song) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO songs (id, title, artist) VALUES (?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET title = excluded.title, artist = excluded.artist`), song.ID, song.Title, song.Artist); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, tx.Rebind(`DELETE FROM lyric_lines WHERE song_id=?`), song.ID); err != nil {
		return err
	}
	for i, line := range song.Lyrics {
		if _, err = tx.ExecContext(ctx, tx.Rebind(`INSERT INTO lyric_lines (song_id, position, time_offset_seconds, text) VALUES (?, ?, ?, ?)`),
			song.ID, i, line.TimeOffsetSeconds, line.Text); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetSong fetches a song with its lyrics.
func (r *SongRepo) GetSong(ctx context.Context, songID string) (models.Song, error) {
	var song models.Song
	err := r.db.GetContext(ctx, &song, r.db.Rebind(`SELECT id, title, artist FROM songs WHERE id=?`), songID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Song{}, ErrSongNotFound
	}
	if err != nil {
		return models.Song{}, err
	}

	var lines []lyricLineRow
	if err := r.db.SelectContext(ctx, &lines, r.db.Rebind(`SELECT song_id, time_offset_seconds, text FROM lyric_lines WHERE song_id=? ORDER BY position ASC`), songID); err != nil {
		return models.Song{}, err
	}
	song.Lyrics = make([]models.LyricLine, 0, len(lines))
	for _, line := range lines {
		song.Lyrics = append(song.Lyrics, models.LyricLine{TimeOffsetSeconds: line.TimeOffsetSeconds, Text: line.Text})
	}
	return song, nil
}

// ListSongs returns the catalog ordered by title, lyrics included.
func (r *SongRepo) ListSongs(ctx context.Context) ([]models.Song, error) {
	var songs []models.Song
	if err := r.db.SelectContext(ctx, &songs, `SELECT id, title, artist FROM songs ORDER BY title ASC, id ASC`); err != nil {
		return nil, err
	}

	var lines []lyricLineRow
	if err := r.db.SelectContext(ctx, &lines, `SELECT song_id, time_offset_seconds, text FROM lyric_lines ORDER BY song_id ASC, position ASC`); err != nil {
		return nil, err
	}
	bySong := make(map[string][]models.LyricLine, len(songs))
	for _, line := range lines {
		bySong[line.SongID] = append(bySong[line.SongID], models.LyricLine{TimeOffsetSeconds: line.TimeOffsetSeconds, Text: line.Text})
	}
	for i := range songs {
		songs[i].Lyrics = bySong[songs[i].ID]
		if songs[i].Lyrics == nil {
			songs[i].Lyrics = []models.LyricLine{}
		}
	}
	return songs, nil
}
