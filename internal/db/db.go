package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know by name.
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Connect opens the configured database and runs migrations.
func Connect(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if driver == DriverSQLite {
		// one connection keeps in-memory databases shared and serializes writers
		db.SetMaxOpenConns(1)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// Timestamps are stored as unix milliseconds so the schema works on both drivers.
func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
            id TEXT PRIMARY KEY,
            room_code TEXT NOT NULL,
            host_id TEXT NOT NULL,
            current_song_id TEXT NOT NULL DEFAULT '',
            is_playing BOOLEAN NOT NULL DEFAULT FALSE,
            current_time_ms BIGINT NOT NULL DEFAULT 0,
            created_at BIGINT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_room_code ON sessions (room_code);`,
		`CREATE TABLE IF NOT EXISTS participants (
            id TEXT PRIMARY KEY,
            session_id TEXT NOT NULL,
            user_id TEXT NOT NULL,
            username TEXT NOT NULL,
            is_host BOOLEAN NOT NULL DEFAULT FALSE,
            joined_at BIGINT NOT NULL,
            UNIQUE(session_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
            id TEXT PRIMARY KEY,
            session_id TEXT NOT NULL,
            user_id TEXT NOT NULL,
            username TEXT NOT NULL,
            message TEXT NOT NULL,
            created_at BIGINT NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages (session_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS songs (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            artist TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS lyric_lines (
            song_id TEXT NOT NULL,
            position INTEGER NOT NULL,
            time_offset_seconds DOUBLE PRECISION NOT NULL,
            text TEXT NOT NULL,
            PRIMARY KEY(song_id, position)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
