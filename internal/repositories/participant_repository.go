package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"karaoke-service/internal/models"
)

var ErrParticipantNotFound = errors.New("participant not found")

// ParticipantRepository defines roster persistence.
type ParticipantRepository interface {
	JoinParticipant(ctx context.Context, participant models.Participant) (models.Participant, bool, error)
	GetParticipant(ctx context.Context, sessionID string, userID string) (models.Participant, error)
	RemoveParticipant(ctx context.Context, sessionID string, userID string) error
	ListParticipants(ctx context.Context, sessionID string) ([]models.Participant, error)
	CountParticipants(ctx context.Context, sessionID string) (int, error)
}

type participantRow struct {
	ID        string `db:"id"`
	SessionID string `db:"session_id"`
	UserID    string `db:"user_id"`
	Username  string `db:"username"`
	IsHost    bool   `db:"is_host"`
	JoinedAt  int64  `db:"joined_at"`
}

func (r participantRow) model() models.Participant {
	return models.Participant{
		ID:        r.ID,
		SessionID: r.SessionID,
		UserID:    r.UserID,
		Username:  r.Username,
		IsHost:    r.IsHost,
		JoinedAt:  fromMillis(r.JoinedAt),
	}
}

const participantColumns = `id, session_id, user_id, username, is_host, joined_at`

// ParticipantRepo is a sqlx-backed repository.
type ParticipantRepo struct {
	db *sqlx.DB
}

// NewParticipantRepo constructs ParticipantRepo.
func NewParticipantRepo(db *sqlx.DB) *ParticipantRepo {
	return &ParticipantRepo{db: db}
}

// JoinParticipant inserts the participant unless a row for (session, user) already exists,
// and returns the stored row. The bool reports whether a new row was created.
func (r *ParticipantRepo) JoinParticipant(ctx context.Context, participant models.Participant) (models.Participant, bool, error) {
	if participant.ID == "" {
		participant.ID = uuid.NewString()
	}
	if participant.JoinedAt.IsZero() {
		participant.JoinedAt = now()
	}

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`INSERT INTO participants (`+participantColumns+`) VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (session_id, user_id) DO NOTHING`),
		participant.ID, participant.SessionID, participant.UserID, participant.Username, participant.IsHost, toMillis(participant.JoinedAt))
	if err != nil {
		return models.Participant{}, false, err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return models.Participant{}, false, err
	}

	stored, err := r.GetParticipant(ctx, participant.SessionID, participant.UserID)
	if err != nil {
		return models.Participant{}, false, err
	}
	return stored, count > 0, nil
}

// GetParticipant fetches the row for one user in a session.
func (r *ParticipantRepo) GetParticipant(ctx context.Context, sessionID string, userID string) (models.Participant, error) {
	var row participantRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`SELECT `+participantColumns+` FROM participants WHERE session_id=? AND user_id=?`), sessionID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Participant{}, ErrParticipantNotFound
	}
	if err != nil {
		return models.Participant{}, err
	}
	return row.model(), nil
}

// RemoveParticipant deletes the user's row. Removing an absent row is not an error.
func (r *ParticipantRepo) RemoveParticipant(ctx context.Context, sessionID string, userID string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM participants WHERE session_id=? AND user_id=?`), sessionID, userID)
	return err
}

// ListParticipants returns the roster ordered by join time.
func (r *ParticipantRepo) ListParticipants(ctx context.Context, sessionID string) ([]models.Participant, error) {
	var rows []participantRow
	query := r.db.Rebind(`SELECT ` + participantColumns + ` FROM participants WHERE session_id=? ORDER BY joined_at ASC, id ASC`)
	if err := r.db.SelectContext(ctx, &rows, query, sessionID); err != nil {
		return nil, err
	}
	result := make([]models.Participant, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.model())
	}
	return result, nil
}

// CountParticipants returns the roster size.
func (r *ParticipantRepo) CountParticipants(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM participants WHERE session_id=?`), sessionID)
	return count, err
}
