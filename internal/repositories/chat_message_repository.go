package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"karaoke-service/internal/models"
)

// ChatMessageRepository defines interactions for session chat.
type ChatMessageRepository interface {
	CreateMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error)
	ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error)
}

type chatMessageRow struct {
	ID        string `db:"id"`
	SessionID string `db:"session_id"`
	UserID    string `db:"user_id"`
	Username  string `db:"username"`
	Message   string `db:"message"`
	CreatedAt int64  `db:"created_at"`
}

func (r chatMessageRow) model() models.ChatMessage {
	return models.ChatMessage{
		ID:        r.ID,
		SessionID: r.SessionID,
		UserID:    r.UserID,
		Username:  r.Username,
		Message:   r.Message,
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

const chatMessageColumns = `id, session_id, user_id, username, message, created_at`

// ChatMessageRepo is a sqlx-backed repository.
type ChatMessageRepo struct {
	db *sqlx.DB
}

// NewChatMessageRepo constructs ChatMessageRepo.
func NewChatMessageRepo(db *sqlx.DB) *ChatMessageRepo {
	return &ChatMessageRepo{db: db}
}

// CreateMessage appends a chat row. The timestamp is always assigned here, never by the sender.
// The row is only written while its session exists; otherwise ErrSessionNotFound.
func (r *ChatMessageRepo) CreateMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = now()

	var row chatMessageRow
	query := r.db.Rebind(`INSERT INTO chat_messages (` + chatMessageColumns + `)
        SELECT CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS TEXT), CAST(? AS BIGINT)
        WHERE EXISTS (SELECT 1 FROM sessions WHERE id=?)
        RETURNING ` + chatMessageColumns)
	err := r.db.QueryRowxContext(ctx, query, msg.ID, msg.SessionID, msg.UserID, msg.Username, msg.Message, toMillis(msg.CreatedAt), msg.SessionID).
		StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ChatMessage{}, ErrSessionNotFound
	}
	if err != nil {
		return models.ChatMessage{}, err
	}
	return row.model(), nil
}

// ListRecentMessages returns up to limit of the newest messages, oldest first.
func (r *ChatMessageRepo) ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]models.ChatMessage, error) {
	var rows []chatMessageRow
	query := r.db.Rebind(`SELECT ` + chatMessageColumns + ` FROM chat_messages WHERE session_id=? ORDER BY created_at DESC, id DESC LIMIT ?`)
	if err := r.db.SelectContext(ctx, &rows, query, sessionID, limit); err != nil {
		return nil, err
	}
	msgs := make([]models.ChatMessage, len(rows))
	for i, row := range rows {
		msgs[len(rows)-1-i] = row.model()
	}
	return msgs, nil
}
