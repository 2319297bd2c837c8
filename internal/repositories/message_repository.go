package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"avenir-sync/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	ListMessages(ctx context.Context, conversationID int) ([]models.Message, error)
	LastMessage(ctx context.Context, conversationID int) (*models.Message, error)
	UnreadCount(ctx context.Context, conversationID int, userID int) (int, error)
	MarkConversationRead(ctx context.Context, conversationID int, userID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, client_key, conversation_id, sender_id, receiver_id, content, "read", created_at`

// CreateMessage stores a message and returns the server copy.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var out models.Message
	err := r.db.GetContext(ctx, &out,
		`INSERT INTO messages (client_key, conversation_id, sender_id, receiver_id, content)
         VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		msg.ClientKey, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Content)
	return out, err
}

// ListMessages returns ordered messages for a conversation.
func (r *MessageRepo) ListMessages(ctx context.Context, conversationID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id=$1 ORDER BY created_at ASC, id ASC`,
		conversationID)
	return msgs, err
}

// LastMessage returns the newest message of a conversation, or nil.
func (r *MessageRepo) LastMessage(ctx context.Context, conversationID int) (*models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE conversation_id=$1 ORDER BY created_at DESC, id DESC LIMIT 1`,
		conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// UnreadCount counts messages addressed to the user not yet read.
func (r *MessageRepo) UnreadCount(ctx context.Context, conversationID int, userID int) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages WHERE conversation_id=$1 AND receiver_id=$2 AND "read" = FALSE`,
		conversationID, userID)
	return count, err
}

// MarkConversationRead flags every message addressed to the user as read.
func (r *MessageRepo) MarkConversationRead(ctx context.Context, conversationID int, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET "read" = TRUE WHERE conversation_id=$1 AND receiver_id=$2 AND "read" = FALSE`,
		conversationID, userID)
	return err
}
