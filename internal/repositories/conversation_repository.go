package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"avenir-sync/internal/models"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	CreateHelpConversation(ctx context.Context, clientID int) (models.Conversation, error)
	AcceptConversation(ctx context.Context, conversationID int, advisorID int) (models.Conversation, error)
	TransferConversation(ctx context.Context, conversationID int, newAdvisorID int) (models.Conversation, error)
	GetConversation(ctx context.Context, conversationID int) (models.Conversation, error)
	ListConversations(ctx context.Context, userID int) ([]models.Conversation, error)
	PendingConversations(ctx context.Context) ([]models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

const conversationColumns = `id, client_id, advisor_id, status, created_at, updated_at`

// CreateHelpConversation creates a pending conversation awaiting an advisor.
func (r *ConversationRepo) CreateHelpConversation(ctx context.Context, clientID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`INSERT INTO conversations (client_id, advisor_id, status) VALUES ($1, 0, $2) RETURNING `+conversationColumns,
		clientID, models.ConversationPending)
	return conv, err
}

// AcceptConversation assigns an advisor to a pending conversation.
func (r *ConversationRepo) AcceptConversation(ctx context.Context, conversationID int, advisorID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`UPDATE conversations SET advisor_id=$2, status=$3, updated_at=NOW()
         WHERE id=$1 AND status=$4 RETURNING `+conversationColumns,
		conversationID, advisorID, models.ConversationOpen, models.ConversationPending)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// TransferConversation reassigns an open conversation to another advisor.
func (r *ConversationRepo) TransferConversation(ctx context.Context, conversationID int, newAdvisorID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`UPDATE conversations SET advisor_id=$2, updated_at=NOW()
         WHERE id=$1 AND status=$3 RETURNING `+conversationColumns,
		conversationID, newAdvisorID, models.ConversationOpen)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// GetConversation fetches a conversation by id.
func (r *ConversationRepo) GetConversation(ctx context.Context, conversationID int) (models.Conversation, error) {
	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE id=$1`, conversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// ListConversations returns conversations where the user participates.
func (r *ConversationRepo) ListConversations(ctx context.Context, userID int) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs,
		`SELECT `+conversationColumns+` FROM conversations
         WHERE client_id=$1 OR advisor_id=$1 ORDER BY updated_at DESC`, userID)
	return convs, err
}

// PendingConversations returns conversations not yet claimed by an advisor.
func (r *ConversationRepo) PendingConversations(ctx context.Context) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.SelectContext(ctx, &convs,
		`SELECT `+conversationColumns+` FROM conversations WHERE status=$1 ORDER BY created_at ASC`,
		models.ConversationPending)
	return convs, err
}
