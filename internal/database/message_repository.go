package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/skymarket/skymarket-backend/internal/models"
)

// MessageRepository handles message database operations
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message
func (r *MessageRepository) Create(message *models.Message) error {
	message.ID = uuid.New()
	message.CreatedAt = time.Now()

	query := `
		INSERT INTO messages (id, sender_id, recipient_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(query,
		message.ID, message.SenderID, message.RecipientID,
		message.Content, message.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListConversation returns messages between two users, newest first
func (r *MessageRepository) ListConversation(userA, userB uuid.UUID, limit, offset int) ([]models.Message, error) {
	messages := []models.Message{}
	query := `
		SELECT id, sender_id, recipient_id, content, read_at, created_at
		FROM messages
		WHERE (sender_id = $1 AND recipient_id = $2)
		   OR (sender_id = $2 AND recipient_id = $1)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	if err := r.db.Select(&messages, query, userA, userB, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}
	return messages, nil
}

// MarkRead marks all messages from sender to recipient as read
func (r *MessageRepository) MarkRead(recipientID, senderID uuid.UUID) error {
	query := `
		UPDATE messages
		SET read_at = NOW()
		WHERE recipient_id = $1 AND sender_id = $2 AND read_at IS NULL`

	_, err := r.db.Exec(query, recipientID, senderID)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}
