package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a direct message between two users. Inserting one triggers a
// realtime event delivered to the recipient's live connections.
type Message struct {
	ID          uuid.UUID `db:"id" json:"id"`
	SenderID    uuid.UUID `db:"sender_id" json:"sender_id"`
	RecipientID uuid.UUID `db:"recipient_id" json:"recipient_id"`
	Content     string    `db:"content" json:"content"`
	ReadAt      *time.Time `db:"read_at" json:"read_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// SendMessageRequest is the payload for POST /api/messages
type SendMessageRequest struct {
	RecipientID uuid.UUID `json:"recipient_id" binding:"required"`
	Content     string    `json:"content" binding:"required,max=4000"`
}
