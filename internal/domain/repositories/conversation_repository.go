package repositories

import (
	"context"

	"github.com/zatekoja/localservices/internal/domain/entities"
)

// ConversationRepository defines the interface for conversation storage
type ConversationRepository interface {
	// GetByID retrieves a conversation by ID
	GetByID(ctx context.Context, id string) (*entities.Conversation, error)

	// ListByParticipant returns the user's conversations, most recently updated first
	ListByParticipant(ctx context.Context, userID string) ([]*entities.Conversation, error)

	// CreateIfAbsent inserts the conversation unless one with the same ID exists.
	// created is false when an existing row was kept.
	CreateIfAbsent(ctx context.Context, conversation *entities.Conversation) (created bool, err error)
}

// MessageRepository defines the interface for message storage
type MessageRepository interface {
	// Append stores the message and updates the parent conversation's
	// last message fields in one transaction. SentAt and Sequence are
	// assigned by the store and written back into msg.
	Append(ctx context.Context, msg *entities.Message) error

	// ListByConversation returns messages with Sequence > afterSequence,
	// ordered by (sent_at, sequence) ascending
	ListByConversation(ctx context.Context, conversationID string, afterSequence int64) ([]*entities.Message, error)
}
