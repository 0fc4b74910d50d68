package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

var (
	_ repositories.ConversationRepository = (*ConversationStore)(nil)
	_ repositories.MessageRepository      = (*MessageStore)(nil)
)

// ConversationStore is the in-memory conversation repository
type ConversationStore struct {
	s *Store
}

// GetByID retrieves a conversation by ID
func (c *ConversationStore) GetByID(_ context.Context, id string) (*entities.Conversation, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	conv, ok := c.s.conversations[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("conversation with id %s not found", id))
	}
	return copyConversation(conv), nil
}

// ListByParticipant returns the user's conversations, most recently updated first
func (c *ConversationStore) ListByParticipant(_ context.Context, userID string) ([]*entities.Conversation, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	result := []*entities.Conversation{}
	for _, conv := range c.s.conversations {
		if conv.HasParticipant(userID) {
			result = append(result, copyConversation(conv))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].LastMessageAt.Equal(result[j].LastMessageAt) {
			return result[i].LastMessageAt.After(result[j].LastMessageAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// CreateIfAbsent inserts the conversation unless its ID is taken
func (c *ConversationStore) CreateIfAbsent(_ context.Context, conversation *entities.Conversation) (bool, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if _, exists := c.s.conversations[conversation.ID]; exists {
		return false, nil
	}
	c.s.conversations[conversation.ID] = copyConversation(conversation)
	return true, nil
}

// MessageStore is the in-memory message repository
type MessageStore struct {
	s *Store
}

// Append stores msg and updates its conversation under one lock.
// SentAt never goes backwards within a conversation.
func (m *MessageStore) Append(_ context.Context, msg *entities.Message) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	conv, ok := m.s.conversations[msg.ConversationID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("conversation with id %s not found", msg.ConversationID))
	}

	sentAt := m.s.now().UTC()
	if sentAt.Before(conv.LastMessageAt) {
		sentAt = conv.LastMessageAt
	}

	conv.MessageCount++
	conv.LastMessageText = msg.Text
	conv.LastMessageSenderID = msg.SenderID
	conv.LastMessageAt = sentAt

	msg.SentAt = sentAt
	msg.Sequence = conv.MessageCount
	stored := *msg
	m.s.messages[msg.ConversationID] = append(m.s.messages[msg.ConversationID], &stored)
	return nil
}

// ListByConversation returns messages after afterSequence in delivery order
func (m *MessageStore) ListByConversation(_ context.Context, conversationID string, afterSequence int64) ([]*entities.Message, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()

	result := []*entities.Message{}
	for _, msg := range m.s.messages[conversationID] {
		if msg.Sequence > afterSequence {
			cp := *msg
			result = append(result, &cp)
		}
	}
	return result, nil
}
