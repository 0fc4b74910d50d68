package entities

import (
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxMessageLength is the longest message text accepted, in characters
const MaxMessageLength = 500

// conversationNamespace seeds the deterministic direct conversation ids
var conversationNamespace = uuid.MustParse("6f1c9a52-3d7e-4b8a-9c21-0e5f4a7b8d13")

// Conversation is a two-party messaging thread
type Conversation struct {
	ID                  string            `json:"id" db:"id"`
	ParticipantIDs      []string          `json:"participant_ids" db:"-"`
	ParticipantNames    map[string]string `json:"participant_names" db:"-"`
	LastMessageText     string            `json:"last_message_text" db:"last_message_text"`
	LastMessageSenderID string            `json:"last_message_sender_id,omitempty" db:"last_message_sender_id"`
	LastMessageAt       time.Time         `json:"last_message_at" db:"last_message_at"`
	MessageCount        int64             `json:"message_count" db:"message_count"`
	CreatedAt           time.Time         `json:"created_at" db:"created_at"`
}

// HasParticipant reports whether userID takes part in the conversation
func (c *Conversation) HasParticipant(userID string) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not userID
func (c *Conversation) OtherParticipant(userID string) string {
	for _, id := range c.ParticipantIDs {
		if id != userID {
			return id
		}
	}
	return ""
}

// DirectConversationID derives the conversation id for an unordered pair of users.
// Both argument orders yield the same id.
func DirectConversationID(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return uuid.NewSHA1(conversationNamespace, []byte(pair[0]+"\x00"+pair[1])).String()
}

// NewDirectConversation builds a fresh conversation between two users
func NewDirectConversation(userA, userB, nameA, nameB string, now time.Time) *Conversation {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return &Conversation{
		ID:             DirectConversationID(userA, userB),
		ParticipantIDs: pair,
		ParticipantNames: map[string]string{
			userA: nameA,
			userB: nameB,
		},
		LastMessageAt: now,
		CreatedAt:     now,
	}
}

// Message is a single chat message. Sequence is assigned by the store and
// is contiguous within a conversation, starting at 1.
type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	SenderID       string    `json:"sender_id" db:"sender_id"`
	SenderName     string    `json:"sender_name" db:"sender_name"`
	Text           string    `json:"text" db:"text"`
	SentAt         time.Time `json:"sent_at" db:"sent_at"`
	Sequence       int64     `json:"sequence" db:"sequence"`
}

var (
	ErrEmptyMessage   = errors.New("message text is required")
	ErrMessageTooLong = errors.New("message text exceeds 500 characters")
)

// NormalizeMessageText trims surrounding whitespace and checks the length bounds
func NormalizeMessageText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return text, nil
}
