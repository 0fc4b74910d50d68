package providers

import (
	"context"

	"github.com/zatekoja/localservices/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to change events
type EventBus interface {
	// Publish publishes an event to all subscribers of channel
	Publish(ctx context.Context, channel string, event *entities.ChangeEvent) error

	// Subscribe subscribes to events on a channel. The subscription is active
	// when Subscribe returns and ends when ctx is cancelled, closing the channel.
	Subscribe(ctx context.Context, channel string) (<-chan *entities.ChangeEvent, error)

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelProviderUpdates carries every provider change
	EventChannelProviderUpdates = "provider:updates"

	eventChannelConversationPrefix = "conversation:"
	eventChannelUserPrefix         = "user:"
)

// MessagesChannel returns the channel carrying new messages of a conversation
func MessagesChannel(conversationID string) string {
	return eventChannelConversationPrefix + conversationID + ":messages"
}

// UserConversationsChannel returns the channel signalling changes to any of a user's conversations
func UserConversationsChannel(userID string) string {
	return eventChannelUserPrefix + userID + ":conversations"
}

// UserReviewsChannel returns the channel signalling reviews addressed to a user
func UserReviewsChannel(userID string) string {
	return eventChannelUserPrefix + userID + ":reviews"
}

// UserNotificationReadsChannel returns the channel carrying read marks a user set on any session
func UserNotificationReadsChannel(userID string) string {
	return eventChannelUserPrefix + userID + ":notification-reads"
}
