package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	"github.com/zatekoja/localservices/internal/loaders"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

// MessageService appends messages and streams them per conversation
type MessageService struct {
	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	userRepo         repositories.UserRepository
	eventBus         providers.EventBus
	metrics          *observability.Metrics
	observers        []MessageObserver
}

// MessageObserver is told about every stored message
type MessageObserver interface {
	MessageSent(ctx context.Context, conversation *entities.Conversation, msg *entities.Message)
}

// NewMessageService creates a new message service. userRepo and metrics may be nil.
func NewMessageService(
	conversationRepo repositories.ConversationRepository,
	messageRepo repositories.MessageRepository,
	userRepo repositories.UserRepository,
	eventBus providers.EventBus,
	metrics *observability.Metrics,
) *MessageService {
	return &MessageService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		eventBus:         eventBus,
		metrics:          metrics,
	}
}

// AddObserver registers o for every message sent after this call. Not safe
// to call while messages are being sent.
func (s *MessageService) AddObserver(o MessageObserver) {
	s.observers = append(s.observers, o)
}

// Send appends a message with a server-assigned timestamp and sequence.
// Text must be 1-500 characters after trimming.
func (s *MessageService) Send(ctx context.Context, conversationID, senderID, senderName, text string) (*entities.Message, error) {
	text, err := entities.NormalizeMessageText(text)
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}
	if senderID == "" {
		return nil, apperrors.NewValidationError("sender id is required")
	}

	ctx, span := observability.StartSpan(ctx, "MessageService.Send")
	defer span.End()

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, err
		}
		observability.RecordError(span, err)
		return nil, apperrors.NewMessageSendFailedError("failed to load conversation", err)
	}
	if !conversation.HasParticipant(senderID) {
		return nil, apperrors.NewUnauthorizedError("sender is not a participant of this conversation")
	}

	msg := &entities.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderName:     s.senderName(ctx, conversation, senderID, senderName),
		Text:           text,
	}
	if err := s.messageRepo.Append(ctx, msg); err != nil {
		observability.RecordError(span, err)
		return nil, apperrors.NewMessageSendFailedError("failed to send message", err)
	}
	observability.RecordMessageSent(ctx, s.metrics)

	s.publish(ctx, msg, conversation.ParticipantIDs)
	for _, o := range s.observers {
		o.MessageSent(ctx, conversation, msg)
	}
	return msg, nil
}

func (s *MessageService) senderName(ctx context.Context, conversation *entities.Conversation, senderID, given string) string {
	if given != "" {
		return given
	}
	if name := conversation.ParticipantNames[senderID]; name != "" {
		return name
	}
	if s.userRepo == nil {
		return ""
	}
	users, err := loaders.LoadUsers(ctx, s.userRepo, []string{senderID})
	if err != nil {
		return ""
	}
	if u, ok := users[senderID]; ok {
		return u.DisplayName
	}
	return ""
}

// publish fans the stored message out to live subscribers. The message is
// already persisted, so failures are logged rather than returned.
func (s *MessageService) publish(ctx context.Context, msg *entities.Message, participants []string) {
	if s.eventBus == nil {
		return
	}
	logger := observability.LoggerFromContext(ctx)

	event, err := entities.NewChangeEvent(entities.ChangeEventMessageAppended, msg.ID, msg)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to encode message event")
		return
	}
	if err := s.eventBus.Publish(ctx, providers.MessagesChannel(msg.ConversationID), event); err != nil {
		logger.Warn().Err(err).Str("conversation_id", msg.ConversationID).Msg("failed to publish message")
	}
	publishConversationUpdate(ctx, s.eventBus, msg.ConversationID, participants)
}

// History returns the conversation's messages in delivery order
func (s *MessageService) History(ctx context.Context, conversationID string) ([]*entities.Message, error) {
	return s.messageRepo.ListByConversation(ctx, conversationID, 0)
}

// Subscribe replays the conversation history and then delivers each new
// message as it is appended, in (sentAt, sequence) order. The caller must
// Cancel the subscription to release it.
func (s *MessageService) Subscribe(ctx context.Context, conversationID string) (*Subscription[*entities.Message], error) {
	subCtx, cancel := context.WithCancel(ctx)

	// Subscribe before reading history so nothing appended in between is lost.
	events, err := s.eventBus.Subscribe(subCtx, providers.MessagesChannel(conversationID))
	if err != nil {
		cancel()
		return nil, apperrors.NewInternalError("failed to subscribe to messages", err)
	}

	history, err := s.messageRepo.ListByConversation(subCtx, conversationID, 0)
	if err != nil {
		cancel()
		return nil, apperrors.NewInternalError(fmt.Sprintf("failed to load history for conversation %s", conversationID), err)
	}

	sub := newSubscription[*entities.Message]()
	sub.run(func() {
		defer cancel()
		stream := &messageStream{
			sub:            sub,
			repo:           s.messageRepo,
			conversationID: conversationID,
		}
		stream.run(subCtx, history, events)
	})
	return sub, nil
}

// messageStream tracks the last delivered sequence of one subscription
type messageStream struct {
	sub            *Subscription[*entities.Message]
	repo           repositories.MessageRepository
	conversationID string
	lastSeq        int64
}

func (m *messageStream) run(ctx context.Context, history []*entities.Message, events <-chan *entities.ChangeEvent) {
	logger := observability.LoggerFromContext(ctx)

	if !m.emit(history) {
		return
	}

	for {
		select {
		case <-m.sub.Done():
			return
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}

			var msg entities.Message
			if err := event.Decode(&msg); err != nil || msg.Sequence == 0 {
				// Undecodable event: reload from the store instead.
				if !m.backfill(ctx) {
					return
				}
				continue
			}
			if msg.Sequence <= m.lastSeq {
				continue
			}
			if msg.Sequence > m.lastSeq+1 {
				logger.Debug().
					Str("conversation_id", m.conversationID).
					Int64("last_sequence", m.lastSeq).
					Int64("received_sequence", msg.Sequence).
					Msg("gap in message stream, backfilling")
				if !m.backfill(ctx) {
					return
				}
				continue
			}
			if !m.emit([]*entities.Message{&msg}) {
				return
			}
		}
	}
}

// backfill delivers everything stored after the last delivered sequence
func (m *messageStream) backfill(ctx context.Context) bool {
	missed, err := m.repo.ListByConversation(ctx, m.conversationID, m.lastSeq)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("conversation_id", m.conversationID).
			Msg("failed to backfill messages")
		return true
	}
	return m.emit(missed)
}

func (m *messageStream) emit(messages []*entities.Message) bool {
	for _, msg := range messages {
		if msg.Sequence <= m.lastSeq {
			continue
		}
		if !m.sub.send(msg) {
			return false
		}
		m.lastSeq = msg.Sequence
	}
	return true
}
