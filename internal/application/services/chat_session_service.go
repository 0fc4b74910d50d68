package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	"github.com/zatekoja/localservices/internal/loaders"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

// ChatSessionService resolves and lists two-party conversations
type ChatSessionService struct {
	conversationRepo repositories.ConversationRepository
	userRepo         repositories.UserRepository
	eventBus         providers.EventBus
	now              func() time.Time
}

// NewChatSessionService creates a new chat session service. userRepo and
// eventBus may be nil.
func NewChatSessionService(
	conversationRepo repositories.ConversationRepository,
	userRepo repositories.UserRepository,
	eventBus providers.EventBus,
) *ChatSessionService {
	return &ChatSessionService{
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		eventBus:         eventBus,
		now:              time.Now,
	}
}

// CreateOrGetConversation returns the conversation between userA and userB,
// creating it on first use. Repeated calls for the same pair, in either
// order, return the same id.
func (s *ChatSessionService) CreateOrGetConversation(ctx context.Context, userA, userB, nameA, nameB string) (string, error) {
	userA = strings.TrimSpace(userA)
	userB = strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return "", apperrors.NewValidationError("both participant ids are required")
	}
	if userA == userB {
		return "", apperrors.NewValidationError("a conversation needs two distinct participants")
	}

	ctx, span := observability.StartSpan(ctx, "ChatSessionService.CreateOrGetConversation")
	defer span.End()
	logger := observability.LoggerFromContext(ctx)

	id := entities.DirectConversationID(userA, userB)
	existing, err := s.conversationRepo.GetByID(ctx, id)
	if err == nil {
		return existing.ID, nil
	}
	if !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		observability.RecordError(span, err)
		return "", apperrors.NewConversationCreateFailedError("failed to look up conversation", err)
	}

	// Conversations created before ids were derived from the pair carry random ids.
	legacy, err := s.findByParticipants(ctx, userA, userB)
	if err != nil {
		observability.RecordError(span, err)
		return "", apperrors.NewConversationCreateFailedError("failed to look up conversation", err)
	}
	if legacy != "" {
		return legacy, nil
	}

	nameA, nameB = s.resolveNames(ctx, userA, userB, nameA, nameB)
	conversation := entities.NewDirectConversation(userA, userB, nameA, nameB, s.now().UTC())

	created, err := s.conversationRepo.CreateIfAbsent(ctx, conversation)
	if err != nil {
		observability.RecordError(span, err)
		return "", apperrors.NewConversationCreateFailedError("failed to create conversation", err)
	}
	if created {
		logger.Info().Str("conversation_id", id).Msg("conversation created")
		s.publishConversationUpdate(ctx, conversation)
	}
	return id, nil
}

func (s *ChatSessionService) findByParticipants(ctx context.Context, userA, userB string) (string, error) {
	conversations, err := s.conversationRepo.ListByParticipant(ctx, userA)
	if err != nil {
		return "", err
	}
	for _, c := range conversations {
		if c.HasParticipant(userB) {
			return c.ID, nil
		}
	}
	return "", nil
}

// resolveNames fills blank display names from the user profiles
func (s *ChatSessionService) resolveNames(ctx context.Context, userA, userB, nameA, nameB string) (string, string) {
	if s.userRepo == nil || (nameA != "" && nameB != "") {
		return nameA, nameB
	}

	var missing []string
	if nameA == "" {
		missing = append(missing, userA)
	}
	if nameB == "" {
		missing = append(missing, userB)
	}

	users, err := loaders.LoadUsers(ctx, s.userRepo, missing)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to resolve participant names")
		return nameA, nameB
	}
	if u, ok := users[userA]; ok && nameA == "" {
		nameA = u.DisplayName
	}
	if u, ok := users[userB]; ok && nameB == "" {
		nameB = u.DisplayName
	}
	return nameA, nameB
}

// ListConversations returns the user's conversations, most recently updated first
func (s *ChatSessionService) ListConversations(ctx context.Context, userID string) ([]*entities.Conversation, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required")
	}
	return s.conversationRepo.ListByParticipant(ctx, userID)
}

// GetConversation returns a conversation the user takes part in. Conversations
// of other users are reported as not found.
func (s *ChatSessionService) GetConversation(ctx context.Context, conversationID, userID string) (*entities.Conversation, error) {
	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(userID) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("conversation with id %s not found", conversationID))
	}
	return conversation, nil
}

func (s *ChatSessionService) publishConversationUpdate(ctx context.Context, conversation *entities.Conversation) {
	if s.eventBus == nil {
		return
	}
	publishConversationUpdate(ctx, s.eventBus, conversation.ID, conversation.ParticipantIDs)
}

// publishConversationUpdate signals every participant that the conversation changed
func publishConversationUpdate(ctx context.Context, bus providers.EventBus, conversationID string, participants []string) {
	event, err := entities.NewChangeEvent(entities.ChangeEventConversationUpdated, conversationID, nil)
	if err != nil {
		return
	}
	for _, userID := range participants {
		if err := bus.Publish(ctx, providers.UserConversationsChannel(userID), event); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("conversation_id", conversationID).
				Str("user_id", userID).
				Msg("failed to publish conversation update")
		}
	}
}
