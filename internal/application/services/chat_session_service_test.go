package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/localservices/internal/adapters/memory"
	"github.com/zatekoja/localservices/internal/application/services"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Conversation), args.Error(1)
}

func (m *MockConversationRepository) ListByParticipant(ctx context.Context, userID string) ([]*entities.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Conversation), args.Error(1)
}

func (m *MockConversationRepository) CreateIfAbsent(ctx context.Context, conversation *entities.Conversation) (bool, error) {
	args := m.Called(ctx, conversation)
	return args.Bool(0), args.Error(1)
}

func seedClient(t *testing.T, store *memory.Store, id, name string) {
	t.Helper()
	require.NoError(t, store.Users().Upsert(context.Background(), &entities.UserProfile{
		ID:          id,
		Role:        entities.RoleClient,
		DisplayName: name,
	}))
}

func TestChatSessionService_CreateOrGetIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := services.NewChatSessionService(store.Conversations(), store.Users(), memory.NewEventBus())

	first, err := svc.CreateOrGetConversation(ctx, "ana", "bruno", "Ana", "Bruno")
	require.NoError(t, err)
	second, err := svc.CreateOrGetConversation(ctx, "ana", "bruno", "Ana", "Bruno")
	require.NoError(t, err)
	reversed, err := svc.CreateOrGetConversation(ctx, "bruno", "ana", "Bruno", "Ana")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, first, reversed)

	conversations, err := svc.ListConversations(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "Bruno", conversations[0].ParticipantNames["bruno"])
	assert.Empty(t, conversations[0].LastMessageText)
	assert.Equal(t, conversations[0].CreatedAt, conversations[0].LastMessageAt)
}

func TestChatSessionService_ConcurrentCreateYieldsOneConversation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := services.NewChatSessionService(store.Conversations(), nil, nil)

	var wg sync.WaitGroup
	results := make([]string, 2)
	for i, pair := range [][2]string{{"ana", "bruno"}, {"bruno", "ana"}} {
		wg.Add(1)
		go func(i int, a, b string) {
			defer wg.Done()
			id, err := svc.CreateOrGetConversation(ctx, a, b, "", "")
			assert.NoError(t, err)
			results[i] = id
		}(i, pair[0], pair[1])
	}
	wg.Wait()

	assert.Equal(t, results[0], results[1])
	conversations, err := store.Conversations().ListByParticipant(ctx, "ana")
	require.NoError(t, err)
	assert.Len(t, conversations, 1)
}

func TestChatSessionService_ResolvesMissingNames(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedClient(t, store, "ana", "Ana")
	seedClient(t, store, "bruno", "Bruno")
	svc := services.NewChatSessionService(store.Conversations(), store.Users(), nil)

	id, err := svc.CreateOrGetConversation(ctx, "ana", "bruno", "Ana", "")
	require.NoError(t, err)

	conv, err := store.Conversations().GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Bruno", conv.ParticipantNames["bruno"])
}

func TestChatSessionService_FindsLegacyConversation(t *testing.T) {
	ctx := context.Background()
	repo := new(MockConversationRepository)
	legacy := &entities.Conversation{ID: "legacy-1", ParticipantIDs: []string{"ana", "bruno"}}

	repo.On("GetByID", mock.Anything, entities.DirectConversationID("ana", "bruno")).
		Return(nil, apperrors.NewNotFoundError("not found"))
	repo.On("ListByParticipant", mock.Anything, "ana").Return([]*entities.Conversation{legacy}, nil)

	svc := services.NewChatSessionService(repo, nil, nil)
	id, err := svc.CreateOrGetConversation(ctx, "ana", "bruno", "Ana", "Bruno")
	require.NoError(t, err)
	assert.Equal(t, "legacy-1", id)
	repo.AssertNotCalled(t, "CreateIfAbsent", mock.Anything, mock.Anything)
}

func TestChatSessionService_StoreFailure(t *testing.T) {
	repo := new(MockConversationRepository)
	repo.On("GetByID", mock.Anything, mock.Anything).Return(nil, apperrors.NewNotFoundError("not found"))
	repo.On("ListByParticipant", mock.Anything, "ana").Return([]*entities.Conversation{}, nil)
	repo.On("CreateIfAbsent", mock.Anything, mock.Anything).Return(false, errors.New("write failed"))

	svc := services.NewChatSessionService(repo, nil, nil)
	_, err := svc.CreateOrGetConversation(context.Background(), "ana", "bruno", "Ana", "Bruno")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConversationCreateFailed))
}

func TestChatSessionService_Validation(t *testing.T) {
	svc := services.NewChatSessionService(memory.NewStore().Conversations(), nil, nil)

	_, err := svc.CreateOrGetConversation(context.Background(), "ana", "ana", "Ana", "Ana")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = svc.CreateOrGetConversation(context.Background(), "", "bruno", "", "Bruno")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestChatSessionService_PublishesCreation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := memory.NewEventBus()
	events, err := bus.Subscribe(ctx, providers.UserConversationsChannel("bruno"))
	require.NoError(t, err)

	svc := services.NewChatSessionService(memory.NewStore().Conversations(), nil, bus)
	id, err := svc.CreateOrGetConversation(ctx, "ana", "bruno", "Ana", "Bruno")
	require.NoError(t, err)

	select {
	case event := <-events:
		assert.Equal(t, id, event.EntityID)
		assert.Equal(t, entities.ChangeEventConversationUpdated, event.Type)
	case <-time.After(time.Second):
		t.Fatal("expected a conversation update")
	}
}

func TestChatSessionService_GetConversationHidesOthers(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := services.NewChatSessionService(store.Conversations(), nil, nil)
	id, err := svc.CreateOrGetConversation(ctx, "ana", "bruno", "Ana", "Bruno")
	require.NoError(t, err)

	_, err = svc.GetConversation(ctx, id, "carla")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))

	conv, err := svc.GetConversation(ctx, id, "ana")
	require.NoError(t, err)
	assert.Equal(t, id, conv.ID)
}
