package services_test

import (
	"context"
	"errors"
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

func newSessionManager(store *memory.Store, providerRepo *MockProviderRepository, location providers.LocationProvider) *services.SessionManager {
	var discovery *services.DiscoveryService
	if providerRepo != nil {
		discovery = services.NewDiscoveryService(providerRepo, nil, nil, services.DiscoveryOptions{})
	} else {
		discovery = services.NewDiscoveryService(store.Providers(), nil, nil, services.DiscoveryOptions{})
	}
	return services.NewSessionManager(services.SessionDependencies{
		Discovery:        discovery,
		Location:         services.NewLocationService(location, rioCentro, 100*time.Millisecond),
		Settings:         store.Settings(),
		ConversationRepo: store.Conversations(),
		ReviewRepo:       store.Reviews(),
	})
}

func TestSessionManager_OpenValidates(t *testing.T) {
	mgr := newSessionManager(memory.NewStore(), nil, &stubLocationProvider{coord: &tijuca})
	defer mgr.CloseAll()

	_, err := mgr.Open(context.Background(), "", entities.RoleClient)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))

	_, err = mgr.Open(context.Background(), "ana", entities.Role("admin"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestSessionManager_OpenReusesSession(t *testing.T) {
	mgr := newSessionManager(memory.NewStore(), nil, &stubLocationProvider{coord: &tijuca})
	defer mgr.CloseAll()
	ctx := context.Background()

	first, err := mgr.Open(ctx, "ana", entities.RoleClient)
	require.NoError(t, err)
	again, err := mgr.Open(ctx, "ana", entities.RoleClient)
	require.NoError(t, err)
	assert.Same(t, first, again)

	switched, err := mgr.Open(ctx, "ana", entities.RoleProvider)
	require.NoError(t, err)
	assert.NotSame(t, first, switched)

	got, ok := mgr.Get("ana")
	require.True(t, ok)
	assert.Same(t, switched, got)

	assert.True(t, mgr.Close("ana"))
	assert.False(t, mgr.Close("ana"))
	_, ok = mgr.Get("ana")
	assert.False(t, ok)
}

func TestSession_RadiusIsPersisted(t *testing.T) {
	store := memory.NewStore()
	mgr := newSessionManager(store, nil, &stubLocationProvider{coord: &tijuca})
	defer mgr.CloseAll()
	ctx := context.Background()

	session, err := mgr.Open(ctx, "ana", entities.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultRadiusKm, session.RadiusKm())

	assert.True(t, apperrors.IsType(session.SetRadiusKm(ctx, 0), apperrors.ErrorTypeValidation))
	assert.True(t, apperrors.IsType(session.SetRadiusKm(ctx, 51), apperrors.ErrorTypeValidation))
	require.NoError(t, session.SetRadiusKm(ctx, 12))

	mgr.Close("ana")
	reopened, err := mgr.Open(ctx, "ana", entities.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, 12, reopened.RadiusKm())
}

func TestSession_Discover(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.Providers().Put(ctx, provider("near", "Ana Pereira", "Encanador", "Tijuca", coordPtr(tijuca)))
	store.Providers().Put(ctx, provider("far", "Bruno Lima", "Eletricista", "Barra", coordPtr(entities.Coordinate{Latitude: -23.0004, Longitude: -43.3659})))

	mgr := newSessionManager(store, nil, &stubLocationProvider{coord: &rioCentro})
	defer mgr.CloseAll()
	session, err := mgr.Open(ctx, "carla", entities.RoleClient)
	require.NoError(t, err)

	result, err := session.Discover(ctx, services.DiscoveryParams{})
	require.NoError(t, err)
	assert.True(t, result.RadiusEnabled)
	assert.Equal(t, rioCentro, result.Origin)
	assert.Equal(t, []string{"near"}, ids(result.Providers))
	require.NotNil(t, result.Providers[0].DistanceKm)

	result, err = session.Discover(ctx, services.DiscoveryParams{RadiusKm: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{"near", "far"}, ids(result.Providers))
}

func TestSession_DiscoverWithoutLocation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.Providers().Put(ctx, provider("near", "Ana Pereira", "Encanador", "Tijuca", coordPtr(tijuca)))
	store.Providers().Put(ctx, provider("nocoord", "Davi Souza", "Pintor", "Centro", nil))

	mgr := newSessionManager(store, nil, &stubLocationProvider{err: providers.ErrLocationPermissionDenied})
	defer mgr.CloseAll()
	session, err := mgr.Open(ctx, "carla", entities.RoleClient)
	require.NoError(t, err)

	result, err := session.Discover(ctx, services.DiscoveryParams{})
	require.NoError(t, err)
	assert.False(t, result.RadiusEnabled)
	assert.Equal(t, rioCentro, result.Origin)
	assert.ElementsMatch(t, []string{"near", "nocoord"}, ids(result.Providers))
	for _, p := range result.Providers {
		assert.Nil(t, p.DistanceKm)
	}
}

func TestSession_DiscoverReturnsStaleResult(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProviderRepository)
	repo.On("ListDiscoverable", mock.Anything, mock.Anything).
		Return([]*entities.ProviderRecord{provider("near", "Ana Pereira", "Encanador", "Tijuca", coordPtr(tijuca))}, nil).Once()
	repo.On("ListDiscoverable", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	mgr := newSessionManager(memory.NewStore(), repo, &stubLocationProvider{coord: &rioCentro})
	defer mgr.CloseAll()
	session, err := mgr.Open(ctx, "carla", entities.RoleClient)
	require.NoError(t, err)

	fresh, err := session.Discover(ctx, services.DiscoveryParams{ServiceFilter: "encanador"})
	require.NoError(t, err)
	assert.False(t, fresh.Stale)

	stale, err := session.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDiscoveryUnavailable))
	require.NotNil(t, stale)
	assert.True(t, stale.Stale)
	assert.Equal(t, []string{"near"}, ids(stale.Providers))

	last, ok := session.LastResult()
	require.True(t, ok)
	assert.False(t, last.Stale)
}

func TestSession_DiscoverFailsWithoutPreviousResult(t *testing.T) {
	ctx := context.Background()
	repo := new(MockProviderRepository)
	repo.On("ListDiscoverable", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	mgr := newSessionManager(memory.NewStore(), repo, &stubLocationProvider{coord: &rioCentro})
	defer mgr.CloseAll()
	session, err := mgr.Open(ctx, "carla", entities.RoleClient)
	require.NoError(t, err)

	result, err := session.Discover(ctx, services.DiscoveryParams{})
	assert.Nil(t, result)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeDiscoveryUnavailable))
}

type blockingSettings struct {
	entered chan string
	release chan struct{}
}

func (s *blockingSettings) GetSearchRadius(ctx context.Context, userID string) (int, bool, error) {
	s.entered <- userID
	select {
	case <-s.release:
		return 12, true, nil
	case <-ctx.Done():
		return 0, false, ctx.Err()
	}
}

func (s *blockingSettings) SetSearchRadius(context.Context, string, int) error { return nil }

func TestSessionManager_OpenDoesNotBlockOtherUsers(t *testing.T) {
	store := memory.NewStore()
	settings := &blockingSettings{entered: make(chan string, 2), release: make(chan struct{})}
	mgr := services.NewSessionManager(services.SessionDependencies{
		Settings:         settings,
		ConversationRepo: store.Conversations(),
		ReviewRepo:       store.Reviews(),
	})
	defer mgr.CloseAll()
	ctx := context.Background()

	opened := make(chan *services.Session, 2)
	for i := 0; i < 2; i++ {
		go func() {
			session, err := mgr.Open(ctx, "ana", entities.RoleClient)
			assert.NoError(t, err)
			opened <- session
		}()
	}
	<-settings.entered
	<-settings.entered

	checked := make(chan bool)
	go func() {
		online := mgr.IsOnline("ana") || mgr.IsOnline("carla")
		checked <- online
	}()
	select {
	case online := <-checked:
		assert.False(t, online)
	case <-time.After(time.Second):
		t.Fatal("manager lock held while the radius was loading")
	}

	close(settings.release)
	first, second := <-opened, <-opened
	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.Equal(t, 12, first.RadiusKm())

	got, ok := mgr.Get("ana")
	require.True(t, ok)
	assert.Same(t, first, got)
}
