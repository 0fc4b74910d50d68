package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/localservices/internal/adapters/memory"
	"github.com/zatekoja/localservices/internal/application/services"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

// fakeIndex is an in-memory ProviderSearchRepository
type fakeIndex struct {
	mu      sync.Mutex
	docs    map[string]*entities.ProviderRecord
	failIDs map[string]bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: map[string]*entities.ProviderRecord{}, failIDs: map[string]bool{}}
}

func (f *fakeIndex) SearchNearby(context.Context, repositories.NearbySearchParams) ([]*entities.ProviderRecord, error) {
	return nil, errors.New("not supported")
}

func (f *fakeIndex) Index(_ context.Context, p *entities.ProviderRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIDs[p.ID] {
		return errors.New("index rejected document")
	}
	f.docs[p.ID] = p
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return apperrors.NewNotFoundError("document " + id + " not found")
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeIndex) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.docs[id]
	return ok
}

func indexedProvider(id string) *entities.ProviderRecord {
	return &entities.ProviderRecord{
		ID:                 id,
		DisplayName:        "Provider " + id,
		ServiceType:        "Eletricista",
		Neighborhood:       "Centro",
		Coordinate:         &rioCentro,
		AvailabilityStatus: entities.AvailabilityAvailable,
		ProfileComplete:    true,
	}
}

func TestProviderIndexService_Reindex(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.Providers().Put(ctx, indexedProvider("p1"))
	store.Providers().Put(ctx, indexedProvider("p2"))
	hidden := indexedProvider("p3")
	hidden.AvailabilityStatus = ""
	store.Providers().Put(ctx, hidden)

	index := newFakeIndex()
	index.failIDs["p2"] = true

	n, err := services.NewProviderIndexService(store.Providers(), index).Reindex(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, index.has("p1"))
	assert.False(t, index.has("p2"))
	assert.False(t, index.has("p3"))
}

func TestProviderIndexService_Sync(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	index := newFakeIndex()
	svc := services.NewProviderIndexService(store.Providers(), index)

	store.Providers().Put(ctx, indexedProvider("p1"))
	require.NoError(t, svc.Sync(ctx, "p1"))
	assert.True(t, index.has("p1"))

	busy := indexedProvider("p1")
	busy.ProfileComplete = false
	store.Providers().Put(ctx, busy)
	require.NoError(t, svc.Sync(ctx, "p1"))
	assert.False(t, index.has("p1"))

	index.docs["gone"] = indexedProvider("gone")
	require.NoError(t, svc.Sync(ctx, "gone"))
	assert.False(t, index.has("gone"))
}

func TestProviderIndexService_SyncNeverIndexedProvider(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	index := newFakeIndex()
	svc := services.NewProviderIndexService(store.Providers(), index)

	hidden := indexedProvider("p1")
	hidden.ProfileComplete = false
	store.Providers().Put(ctx, hidden)

	require.NoError(t, svc.Sync(ctx, "p1"))
	require.NoError(t, svc.Sync(ctx, "unknown"))
	assert.False(t, index.has("p1"))
}

func TestProviderIndexService_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := memory.NewStore()
	bus := memory.NewEventBus()
	index := newFakeIndex()
	svc := services.NewProviderIndexService(store.Providers(), index)

	done := make(chan error, 1)
	go func() { done <- svc.Watch(ctx, bus) }()
	require.Eventually(t, func() bool {
		return bus.SubscriberCount(providers.EventChannelProviderUpdates) == 1
	}, time.Second, 5*time.Millisecond)

	store.Providers().Put(ctx, indexedProvider("p1"))
	event, err := entities.NewChangeEvent(entities.ChangeEventProviderUpdated, "p1", nil)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, providers.EventChannelProviderUpdates, event))

	assert.Eventually(t, func() bool { return index.has("p1") }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not stop")
	}
}
