package loaders_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/localservices/internal/adapters/memory"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/loaders"
)

func seedUsers(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Users().Upsert(ctx, &entities.UserProfile{ID: "c1", Role: entities.RoleClient, DisplayName: "Ana"}))
	require.NoError(t, store.Users().Upsert(ctx, &entities.UserProfile{ID: "c2", Role: entities.RoleClient, DisplayName: "Bruno"}))
	return store
}

func TestLoadUsers_WithoutLoader(t *testing.T) {
	store := seedUsers(t)

	users, err := loaders.LoadUsers(context.Background(), store.Users(), []string{"c1", "missing"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, "Ana", users["c1"].DisplayName)
}

func TestLoadUsers_WithLoader(t *testing.T) {
	store := seedUsers(t)
	ctx := loaders.WithLoaders(context.Background(), loaders.NewLoaders(store.Users()))

	users, err := loaders.LoadUsers(ctx, store.Users(), []string{"c1", "c2", "missing"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "Bruno", users["c2"].DisplayName)
}

func TestFor_NoLoaders(t *testing.T) {
	assert.Nil(t, loaders.For(context.Background()))
}
