package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/localservices/internal/adapters/cache"
	"github.com/zatekoja/localservices/internal/adapters/memory"
)

func TestSettingsAdapter_Radius(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewCache()
	settings := cache.NewSettingsAdapter(backing)

	_, ok, err := settings.GetSearchRadius(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, settings.SetSearchRadius(ctx, "u1", 12))

	radius, ok, err := settings.GetSearchRadius(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 12, radius)

	_, ok, err = settings.GetSearchRadius(ctx, "u2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSettingsAdapter_CorruptValue(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewCache()
	require.NoError(t, backing.Set(ctx, "settings:u1:radius", []byte("far"), 0))

	_, _, err := cache.NewSettingsAdapter(backing).GetSearchRadius(ctx, "u1")
	assert.Error(t, err)
}

func TestReadMarkAdapter_SaveReplacesAndClears(t *testing.T) {
	ctx := context.Background()
	marks := cache.NewReadMarkAdapter(memory.NewCache())

	got, err := marks.GetReadMarks(ctx, "ana")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, marks.SaveReadMarks(ctx, "ana", map[string]string{"message:c1": "3", "review:r1": "v"}))
	require.NoError(t, marks.SaveReadMarks(ctx, "ana", map[string]string{"message:c1": "4"}))

	got, err = marks.GetReadMarks(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"message:c1": "4"}, got)

	other, err := marks.GetReadMarks(ctx, "bruno")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, marks.SaveReadMarks(ctx, "ana", nil))
	got, err = marks.GetReadMarks(ctx, "ana")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadMarkAdapter_CorruptValue(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewCache()
	require.NoError(t, backing.Set(ctx, "notifications:ana:read", []byte("not json"), 0))

	_, err := cache.NewReadMarkAdapter(backing).GetReadMarks(ctx, "ana")
	assert.Error(t, err)
}
