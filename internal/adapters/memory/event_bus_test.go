package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := providers.MessagesChannel("c1")
	events, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)

	event, err := entities.NewChangeEvent(entities.ChangeEventMessageAppended, "m1", map[string]string{"text": "oi"})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, channel, event))
	require.NoError(t, bus.Publish(ctx, providers.MessagesChannel("other"), event))

	select {
	case got := <-events:
		assert.Equal(t, event.ID, got.ID)
		var payload map[string]string
		require.NoError(t, got.Decode(&payload))
		assert.Equal(t, "oi", payload["text"])
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case extra := <-events:
		t.Fatalf("unexpected event %v", extra)
	default:
	}
}

func TestEventBus_CancelClosesChannel(t *testing.T) {
	bus := NewEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	events, err := bus.Subscribe(ctx, "ch")
	require.NoError(t, err)
	assert.Equal(t, 1, bus.SubscriberCount("ch"))

	cancel()
	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.Equal(t, 0, bus.SubscriberCount("ch"))
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus()
	events, err := bus.Subscribe(context.Background(), "ch")
	require.NoError(t, err)

	require.NoError(t, bus.Close())
	_, ok := <-events
	assert.False(t, ok)

	_, err = bus.Subscribe(context.Background(), "ch")
	assert.Error(t, err)
}

func TestCache_Expiry(t *testing.T) {
	cache := NewCache()
	now := time.Now()
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), 10))
	got, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(11 * time.Second)
	_, err = cache.Get(ctx, "k")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, "k2", []byte("v"), 0))
	require.NoError(t, cache.Delete(ctx, "k2"))
	exists, err := cache.Exists(ctx, "k2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCache_IncrementKeepsFirstExpiry(t *testing.T) {
	cache := NewCache()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return now })
	ctx := context.Background()

	count, ttl, err := cache.Increment(ctx, "n", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 10*time.Second, ttl)

	now = now.Add(4 * time.Second)
	count, ttl, err = cache.Increment(ctx, "n", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 6*time.Second, ttl, "later increments do not extend the expiry")

	now = now.Add(6 * time.Second)
	count, _, err = cache.Increment(ctx, "n", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, cache.Set(ctx, "s", []byte("text"), 0))
	_, _, err = cache.Increment(ctx, "s", 10)
	assert.Error(t, err)
}
