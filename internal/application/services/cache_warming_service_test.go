package services_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/localservices/internal/application/services"
)

type countingWarmer struct {
	calls atomic.Int32
	limit atomic.Int32
	err   error
}

func (w *countingWarmer) Warm(ctx context.Context, limit int) (int, error) {
	w.calls.Add(1)
	w.limit.Store(int32(limit))
	return 3, w.err
}

func TestCacheWarmingService_WarmCache(t *testing.T) {
	warmer := &countingWarmer{}
	svc := services.NewCacheWarmingService(warmer, 0)

	require.NoError(t, svc.WarmCache(context.Background()))
	assert.Equal(t, int32(1), warmer.calls.Load())
	assert.Equal(t, int32(500), warmer.limit.Load())

	failing := services.NewCacheWarmingService(&countingWarmer{err: errors.New("db down")}, 10)
	assert.Error(t, failing.WarmCache(context.Background()))
}

func TestCacheWarmingService_StartPeriodicWarming(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	warmer := &countingWarmer{}

	services.NewCacheWarmingService(warmer, 10).StartPeriodicWarming(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return warmer.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}
