package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/domain/repositories"
)

// SettingsAdapter keeps per-user preferences in the cache store without expiry
type SettingsAdapter struct {
	cache providers.CacheProvider
}

// NewSettingsAdapter creates a settings repository backed by cache
func NewSettingsAdapter(cache providers.CacheProvider) repositories.SettingsRepository {
	return &SettingsAdapter{cache: cache}
}

func radiusKey(userID string) string {
	return fmt.Sprintf("settings:%s:radius", userID)
}

// GetSearchRadius returns the saved radius; ok is false when none was saved
func (a *SettingsAdapter) GetSearchRadius(ctx context.Context, userID string) (int, bool, error) {
	data, err := a.cache.Get(ctx, radiusKey(userID))
	if errors.Is(err, providers.ErrCacheMiss) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	radius, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, false, fmt.Errorf("invalid stored radius for user %s: %w", userID, err)
	}
	return radius, true, nil
}

// SetSearchRadius saves the radius
func (a *SettingsAdapter) SetSearchRadius(ctx context.Context, userID string, radiusKm int) error {
	return a.cache.Set(ctx, radiusKey(userID), []byte(strconv.Itoa(radiusKm)), 0)
}
