package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/domain/repositories"
)

// readMarkTTLSeconds bounds how long an idle user's marks are kept
const readMarkTTLSeconds = 30 * 24 * 60 * 60

// ReadMarkAdapter keeps notification read marks in the cache store so every
// process serving the same user sees them
type ReadMarkAdapter struct {
	cache providers.CacheProvider
}

// NewReadMarkAdapter creates a read mark repository backed by cache
func NewReadMarkAdapter(cache providers.CacheProvider) repositories.NotificationReadRepository {
	return &ReadMarkAdapter{cache: cache}
}

func readMarksKey(userID string) string {
	return fmt.Sprintf("notifications:%s:read", userID)
}

// GetReadMarks returns the saved marks
func (a *ReadMarkAdapter) GetReadMarks(ctx context.Context, userID string) (map[string]string, error) {
	data, err := a.cache.Get(ctx, readMarksKey(userID))
	if errors.Is(err, providers.ErrCacheMiss) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	marks := make(map[string]string)
	if err := json.Unmarshal(data, &marks); err != nil {
		return nil, fmt.Errorf("invalid stored read marks for user %s: %w", userID, err)
	}
	return marks, nil
}

// SaveReadMarks replaces the saved marks; an empty set clears the key
func (a *ReadMarkAdapter) SaveReadMarks(ctx context.Context, userID string, marks map[string]string) error {
	if len(marks) == 0 {
		return a.cache.Delete(ctx, readMarksKey(userID))
	}
	data, err := json.Marshal(marks)
	if err != nil {
		return fmt.Errorf("failed to marshal read marks: %w", err)
	}
	return a.cache.Set(ctx, readMarksKey(userID), data, readMarkTTLSeconds)
}
