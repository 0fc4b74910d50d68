package services

import (
	"context"
	"time"

	"github.com/zatekoja/localservices/internal/infrastructure/observability"
)

// CandidateWarmer reloads the cached discovery candidates
type CandidateWarmer interface {
	Warm(ctx context.Context, limit int) (int, error)
}

// CacheWarmingService keeps the discovery candidate cache populated so the
// first discovery after an expiry or invalidation does not hit the store
type CacheWarmingService struct {
	warmer CandidateWarmer
	limit  int
}

// NewCacheWarmingService creates a new cache warming service
func NewCacheWarmingService(warmer CandidateWarmer, limit int) *CacheWarmingService {
	if limit <= 0 {
		limit = defaultCandidateLimit
	}
	return &CacheWarmingService{
		warmer: warmer,
		limit:  limit,
	}
}

// WarmCache reloads the candidate list once
func (s *CacheWarmingService) WarmCache(ctx context.Context) error {
	start := time.Now()
	n, err := s.warmer.Warm(ctx, s.limit)
	if err != nil {
		return err
	}
	observability.LoggerFromContext(ctx).Debug().
		Int("providers", n).
		Dur("duration", time.Since(start)).
		Msg("warmed provider candidate cache")
	return nil
}

// StartPeriodicWarming warms the cache now and then every interval until ctx ends
func (s *CacheWarmingService) StartPeriodicWarming(ctx context.Context, interval time.Duration) {
	logger := observability.LoggerFromContext(ctx)
	if err := s.WarmCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("initial cache warming failed")
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info().Msg("stopping cache warming service")
				return
			case <-ticker.C:
				if err := s.WarmCache(ctx); err != nil && ctx.Err() == nil {
					logger.Warn().Err(err).Msg("periodic cache warming failed")
				}
			}
		}
	}()
	logger.Info().Dur("interval", interval).Msg("started periodic cache warming")
}
