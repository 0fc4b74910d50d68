package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
)

// Cache TTLs (in seconds)
const (
	providerByIDTTL      = 300
	defaultCandidatesTTL = 60
)

const discoverableCacheKey = "providers:discoverable"

func providerCacheKey(id string) string {
	return fmt.Sprintf("provider:%s", id)
}

// cachedCandidates remembers the limit the list was fetched with so a
// smaller request can be served from a larger cached list
type cachedCandidates struct {
	Limit     int                        `json:"limit"`
	Providers []*entities.ProviderRecord `json:"providers"`
}

// CachedProviderAdapter wraps a ProviderRepository with caching
type CachedProviderAdapter struct {
	adapter       repositories.ProviderRepository
	cache         providers.CacheProvider
	metrics       *observability.Metrics
	candidatesTTL int
}

// NewCachedProviderAdapter creates a new cached provider adapter. A ttl of
// zero or less falls back to the default candidate TTL.
func NewCachedProviderAdapter(adapter repositories.ProviderRepository, cache providers.CacheProvider, metrics *observability.Metrics, candidatesTTL int) *CachedProviderAdapter {
	if candidatesTTL <= 0 {
		candidatesTTL = defaultCandidatesTTL
	}
	return &CachedProviderAdapter{
		adapter:       adapter,
		cache:         cache,
		metrics:       metrics,
		candidatesTTL: candidatesTTL,
	}
}

// ListDiscoverable returns the discoverable candidates, served from cache when possible
func (a *CachedProviderAdapter) ListDiscoverable(ctx context.Context, limit int) ([]*entities.ProviderRecord, error) {
	logger := observability.LoggerFromContext(ctx)

	if data, err := a.cache.Get(ctx, discoverableCacheKey); err == nil {
		var cached cachedCandidates
		if err := json.Unmarshal(data, &cached); err == nil && coversLimit(cached, limit) {
			observability.RecordCacheHit(ctx, a.metrics, "providers")
			if limit > 0 && len(cached.Providers) > limit {
				return cached.Providers[:limit], nil
			}
			return cached.Providers, nil
		} else if err != nil {
			logger.Warn().Err(err).Msg("failed to unmarshal cached provider candidates")
		}
	} else if !errors.Is(err, providers.ErrCacheMiss) {
		logger.Warn().Err(err).Msg("provider candidate cache unavailable")
	}
	observability.RecordCacheMiss(ctx, a.metrics, "providers")

	list, err := a.adapter.ListDiscoverable(ctx, limit)
	if err != nil {
		return nil, err
	}

	// Written before returning; an async write could land after an invalidation.
	if data, err := json.Marshal(cachedCandidates{Limit: limit, Providers: list}); err == nil {
		if err := a.cache.Set(ctx, discoverableCacheKey, data, a.candidatesTTL); err != nil {
			logger.Warn().Err(err).Msg("failed to cache provider candidates")
		}
	}
	return list, nil
}

// coversLimit reports whether a list fetched with cached.Limit can answer a request for limit
func coversLimit(cached cachedCandidates, limit int) bool {
	if cached.Limit <= 0 {
		return true
	}
	if limit <= 0 {
		return len(cached.Providers) < cached.Limit
	}
	return cached.Limit >= limit || len(cached.Providers) < cached.Limit
}

// GetByID retrieves a provider by ID with caching
func (a *CachedProviderAdapter) GetByID(ctx context.Context, id string) (*entities.ProviderRecord, error) {
	logger := observability.LoggerFromContext(ctx)
	cacheKey := providerCacheKey(id)

	if data, err := a.cache.Get(ctx, cacheKey); err == nil {
		var provider entities.ProviderRecord
		if err := json.Unmarshal(data, &provider); err == nil {
			observability.RecordCacheHit(ctx, a.metrics, "provider")
			return &provider, nil
		}
		logger.Warn().Str("provider_id", id).Msg("failed to unmarshal cached provider")
	}
	observability.RecordCacheMiss(ctx, a.metrics, "provider")

	provider, err := a.adapter.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(provider); err == nil {
		if err := a.cache.Set(ctx, cacheKey, data, providerByIDTTL); err != nil {
			logger.Warn().Err(err).Str("provider_id", id).Msg("failed to cache provider")
		}
	}
	return provider, nil
}

// InvalidateProvider drops the cached record and the candidate list
func (a *CachedProviderAdapter) InvalidateProvider(ctx context.Context, id string) error {
	keys := []string{discoverableCacheKey}
	if id != "" {
		keys = append(keys, providerCacheKey(id))
	}
	return a.cache.Delete(ctx, keys...)
}

// Warm reloads the candidate list from the store into the cache and returns its size
func (a *CachedProviderAdapter) Warm(ctx context.Context, limit int) (int, error) {
	list, err := a.adapter.ListDiscoverable(ctx, limit)
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(cachedCandidates{Limit: limit, Providers: list})
	if err != nil {
		return 0, fmt.Errorf("failed to encode provider candidates: %w", err)
	}
	if err := a.cache.Set(ctx, discoverableCacheKey, data, a.candidatesTTL); err != nil {
		return 0, fmt.Errorf("failed to cache provider candidates: %w", err)
	}
	return len(list), nil
}
