package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
)

// ProviderCacheInvalidator drops cached state for a provider
type ProviderCacheInvalidator interface {
	InvalidateProvider(ctx context.Context, providerID string) error
}

// CacheInvalidationService invalidates provider caches on provider change events
type CacheInvalidationService struct {
	invalidator ProviderCacheInvalidator
	eventBus    providers.EventBus
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(invalidator ProviderCacheInvalidator, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		invalidator: invalidator,
		eventBus:    eventBus,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins listening for provider updates
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelProviderUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to provider updates: %w", err)
	}

	s.wg.Add(1)
	go s.processEvents(eventChan)
	observability.GetLogger().Info().Msg("cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	s.wg.Wait()
	observability.GetLogger().Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.ChangeEvent) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.ChangeEvent) {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()

	if err := s.InvalidateProvider(ctx, event.EntityID); err != nil {
		observability.GetLogger().Warn().Err(err).
			Str("event_id", event.ID).
			Str("provider_id", event.EntityID).
			Msg("failed to invalidate provider cache")
	}
}

// InvalidateProvider invalidates cache for a specific provider
func (s *CacheInvalidationService) InvalidateProvider(ctx context.Context, providerID string) error {
	if err := s.invalidator.InvalidateProvider(ctx, providerID); err != nil {
		return fmt.Errorf("failed to invalidate provider cache: %w", err)
	}
	observability.GetLogger().Debug().Str("provider_id", providerID).Msg("invalidated provider cache")
	return nil
}
