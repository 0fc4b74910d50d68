package services

import (
	"context"
	"fmt"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

// ProviderIndexService keeps the provider search index in line with the database
type ProviderIndexService struct {
	providerRepo repositories.ProviderRepository
	searchRepo   repositories.ProviderSearchRepository
}

// NewProviderIndexService creates a new provider index service
func NewProviderIndexService(providerRepo repositories.ProviderRepository, searchRepo repositories.ProviderSearchRepository) *ProviderIndexService {
	return &ProviderIndexService{providerRepo: providerRepo, searchRepo: searchRepo}
}

// Reindex indexes every discoverable provider, up to limit. Individual
// failures are logged and skipped; the number indexed is returned.
func (s *ProviderIndexService) Reindex(ctx context.Context, limit int) (int, error) {
	logger := observability.LoggerFromContext(ctx)

	records, err := s.providerRepo.ListDiscoverable(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list providers: %w", err)
	}

	indexed := 0
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		if err := s.searchRepo.Index(ctx, record); err != nil {
			logger.Warn().Err(err).Str("provider_id", record.ID).Msg("failed to index provider")
			continue
		}
		indexed++
	}
	return indexed, nil
}

// Sync re-reads one provider and indexes it, or removes it from the index
// when it is gone or no longer discoverable.
func (s *ProviderIndexService) Sync(ctx context.Context, id string) error {
	record, err := s.providerRepo.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return s.removeFromIndex(ctx, id)
		}
		return err
	}
	if !discoverable(record) {
		return s.removeFromIndex(ctx, id)
	}
	return s.searchRepo.Index(ctx, record)
}

func (s *ProviderIndexService) removeFromIndex(ctx context.Context, id string) error {
	err := s.searchRepo.Delete(ctx, id)
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return nil
	}
	return err
}

// Watch syncs each provider announced on the provider updates channel until
// ctx is cancelled or the channel closes.
func (s *ProviderIndexService) Watch(ctx context.Context, bus providers.EventBus) error {
	events, err := bus.Subscribe(ctx, providers.EventChannelProviderUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to provider updates: %w", err)
	}
	logger := observability.LoggerFromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if event.Type != entities.ChangeEventProviderUpdated || event.EntityID == "" {
				continue
			}
			if err := s.Sync(ctx, event.EntityID); err != nil {
				logger.Warn().Err(err).Str("provider_id", event.EntityID).Msg("failed to sync provider index")
			}
		}
	}
}

func discoverable(record *entities.ProviderRecord) bool {
	return record.AvailabilityStatus != "" && record.ProfileComplete && record.HasRequiredFields()
}
