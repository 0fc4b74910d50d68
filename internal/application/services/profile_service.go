package services

import (
	"context"
	"strings"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

// ProfileService reads and saves user profiles
type ProfileService struct {
	userRepo repositories.UserRepository
	eventBus providers.EventBus
}

// NewProfileService creates a new profile service. eventBus may be nil.
func NewProfileService(userRepo repositories.UserRepository, eventBus providers.EventBus) *ProfileService {
	return &ProfileService{userRepo: userRepo, eventBus: eventBus}
}

// Get returns the profile of userID
func (s *ProfileService) Get(ctx context.Context, userID string) (*entities.UserProfile, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// Save validates and stores a profile. Saving a provider profile announces
// the change so cached and indexed discovery data is refreshed.
func (s *ProfileService) Save(ctx context.Context, profile *entities.UserProfile) (*entities.UserProfile, error) {
	profile.DisplayName = strings.TrimSpace(profile.DisplayName)
	if profile.Provider != nil {
		profile.Provider.ServiceType = strings.TrimSpace(profile.Provider.ServiceType)
		profile.Provider.Neighborhood = strings.TrimSpace(profile.Provider.Neighborhood)
	}
	if err := profile.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	ctx, span := observability.StartSpan(ctx, "ProfileService.Save")
	defer span.End()

	if err := s.userRepo.Upsert(ctx, profile); err != nil {
		observability.RecordError(span, err)
		if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			return nil, err
		}
		return nil, apperrors.NewInternalError("failed to save profile", err)
	}

	if profile.Role == entities.RoleProvider && s.eventBus != nil {
		event, err := entities.NewChangeEvent(entities.ChangeEventProviderUpdated, profile.ID, nil)
		if err == nil {
			if err := s.eventBus.Publish(ctx, providers.EventChannelProviderUpdates, event); err != nil {
				observability.LoggerFromContext(ctx).Warn().Err(err).Str("provider_id", profile.ID).Msg("failed to publish provider update")
			}
		}
	}
	return s.userRepo.GetByID(ctx, profile.ID)
}
