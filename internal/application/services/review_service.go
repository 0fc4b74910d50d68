package services

import (
	"context"
	"strings"
	"time"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	"github.com/zatekoja/localservices/internal/loaders"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

// ReviewService records client reviews of providers
type ReviewService struct {
	reviewRepo   repositories.ReviewRepository
	providerRepo repositories.ProviderRepository
	userRepo     repositories.UserRepository
	eventBus     providers.EventBus
	now          func() time.Time
}

// NewReviewService creates a new review service. userRepo and eventBus may be nil.
func NewReviewService(
	reviewRepo repositories.ReviewRepository,
	providerRepo repositories.ProviderRepository,
	userRepo repositories.UserRepository,
	eventBus providers.EventBus,
) *ReviewService {
	return &ReviewService{
		reviewRepo:   reviewRepo,
		providerRepo: providerRepo,
		userRepo:     userRepo,
		eventBus:     eventBus,
		now:          time.Now,
	}
}

// Submit stores the reviewer's review of a provider, replacing any earlier
// review by the same reviewer
func (s *ReviewService) Submit(ctx context.Context, providerID, reviewerID, reviewerName string, rating int, comment string) (*entities.Review, error) {
	if providerID == "" || reviewerID == "" {
		return nil, apperrors.NewValidationError("provider and reviewer ids are required")
	}
	if providerID == reviewerID {
		return nil, apperrors.NewValidationError("providers cannot review themselves")
	}

	review := &entities.Review{
		ID:           entities.ReviewID(providerID, reviewerID),
		ProviderID:   providerID,
		ReviewerID:   reviewerID,
		ReviewerName: reviewerName,
		Rating:       rating,
		Comment:      strings.TrimSpace(comment),
		CreatedAt:    s.now().UTC(),
	}
	if err := review.Validate(); err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	ctx, span := observability.StartSpan(ctx, "ReviewService.Submit")
	defer span.End()

	if _, err := s.providerRepo.GetByID(ctx, providerID); err != nil {
		return nil, err
	}
	if review.ReviewerName == "" && s.userRepo != nil {
		if users, err := loaders.LoadUsers(ctx, s.userRepo, []string{reviewerID}); err == nil {
			if u, ok := users[reviewerID]; ok {
				review.ReviewerName = u.DisplayName
			}
		}
	}

	if err := s.reviewRepo.Upsert(ctx, review); err != nil {
		observability.RecordError(span, err)
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return nil, err
		}
		return nil, apperrors.NewInternalError("failed to save review", err)
	}

	s.publish(ctx, review)
	return review, nil
}

func (s *ReviewService) publish(ctx context.Context, review *entities.Review) {
	if s.eventBus == nil {
		return
	}
	logger := observability.LoggerFromContext(ctx)

	if event, err := entities.NewChangeEvent(entities.ChangeEventReviewSubmitted, review.ID, review); err == nil {
		if err := s.eventBus.Publish(ctx, providers.UserReviewsChannel(review.ProviderID), event); err != nil {
			logger.Warn().Err(err).Str("review_id", review.ID).Msg("failed to publish review")
		}
	}
	// The provider's rating aggregate changed.
	if event, err := entities.NewChangeEvent(entities.ChangeEventProviderUpdated, review.ProviderID, nil); err == nil {
		if err := s.eventBus.Publish(ctx, providers.EventChannelProviderUpdates, event); err != nil {
			logger.Warn().Err(err).Str("provider_id", review.ProviderID).Msg("failed to publish provider update")
		}
	}
}

// ListForProvider returns the provider's reviews, most recent first
func (s *ReviewService) ListForProvider(ctx context.Context, providerID string, limit int) ([]*entities.Review, error) {
	return s.reviewRepo.ListForProvider(ctx, providerID, limit)
}
