package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

var (
	_ repositories.ReviewRepository   = (*ReviewStore)(nil)
	_ repositories.SettingsRepository = (*SettingsStore)(nil)
)

// ReviewStore is the in-memory review repository
type ReviewStore struct {
	s *Store
}

// Upsert stores the review keyed by ID and recomputes the provider's rating
func (r *ReviewStore) Upsert(_ context.Context, review *entities.Review) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	provider, ok := r.s.providers[review.ProviderID]
	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", review.ProviderID))
	}

	stored := *review
	r.s.reviews[review.ID] = &stored

	total, count := 0, 0
	for _, rv := range r.s.reviews {
		if rv.ProviderID == review.ProviderID {
			total += rv.Rating
			count++
		}
	}
	provider.ReviewCount = count
	provider.RatingAverage = float64(total) / float64(count)
	return nil
}

// ListForProvider returns the provider's reviews, most recent first
func (r *ReviewStore) ListForProvider(_ context.Context, providerID string, limit int) ([]*entities.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	result := []*entities.Review{}
	for _, rv := range r.s.reviews {
		if rv.ProviderID == providerID {
			cp := *rv
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// SettingsStore is the in-memory settings repository
type SettingsStore struct {
	s *Store
}

// GetSearchRadius returns the stored radius
func (st *SettingsStore) GetSearchRadius(_ context.Context, userID string) (int, bool, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	km, ok := st.s.radius[userID]
	return km, ok, nil
}

// SetSearchRadius stores the radius
func (st *SettingsStore) SetSearchRadius(_ context.Context, userID string, radiusKm int) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	st.s.radius[userID] = radiusKm
	return nil
}
