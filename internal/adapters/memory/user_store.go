package memory

import (
	"context"
	"fmt"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

var _ repositories.UserRepository = (*UserStore)(nil)

// UserStore is the in-memory user repository
type UserStore struct {
	s *Store
}

// GetByID retrieves a user by ID
func (u *UserStore) GetByID(_ context.Context, id string) (*entities.UserProfile, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	user, ok := u.s.users[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", id))
	}
	return copyUser(user), nil
}

// GetByIDs retrieves the users that exist among ids, in request order
func (u *UserStore) GetByIDs(_ context.Context, ids []string) ([]*entities.UserProfile, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	result := make([]*entities.UserProfile, 0, len(ids))
	for _, id := range ids {
		if user, ok := u.s.users[id]; ok {
			result = append(result, copyUser(user))
		}
	}
	return result, nil
}

// Upsert validates and stores a profile. Provider profiles are mirrored into
// the provider collection with their current rating aggregate.
func (u *UserStore) Upsert(_ context.Context, profile *entities.UserProfile) error {
	if err := profile.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	now := u.s.now().UTC()
	stored := copyUser(profile)
	if existing, ok := u.s.users[profile.ID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	u.s.users[profile.ID] = stored

	if stored.Role == entities.RoleProvider {
		record := &entities.ProviderRecord{
			ID:                 stored.ID,
			DisplayName:        stored.DisplayName,
			ServiceType:        stored.Provider.ServiceType,
			Neighborhood:       stored.Provider.Neighborhood,
			Coordinate:         stored.Provider.Coordinate,
			AvailabilityStatus: stored.Provider.AvailabilityStatus,
			ProfileComplete:    true,
			UpdatedAt:          now,
		}
		if existing, ok := u.s.providers[stored.ID]; ok {
			record.RatingAverage = existing.RatingAverage
			record.ReviewCount = existing.ReviewCount
		}
		u.s.putProviderLocked(record)
	} else {
		delete(u.s.providers, stored.ID)
		for i, id := range u.s.providerOrder {
			if id == stored.ID {
				u.s.providerOrder = append(u.s.providerOrder[:i], u.s.providerOrder[i+1:]...)
				break
			}
		}
	}
	return nil
}
