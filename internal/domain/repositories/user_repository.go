package repositories

import (
	"context"

	"github.com/zatekoja/localservices/internal/domain/entities"
)

// UserRepository defines the interface for user profile operations
type UserRepository interface {
	// GetByID retrieves a user by ID
	GetByID(ctx context.Context, id string) (*entities.UserProfile, error)

	// GetByIDs retrieves multiple users by their IDs
	GetByIDs(ctx context.Context, ids []string) ([]*entities.UserProfile, error)

	// Upsert validates the profile variant and stores it
	Upsert(ctx context.Context, profile *entities.UserProfile) error
}

// ReviewRepository defines the interface for review operations
type ReviewRepository interface {
	// Upsert stores the review, replacing the reviewer's previous review of
	// the same provider, and refreshes the provider's rating aggregate
	Upsert(ctx context.Context, review *entities.Review) error

	// ListForProvider returns reviews addressed to a provider, most recent first
	ListForProvider(ctx context.Context, providerID string, limit int) ([]*entities.Review, error)
}

// SettingsRepository holds the per-user persisted search radius
type SettingsRepository interface {
	// GetSearchRadius returns the stored radius; found is false when unset
	GetSearchRadius(ctx context.Context, userID string) (radiusKm int, found bool, err error)

	// SetSearchRadius persists the radius
	SetSearchRadius(ctx context.Context, userID string, radiusKm int) error
}

// NotificationReadRepository persists a user's notification read marks,
// keyed by feed id with the source version that was read
type NotificationReadRepository interface {
	// GetReadMarks returns the stored marks; an empty map when none were saved
	GetReadMarks(ctx context.Context, userID string) (map[string]string, error)

	// SaveReadMarks replaces the stored marks
	SaveReadMarks(ctx context.Context, userID string, marks map[string]string) error
}
