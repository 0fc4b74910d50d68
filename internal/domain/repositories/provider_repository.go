package repositories

import (
	"context"

	"github.com/zatekoja/localservices/internal/domain/entities"
)

// ProviderRepository defines read access to discoverable provider records
type ProviderRepository interface {
	// ListDiscoverable returns providers whose availability is set and whose
	// profile is complete, in store order, up to limit records
	ListDiscoverable(ctx context.Context, limit int) ([]*entities.ProviderRecord, error)

	// GetByID retrieves a provider by ID
	GetByID(ctx context.Context, id string) (*entities.ProviderRecord, error)
}

// ProviderSearchRepository defines the geo candidate index (e.g. Typesense)
type ProviderSearchRepository interface {
	// SearchNearby returns discoverable providers within radiusKm of origin
	SearchNearby(ctx context.Context, params NearbySearchParams) ([]*entities.ProviderRecord, error)

	// Index upserts a provider into the index
	Index(ctx context.Context, provider *entities.ProviderRecord) error

	// Delete removes a provider from the index; an absent provider is not an error
	Delete(ctx context.Context, id string) error
}

// NearbySearchParams defines a geo candidate search
type NearbySearchParams struct {
	Origin   entities.Coordinate
	RadiusKm float64
	Limit    int
}
