package memory

import (
	"context"
	"fmt"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

var _ repositories.ProviderRepository = (*ProviderStore)(nil)

// ProviderStore is the in-memory provider repository
type ProviderStore struct {
	s *Store
}

// Put stores a raw provider record without validation. Records may be
// incomplete, mirroring profiles still being filled in.
func (p *ProviderStore) Put(_ context.Context, record *entities.ProviderRecord) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	p.s.putProviderLocked(record)
}

// ListDiscoverable returns providers with availability set and a complete profile, in insertion order
func (p *ProviderStore) ListDiscoverable(_ context.Context, limit int) ([]*entities.ProviderRecord, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	result := make([]*entities.ProviderRecord, 0, len(p.s.providerOrder))
	for _, id := range p.s.providerOrder {
		record := p.s.providers[id]
		if record.AvailabilityStatus == "" || !record.ProfileComplete {
			continue
		}
		result = append(result, copyProvider(record))
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// GetByID retrieves a provider by ID
func (p *ProviderStore) GetByID(_ context.Context, id string) (*entities.ProviderRecord, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	record, ok := p.s.providers[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", id))
	}
	return copyProvider(record), nil
}
