package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

// ProviderAdapter implements the ProviderRepository interface over the users table
type ProviderAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewProviderAdapter creates a new provider adapter
func NewProviderAdapter(client *postgres.Client) repositories.ProviderRepository {
	return &ProviderAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// ListDiscoverable returns providers with availability set and a complete
// profile, oldest first so the result order is stable across calls
func (a *ProviderAdapter) ListDiscoverable(ctx context.Context, limit int) ([]*entities.ProviderRecord, error) {
	ds := a.db.From(usersTable).Prepared(true).
		Select(userColumns...).
		Where(goqu.Ex{
			"role":                string(entities.RoleProvider),
			"profile_complete":    true,
			"availability_status": goqu.Op{"isNot": nil},
		}).
		Order(goqu.C("created_at").Asc(), goqu.C("id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var rows []userRow
	if err := a.client.DBX().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list discoverable providers", err)
	}

	providers := make([]*entities.ProviderRecord, 0, len(rows))
	for i := range rows {
		providers = append(providers, rows[i].toProviderRecord())
	}
	return providers, nil
}

// GetByID retrieves a provider by ID
func (a *ProviderAdapter) GetByID(ctx context.Context, id string) (*entities.ProviderRecord, error) {
	query, args, err := a.db.From(usersTable).Prepared(true).
		Select(userColumns...).
		Where(goqu.Ex{"id": id, "role": string(entities.RoleProvider)}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var row userRow
	if err := a.client.DBX().GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", id))
		}
		return nil, apperrors.NewInternalError("failed to get provider", err)
	}
	return row.toProviderRecord(), nil
}
