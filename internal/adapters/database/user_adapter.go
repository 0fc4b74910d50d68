package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

const usersTable = "users"

var userColumns = []interface{}{
	"id", "role", "display_name", "phone", "service_type", "neighborhood",
	"latitude", "longitude", "availability_status", "bio", "profile_complete",
	"rating_average", "review_count", "created_at", "updated_at",
}

// userRow is a row of the users table. Providers and clients share it;
// provider-only columns are NULL for clients.
type userRow struct {
	ID                 string          `db:"id"`
	Role               string          `db:"role"`
	DisplayName        string          `db:"display_name"`
	Phone              string          `db:"phone"`
	ServiceType        sql.NullString  `db:"service_type"`
	Neighborhood       sql.NullString  `db:"neighborhood"`
	Latitude           sql.NullFloat64 `db:"latitude"`
	Longitude          sql.NullFloat64 `db:"longitude"`
	AvailabilityStatus sql.NullString  `db:"availability_status"`
	Bio                string          `db:"bio"`
	ProfileComplete    bool            `db:"profile_complete"`
	RatingAverage      float64         `db:"rating_average"`
	ReviewCount        int             `db:"review_count"`
	CreatedAt          time.Time       `db:"created_at"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func (r *userRow) coordinate() *entities.Coordinate {
	if !r.Latitude.Valid || !r.Longitude.Valid {
		return nil
	}
	return &entities.Coordinate{Latitude: r.Latitude.Float64, Longitude: r.Longitude.Float64}
}

func (r *userRow) toProfile() *entities.UserProfile {
	profile := &entities.UserProfile{
		ID:          r.ID,
		Role:        entities.Role(r.Role),
		DisplayName: r.DisplayName,
		Phone:       r.Phone,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if profile.Role == entities.RoleProvider {
		profile.Provider = &entities.ProviderDetails{
			ServiceType:        r.ServiceType.String,
			Neighborhood:       r.Neighborhood.String,
			Coordinate:         r.coordinate(),
			AvailabilityStatus: entities.AvailabilityStatus(r.AvailabilityStatus.String),
			Bio:                r.Bio,
		}
	}
	return profile
}

func (r *userRow) toProviderRecord() *entities.ProviderRecord {
	return &entities.ProviderRecord{
		ID:                 r.ID,
		DisplayName:        r.DisplayName,
		ServiceType:        r.ServiceType.String,
		Neighborhood:       r.Neighborhood.String,
		Coordinate:         r.coordinate(),
		RatingAverage:      r.RatingAverage,
		ReviewCount:        r.ReviewCount,
		AvailabilityStatus: entities.AvailabilityStatus(r.AvailabilityStatus.String),
		ProfileComplete:    r.ProfileComplete,
		UpdatedAt:          r.UpdatedAt,
	}
}

// UserAdapter implements the UserRepository interface
type UserAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewUserAdapter creates a new user adapter
func NewUserAdapter(client *postgres.Client) repositories.UserRepository {
	return &UserAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a user by ID
func (a *UserAdapter) GetByID(ctx context.Context, id string) (*entities.UserProfile, error) {
	query, args, err := a.db.From(usersTable).Prepared(true).
		Select(userColumns...).
		Where(goqu.Ex{"id": id}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var row userRow
	if err := a.client.DBX().GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("user with id %s not found", id))
		}
		return nil, apperrors.NewInternalError("failed to get user", err)
	}
	return row.toProfile(), nil
}

// GetByIDs retrieves multiple users by their IDs
func (a *UserAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.UserProfile, error) {
	if len(ids) == 0 {
		return []*entities.UserProfile{}, nil
	}

	query, args, err := a.db.From(usersTable).Prepared(true).
		Select(userColumns...).
		Where(goqu.Ex{"id": ids}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	var rows []userRow
	if err := a.client.DBX().SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to get users by ids", err)
	}

	users := make([]*entities.UserProfile, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].toProfile())
	}
	return users, nil
}

// Upsert validates the profile variant and inserts or updates it.
// Rating aggregates and created_at are never overwritten.
func (a *UserAdapter) Upsert(ctx context.Context, profile *entities.UserProfile) error {
	if err := profile.Validate(); err != nil {
		return apperrors.NewValidationError(err.Error())
	}

	now := time.Now().UTC()
	record := goqu.Record{
		"id":                  profile.ID,
		"role":                string(profile.Role),
		"display_name":        profile.DisplayName,
		"phone":               profile.Phone,
		"service_type":        nil,
		"neighborhood":        nil,
		"latitude":            nil,
		"longitude":           nil,
		"availability_status": nil,
		"bio":                 "",
		"profile_complete":    true,
		"created_at":          now,
		"updated_at":          now,
	}
	if p := profile.Provider; p != nil {
		record["service_type"] = p.ServiceType
		record["neighborhood"] = p.Neighborhood
		record["availability_status"] = string(p.AvailabilityStatus)
		record["bio"] = p.Bio
		if p.Coordinate != nil {
			record["latitude"] = p.Coordinate.Latitude
			record["longitude"] = p.Coordinate.Longitude
		}
	}

	update := goqu.Record{"updated_at": now}
	for _, col := range []string{
		"role", "display_name", "phone", "service_type", "neighborhood",
		"latitude", "longitude", "availability_status", "bio", "profile_complete",
	} {
		update[col] = goqu.L("EXCLUDED." + col)
	}

	query, args, err := a.db.Insert(usersTable).Prepared(true).
		Rows(record).
		OnConflict(goqu.DoUpdate("id", update)).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	if _, err := a.client.DBX().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to upsert user", err)
	}
	return nil
}
