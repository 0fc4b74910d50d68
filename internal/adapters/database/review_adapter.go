package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/lib/pq"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

const reviewsTable = "reviews"

// foreignKeyViolation is the Postgres SQLSTATE for a missing referenced row
const foreignKeyViolation = "23503"

var reviewColumns = []interface{}{
	"id", "provider_id", "reviewer_id", "reviewer_name", "rating", "comment", "created_at",
}

const refreshRatingSQL = `
	UPDATE users SET
		rating_average = agg.avg_rating,
		review_count = agg.review_count,
		updated_at = now()
	FROM (
		SELECT COALESCE(AVG(rating), 0) AS avg_rating, COUNT(*) AS review_count
		FROM reviews WHERE provider_id = $1
	) AS agg
	WHERE users.id = $1 AND users.role = 'provider'
`

// ReviewAdapter implements the ReviewRepository interface
type ReviewAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewReviewAdapter creates a new review adapter
func NewReviewAdapter(client *postgres.Client) repositories.ReviewRepository {
	return &ReviewAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Upsert stores the review and refreshes the provider's rating in one transaction
func (a *ReviewAdapter) Upsert(ctx context.Context, review *entities.Review) error {
	query, args, err := a.db.Insert(reviewsTable).Prepared(true).
		Rows(goqu.Record{
			"id":            review.ID,
			"provider_id":   review.ProviderID,
			"reviewer_id":   review.ReviewerID,
			"reviewer_name": review.ReviewerName,
			"rating":        review.Rating,
			"comment":       review.Comment,
			"created_at":    review.CreatedAt,
		}).
		OnConflict(goqu.DoUpdate("provider_id, reviewer_id", goqu.Record{
			"reviewer_name": goqu.L("EXCLUDED.reviewer_name"),
			"rating":        goqu.L("EXCLUDED.rating"),
			"comment":       goqu.L("EXCLUDED.comment"),
			"created_at":    goqu.L("EXCLUDED.created_at"),
		})).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build upsert query", err)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", review.ProviderID))
		}
		return apperrors.NewInternalError("failed to upsert review", err)
	}

	result, err := tx.ExecContext(ctx, refreshRatingSQL, review.ProviderID)
	if err != nil {
		return apperrors.NewInternalError("failed to refresh provider rating", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("provider with id %s not found", review.ProviderID))
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit review", err)
	}
	return nil
}

// ListForProvider returns reviews addressed to the provider, most recent first
func (a *ReviewAdapter) ListForProvider(ctx context.Context, providerID string, limit int) ([]*entities.Review, error) {
	ds := a.db.From(reviewsTable).Prepared(true).
		Select(reviewColumns...).
		Where(goqu.Ex{"provider_id": providerID}).
		Order(goqu.C("created_at").Desc(), goqu.C("id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	reviews := []*entities.Review{}
	if err := a.client.DBX().SelectContext(ctx, &reviews, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to list reviews", err)
	}
	return reviews, nil
}
