package search

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	tsclient "github.com/zatekoja/localservices/internal/infrastructure/clients/typesense"
)

// maxPerPage is the Typesense upper bound for per_page
const maxPerPage = 250

// TypesenseAdapter implements provider candidate search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

var _ repositories.ProviderSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the providers collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	return a.client.InitSchema(ctx)
}

// Index upserts a provider document
func (a *TypesenseAdapter) Index(ctx context.Context, provider *entities.ProviderRecord) error {
	_, err := a.client.Client().Collection(tsclient.ProvidersCollection).Documents().Upsert(ctx, providerToDocument(provider))
	if err != nil {
		return fmt.Errorf("failed to index provider: %w", err)
	}
	return nil
}

// Delete removes a provider from the index. A provider that was never
// indexed is already gone.
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(tsclient.ProvidersCollection).Document(id).Delete(ctx)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete provider from index: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var httpErr *typesense.HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound
}

// SearchNearby returns indexed providers within the radius, nearest first
func (a *TypesenseAdapter) SearchNearby(ctx context.Context, params repositories.NearbySearchParams) ([]*entities.ProviderRecord, error) {
	searchParams := buildNearbyParams(params)

	result, err := a.client.Client().Collection(tsclient.ProvidersCollection).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search providers: %w", err)
	}

	providers := []*entities.ProviderRecord{}
	if result.Hits == nil {
		return providers, nil
	}
	for _, hit := range *result.Hits {
		if hit.Document == nil {
			continue
		}
		if p := documentToProvider(*hit.Document); p != nil {
			providers = append(providers, p)
		}
	}
	return providers, nil
}

func buildNearbyParams(params repositories.NearbySearchParams) *api.SearchCollectionParams {
	limit := params.Limit
	if limit <= 0 || limit > maxPerPage {
		limit = maxPerPage
	}
	lat, lon := params.Origin.Latitude, params.Origin.Longitude

	return &api.SearchCollectionParams{
		Q:        pointer.String("*"),
		QueryBy:  pointer.String("display_name"),
		FilterBy: pointer.String(fmt.Sprintf("has_location:=true && location:(%f, %f, %f km)", lat, lon, params.RadiusKm)),
		SortBy:   pointer.String(fmt.Sprintf("location(%f, %f):asc", lat, lon)),
		Page:     pointer.Int(1),
		PerPage:  pointer.Int(limit),
	}
}

func providerToDocument(p *entities.ProviderRecord) map[string]interface{} {
	doc := map[string]interface{}{
		"id":                  p.ID,
		"display_name":        p.DisplayName,
		"service_type":        p.ServiceType,
		"neighborhood":        p.Neighborhood,
		"has_location":        p.Coordinate != nil,
		"rating_average":      p.RatingAverage,
		"review_count":        p.ReviewCount,
		"availability_status": string(p.AvailabilityStatus),
		"updated_at":          p.UpdatedAt.Unix(),
	}
	if p.Coordinate != nil {
		doc["location"] = []float64{p.Coordinate.Latitude, p.Coordinate.Longitude}
	}
	return doc
}

// documentToProvider rebuilds a record from a search hit. Documents lacking an id are dropped.
func documentToProvider(doc map[string]interface{}) *entities.ProviderRecord {
	id, _ := doc["id"].(string)
	if id == "" {
		return nil
	}

	p := &entities.ProviderRecord{ID: id, ProfileComplete: true}
	p.DisplayName, _ = doc["display_name"].(string)
	p.ServiceType, _ = doc["service_type"].(string)
	p.Neighborhood, _ = doc["neighborhood"].(string)
	if status, ok := doc["availability_status"].(string); ok {
		p.AvailabilityStatus = entities.AvailabilityStatus(status)
	}
	if v, ok := doc["rating_average"].(float64); ok {
		p.RatingAverage = v
	}
	if v, ok := doc["review_count"].(float64); ok {
		p.ReviewCount = int(v)
	}
	if v, ok := doc["updated_at"].(float64); ok {
		p.UpdatedAt = time.Unix(int64(v), 0).UTC()
	}
	if loc, ok := doc["location"].([]interface{}); ok && len(loc) == 2 {
		lat, latOK := loc[0].(float64)
		lon, lonOK := loc[1].(float64)
		if latOK && lonOK {
			p.Coordinate = &entities.Coordinate{Latitude: lat, Longitude: lon}
		}
	}
	return p
}
