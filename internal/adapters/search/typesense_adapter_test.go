package search

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
)

func TestProviderDocumentRoundTrip(t *testing.T) {
	updated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	provider := &entities.ProviderRecord{
		ID:                 "p1",
		DisplayName:        "João Encanamentos",
		ServiceType:        "Encanador",
		Neighborhood:       "Tijuca",
		Coordinate:         &entities.Coordinate{Latitude: -22.9035, Longitude: -43.2096},
		RatingAverage:      4.5,
		ReviewCount:        12,
		AvailabilityStatus: entities.AvailabilityAvailable,
		ProfileComplete:    true,
		UpdatedAt:          updated,
	}

	doc := providerToDocument(provider)
	assert.Equal(t, true, doc["has_location"])
	assert.Equal(t, []float64{-22.9035, -43.2096}, doc["location"])

	// Typesense returns numbers as float64 and arrays as []interface{}
	hit := map[string]interface{}{
		"id":                  "p1",
		"display_name":        "João Encanamentos",
		"service_type":        "Encanador",
		"neighborhood":        "Tijuca",
		"location":            []interface{}{-22.9035, -43.2096},
		"rating_average":      4.5,
		"review_count":        float64(12),
		"availability_status": "available",
		"updated_at":          float64(updated.Unix()),
	}

	got := documentToProvider(hit)
	require.NotNil(t, got)
	assert.Equal(t, provider, got)
}

func TestProviderDocument_WithoutLocation(t *testing.T) {
	doc := providerToDocument(&entities.ProviderRecord{ID: "p2", DisplayName: "Maria"})
	assert.Equal(t, false, doc["has_location"])
	_, hasLocation := doc["location"]
	assert.False(t, hasLocation)

	got := documentToProvider(map[string]interface{}{"id": "p2", "display_name": "Maria"})
	require.NotNil(t, got)
	assert.Nil(t, got.Coordinate)
}

func TestDocumentToProvider_MissingID(t *testing.T) {
	assert.Nil(t, documentToProvider(map[string]interface{}{"display_name": "x"}))
}

func TestBuildNearbyParams(t *testing.T) {
	params := buildNearbyParams(repositories.NearbySearchParams{
		Origin:   entities.Coordinate{Latitude: -22.9068, Longitude: -43.1729},
		RadiusKm: 5,
		Limit:    1000,
	})

	assert.Equal(t, "has_location:=true && location:(-22.906800, -43.172900, 5.000000 km)", *params.FilterBy)
	assert.Equal(t, "location(-22.906800, -43.172900):asc", *params.SortBy)
	assert.Equal(t, maxPerPage, *params.PerPage)
}

func TestIsNotFound(t *testing.T) {
	missing := &typesense.HTTPError{Status: http.StatusNotFound, Body: []byte(`{"message":"Could not find a document with id: p1"}`)}

	assert.True(t, isNotFound(missing))
	assert.True(t, isNotFound(fmt.Errorf("delete: %w", missing)))
	assert.False(t, isNotFound(&typesense.HTTPError{Status: http.StatusServiceUnavailable}))
	assert.False(t, isNotFound(errors.New("connection refused")))
}
