package services

import (
	"context"
	"errors"
	"time"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
	"github.com/zatekoja/localservices/pkg/geo"
)

const defaultLocationTimeout = 3 * time.Second

// LocationService resolves the caller's position and measures distances
type LocationService struct {
	provider providers.LocationProvider
	fallback entities.Coordinate
	timeout  time.Duration
}

// NewLocationService creates a new location service. fallback is used by
// Resolve whenever the provider cannot report a position.
func NewLocationService(provider providers.LocationProvider, fallback entities.Coordinate, timeout time.Duration) *LocationService {
	if timeout <= 0 {
		timeout = defaultLocationTimeout
	}
	return &LocationService{
		provider: provider,
		fallback: fallback,
		timeout:  timeout,
	}
}

// CurrentCoordinate asks the provider for the caller's position. Denied
// permission, timeouts and invalid readings fail with LocationUnavailable.
func (s *LocationService) CurrentCoordinate(ctx context.Context) (entities.Coordinate, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		coord *entities.Coordinate
		err   error
	}
	done := make(chan result, 1)
	go func() {
		coord, err := s.provider.CurrentCoordinate(ctx)
		done <- result{coord: coord, err: err}
	}()

	select {
	case <-ctx.Done():
		return entities.Coordinate{}, apperrors.NewLocationUnavailableError("location resolution timed out", providers.ErrLocationTimeout)
	case res := <-done:
		if res.err != nil {
			msg := "location unavailable"
			if errors.Is(res.err, providers.ErrLocationPermissionDenied) {
				msg = "location permission denied"
			}
			return entities.Coordinate{}, apperrors.NewLocationUnavailableError(msg, res.err)
		}
		if res.coord == nil || !res.coord.Valid() {
			return entities.Coordinate{}, apperrors.NewLocationUnavailableError("location provider returned an invalid position", nil)
		}
		return *res.coord, nil
	}
}

// Resolve returns the caller's position, or the configured fallback with
// radius filtering disabled when the position is unavailable
func (s *LocationService) Resolve(ctx context.Context) (coord entities.Coordinate, radiusEnabled bool) {
	coord, err := s.CurrentCoordinate(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Debug().Err(err).Msg("using fallback coordinate")
		return s.fallback, false
	}
	return coord, true
}

// Fallback returns the default coordinate
func (s *LocationService) Fallback() entities.Coordinate {
	return s.fallback
}

// DistanceKm returns the great-circle distance between a and b
func (s *LocationService) DistanceKm(a, b entities.Coordinate) float64 {
	return geo.DistanceKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}
