package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/localservices/internal/application/services"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

var (
	rioCentro = entities.Coordinate{Latitude: -22.9068, Longitude: -43.1729}
	tijuca    = entities.Coordinate{Latitude: -22.9035, Longitude: -43.2096}
)

type stubLocationProvider struct {
	coord *entities.Coordinate
	err   error
	delay time.Duration
}

func (s *stubLocationProvider) CurrentCoordinate(ctx context.Context) (*entities.Coordinate, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.coord, s.err
}

func TestLocationService_CurrentCoordinate(t *testing.T) {
	ctx := context.Background()

	t.Run("returns provider position", func(t *testing.T) {
		svc := services.NewLocationService(&stubLocationProvider{coord: &tijuca}, rioCentro, time.Second)
		coord, err := svc.CurrentCoordinate(ctx)
		require.NoError(t, err)
		assert.Equal(t, tijuca, coord)
	})

	t.Run("denied permission is LocationUnavailable", func(t *testing.T) {
		svc := services.NewLocationService(&stubLocationProvider{err: providers.ErrLocationPermissionDenied}, rioCentro, time.Second)
		_, err := svc.CurrentCoordinate(ctx)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeLocationUnavailable))
		assert.True(t, errors.Is(err, providers.ErrLocationPermissionDenied))
	})

	t.Run("slow provider times out", func(t *testing.T) {
		svc := services.NewLocationService(&stubLocationProvider{coord: &tijuca, delay: time.Second}, rioCentro, 20*time.Millisecond)
		_, err := svc.CurrentCoordinate(ctx)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeLocationUnavailable))
	})

	t.Run("invalid reading is rejected", func(t *testing.T) {
		svc := services.NewLocationService(&stubLocationProvider{coord: &entities.Coordinate{Latitude: 120}}, rioCentro, time.Second)
		_, err := svc.CurrentCoordinate(ctx)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeLocationUnavailable))
	})
}

func TestLocationService_ResolveFallsBack(t *testing.T) {
	svc := services.NewLocationService(&stubLocationProvider{err: providers.ErrLocationPermissionDenied}, rioCentro, time.Second)

	coord, radiusEnabled := svc.Resolve(context.Background())
	assert.Equal(t, rioCentro, coord)
	assert.False(t, radiusEnabled)

	svc = services.NewLocationService(&stubLocationProvider{coord: &tijuca}, rioCentro, time.Second)
	coord, radiusEnabled = svc.Resolve(context.Background())
	assert.Equal(t, tijuca, coord)
	assert.True(t, radiusEnabled)
}

func TestLocationService_DistanceKm(t *testing.T) {
	svc := services.NewLocationService(&stubLocationProvider{}, rioCentro, time.Second)

	d := svc.DistanceKm(rioCentro, tijuca)
	assert.InDelta(t, 3.77, d, 0.1)
	assert.Equal(t, d, svc.DistanceKm(tijuca, rioCentro))
	assert.InDelta(t, 0, svc.DistanceKm(rioCentro, rioCentro), 1e-9)
}
