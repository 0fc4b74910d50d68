package geolocation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/localservices/internal/adapters/providers/geolocation"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/pkg/config"
)

func TestRequestLocationProvider(t *testing.T) {
	provider := geolocation.NewRequestLocationProvider()

	t.Run("missing position is a denied permission", func(t *testing.T) {
		_, err := provider.CurrentCoordinate(context.Background())
		assert.ErrorIs(t, err, providers.ErrLocationPermissionDenied)
	})

	t.Run("returns the device position", func(t *testing.T) {
		ctx := geolocation.WithDeviceLocation(context.Background(), entities.Coordinate{Latitude: -22.92, Longitude: -43.23})
		coord, err := provider.CurrentCoordinate(ctx)
		require.NoError(t, err)
		assert.Equal(t, -22.92, coord.Latitude)
	})

	t.Run("expired context times out", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := provider.CurrentCoordinate(ctx)
		assert.ErrorIs(t, err, providers.ErrLocationTimeout)
	})
}

func TestNewProvider(t *testing.T) {
	static, err := geolocation.NewProvider(config.GeolocationConfig{
		Provider:         "static",
		DefaultLatitude:  -22.9068,
		DefaultLongitude: -43.1729,
	})
	require.NoError(t, err)
	coord, err := static.CurrentCoordinate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -43.1729, coord.Longitude)

	_, err = geolocation.NewProvider(config.GeolocationConfig{Provider: "gps"})
	assert.Error(t, err)
}
