package geolocation

import (
	"context"
	"fmt"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/pkg/config"
)

type ctxKey string

const deviceLocationKey ctxKey = "device_location"

// WithDeviceLocation attaches the position reported by the caller's device
func WithDeviceLocation(ctx context.Context, coord entities.Coordinate) context.Context {
	return context.WithValue(ctx, deviceLocationKey, coord)
}

// DeviceLocationFromContext returns the device position attached to ctx, if any
func DeviceLocationFromContext(ctx context.Context) (entities.Coordinate, bool) {
	coord, ok := ctx.Value(deviceLocationKey).(entities.Coordinate)
	return coord, ok
}

// RequestLocationProvider reads the position the client sent with the request.
// A request without one is treated as a denied permission.
type RequestLocationProvider struct{}

// NewRequestLocationProvider creates a new request-scoped location provider
func NewRequestLocationProvider() providers.LocationProvider {
	return &RequestLocationProvider{}
}

// CurrentCoordinate returns the device position carried by ctx
func (p *RequestLocationProvider) CurrentCoordinate(ctx context.Context) (*entities.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return nil, providers.ErrLocationTimeout
	}
	coord, ok := DeviceLocationFromContext(ctx)
	if !ok {
		return nil, providers.ErrLocationPermissionDenied
	}
	return &coord, nil
}

// StaticLocationProvider always reports the same position
type StaticLocationProvider struct {
	coord entities.Coordinate
}

// NewStaticLocationProvider creates a provider pinned to coord
func NewStaticLocationProvider(coord entities.Coordinate) providers.LocationProvider {
	return &StaticLocationProvider{coord: coord}
}

// CurrentCoordinate returns the fixed position
func (p *StaticLocationProvider) CurrentCoordinate(ctx context.Context) (*entities.Coordinate, error) {
	coord := p.coord
	return &coord, nil
}

// NewProvider selects the location provider named in config
func NewProvider(cfg config.GeolocationConfig) (providers.LocationProvider, error) {
	switch cfg.Provider {
	case "", "request":
		return NewRequestLocationProvider(), nil
	case "static":
		return NewStaticLocationProvider(entities.Coordinate{
			Latitude:  cfg.DefaultLatitude,
			Longitude: cfg.DefaultLongitude,
		}), nil
	default:
		return nil, fmt.Errorf("unknown geolocation provider %q", cfg.Provider)
	}
}
