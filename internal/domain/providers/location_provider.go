package providers

import (
	"context"
	"errors"

	"github.com/zatekoja/localservices/internal/domain/entities"
)

var (
	// ErrLocationPermissionDenied is returned when the device withholds its position
	ErrLocationPermissionDenied = errors.New("location permission denied")

	// ErrLocationTimeout is returned when resolution does not finish in time
	ErrLocationTimeout = errors.New("location resolution timed out")
)

// LocationProvider resolves the caller's current position
type LocationProvider interface {
	CurrentCoordinate(ctx context.Context) (*entities.Coordinate, error)
}
