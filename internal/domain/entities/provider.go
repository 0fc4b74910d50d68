package entities

import (
	"fmt"
	"time"
)

// AvailabilityStatus represents whether a provider is taking work.
// The empty value means the provider never set it.
type AvailabilityStatus string

const (
	AvailabilityAvailable AvailabilityStatus = "available"
	AvailabilityBusy      AvailabilityStatus = "busy"
)

// Valid reports whether the status is one of the known values
func (s AvailabilityStatus) Valid() bool {
	return s == AvailabilityAvailable || s == AvailabilityBusy
}

// Discovery bounds
const (
	MinRadiusKm      = 1
	MaxRadiusKm      = 50
	DefaultRadiusKm  = 5
	DefaultResultCap = 50
)

// ProviderRecord is the discovery view of a provider profile
type ProviderRecord struct {
	ID                 string             `json:"id" db:"id"`
	DisplayName        string             `json:"display_name" db:"display_name"`
	ServiceType        string             `json:"service_type" db:"service_type"`
	Neighborhood       string             `json:"neighborhood" db:"neighborhood"`
	Coordinate         *Coordinate        `json:"coordinate,omitempty" db:"-"`
	RatingAverage      float64            `json:"rating_average" db:"rating_average"`
	ReviewCount        int                `json:"review_count" db:"review_count"`
	AvailabilityStatus AvailabilityStatus `json:"availability_status" db:"availability_status"`
	ProfileComplete    bool               `json:"profile_complete" db:"profile_complete"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// HasRequiredFields reports whether the record carries the fields discovery needs
func (p *ProviderRecord) HasRequiredFields() bool {
	return p.DisplayName != "" && p.ServiceType != "" && p.Neighborhood != ""
}

// RankedProvider is a provider with its computed distance from the query origin
type RankedProvider struct {
	ProviderRecord
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// DiscoveryQuery describes a provider discovery request
type DiscoveryQuery struct {
	Origin             *Coordinate
	RadiusKm           int
	ServiceFilter      string
	NeighborhoodFilter string
	FreeText           string
	ResultCap          int
}

// Validate rejects radius and cap values outside the accepted range.
// Zero values are allowed and replaced by Normalize.
func (q DiscoveryQuery) Validate() error {
	if q.RadiusKm != 0 && (q.RadiusKm < MinRadiusKm || q.RadiusKm > MaxRadiusKm) {
		return fmt.Errorf("radius must be between %d and %d km", MinRadiusKm, MaxRadiusKm)
	}
	if q.ResultCap < 0 {
		return fmt.Errorf("result cap must not be negative")
	}
	if q.Origin != nil && !q.Origin.Valid() {
		return fmt.Errorf("origin out of range")
	}
	return nil
}

// Normalize fills unset fields with the given defaults
func (q DiscoveryQuery) Normalize(defaultRadiusKm, defaultCap int) DiscoveryQuery {
	if q.RadiusKm == 0 {
		q.RadiusKm = defaultRadiusKm
	}
	q.RadiusKm = ClampRadius(q.RadiusKm)
	if q.ResultCap <= 0 {
		q.ResultCap = defaultCap
	}
	if q.ResultCap <= 0 {
		q.ResultCap = DefaultResultCap
	}
	return q
}

// ClampRadius bounds a radius to [MinRadiusKm, MaxRadiusKm]
func ClampRadius(km int) int {
	if km < MinRadiusKm {
		return MinRadiusKm
	}
	if km > MaxRadiusKm {
		return MaxRadiusKm
	}
	return km
}
