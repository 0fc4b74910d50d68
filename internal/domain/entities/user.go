package entities

import (
	"errors"
	"time"
)

// Role discriminates the profile variant
type Role string

const (
	RoleProvider Role = "provider"
	RoleClient   Role = "client"
)

// UserProfile is a marketplace user. Provider-only fields live in Provider,
// which must be nil for clients.
type UserProfile struct {
	ID          string           `json:"id" db:"id"`
	Role        Role             `json:"role" db:"role"`
	DisplayName string           `json:"display_name" db:"display_name"`
	Phone       string           `json:"phone,omitempty" db:"phone"`
	Provider    *ProviderDetails `json:"provider,omitempty" db:"-"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at" db:"updated_at"`
}

// ProviderDetails holds the fields only a provider profile carries
type ProviderDetails struct {
	ServiceType        string             `json:"service_type"`
	Neighborhood       string             `json:"neighborhood"`
	Coordinate         *Coordinate        `json:"coordinate,omitempty"`
	AvailabilityStatus AvailabilityStatus `json:"availability_status"`
	Bio                string             `json:"bio,omitempty"`
}

var (
	ErrMissingID           = errors.New("profile id is required")
	ErrMissingDisplayName  = errors.New("display name is required")
	ErrUnknownRole         = errors.New("role must be provider or client")
	ErrMissingProvider     = errors.New("provider profile requires service type, neighborhood and availability")
	ErrClientWithProvider  = errors.New("client profile must not carry provider fields")
	ErrInvalidAvailability = errors.New("availability must be available or busy")
)

// Validate checks the required field set of the profile's role
func (u *UserProfile) Validate() error {
	if u.ID == "" {
		return ErrMissingID
	}
	if u.DisplayName == "" {
		return ErrMissingDisplayName
	}

	switch u.Role {
	case RoleClient:
		if u.Provider != nil {
			return ErrClientWithProvider
		}
	case RoleProvider:
		p := u.Provider
		if p == nil || p.ServiceType == "" || p.Neighborhood == "" || p.AvailabilityStatus == "" {
			return ErrMissingProvider
		}
		if !p.AvailabilityStatus.Valid() {
			return ErrInvalidAvailability
		}
		if p.Coordinate != nil && !p.Coordinate.Valid() {
			return errors.New("provider coordinate out of range")
		}
	default:
		return ErrUnknownRole
	}
	return nil
}

// ProfileComplete reports whether the profile passes validation
func (u *UserProfile) ProfileComplete() bool {
	return u.Validate() == nil
}
