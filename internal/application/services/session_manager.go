package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

// SessionDependencies are the collaborators shared by every session
type SessionDependencies struct {
	Discovery        *DiscoveryService
	Location         *LocationService
	Settings         repositories.SettingsRepository
	ConversationRepo repositories.ConversationRepository
	ReviewRepo       repositories.ReviewRepository
	ReadMarks        repositories.NotificationReadRepository
	EventBus         providers.EventBus
	DefaultRadiusKm  int
}

// SessionManager owns the per-user session state
type SessionManager struct {
	deps     SessionDependencies
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates a new session manager
func NewSessionManager(deps SessionDependencies) *SessionManager {
	if deps.DefaultRadiusKm == 0 {
		deps.DefaultRadiusKm = entities.DefaultRadiusKm
	}
	return &SessionManager{
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session on login or resume: the saved search radius is read
// and the notification aggregator starts. Opening an already open session
// with the same role returns it unchanged. The radius lookup and aggregator
// start run without holding the manager lock.
func (m *SessionManager) Open(ctx context.Context, userID string, role entities.Role) (*Session, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user id is required")
	}
	if role != entities.RoleProvider && role != entities.RoleClient {
		return nil, apperrors.NewValidationError("role must be provider or client")
	}

	if existing, ok := m.Get(userID); ok && existing.Role == role {
		return existing, nil
	}

	radius := m.deps.DefaultRadiusKm
	if m.deps.Settings != nil {
		saved, ok, err := m.deps.Settings.GetSearchRadius(ctx, userID)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to read saved radius, using default")
		} else if ok {
			radius = entities.ClampRadius(saved)
		}
	}

	aggregator := NewNotificationAggregator(userID, role, m.deps.ConversationRepo, m.deps.ReviewRepo, m.deps.EventBus)
	if m.deps.ReadMarks != nil {
		aggregator.WithReadMarks(m.deps.ReadMarks)
	}
	if err := aggregator.Start(ctx); err != nil {
		return nil, apperrors.NewInternalError("failed to start notifications", err)
	}

	session := &Session{
		UserID:     userID,
		Role:       role,
		deps:       &m.deps,
		radiusKm:   radius,
		aggregator: aggregator,
	}

	m.mu.Lock()
	existing, ok := m.sessions[userID]
	if ok && existing.Role == role {
		m.mu.Unlock()
		aggregator.Stop()
		return existing, nil
	}
	m.sessions[userID] = session
	m.mu.Unlock()

	if ok {
		existing.close()
	}
	observability.LoggerFromContext(ctx).Info().Str("role", string(role)).Int("radius_km", radius).Msg("session opened")
	return session, nil
}

// Get returns the open session of userID
func (m *SessionManager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// IsOnline reports whether userID has a session open in this process
func (m *SessionManager) IsOnline(userID string) bool {
	_, ok := m.Get(userID)
	return ok
}

// Close tears the session down on logout or background
func (m *SessionManager) Close(userID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if ok {
		s.close()
	}
	return ok
}

// CloseAll tears every session down
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

// DiscoveryParams are the user-chosen discovery filters. A zero RadiusKm
// uses the session radius.
type DiscoveryParams struct {
	RadiusKm           int
	ServiceFilter      string
	NeighborhoodFilter string
	FreeText           string
	ResultCap          int
}

// DiscoveryResult is one ranked provider list and how it was produced
type DiscoveryResult struct {
	Providers     []*entities.RankedProvider `json:"providers"`
	Origin        entities.Coordinate        `json:"origin"`
	RadiusKm      int                        `json:"radius_km"`
	RadiusEnabled bool                       `json:"radius_enabled"`
	Stale         bool                       `json:"stale"`
}

// Session is the transient state of one signed-in user
type Session struct {
	UserID string
	Role   entities.Role

	deps       *SessionDependencies
	aggregator *NotificationAggregator

	mu         sync.Mutex
	radiusKm   int
	lastParams *DiscoveryParams
	last       *DiscoveryResult
}

// RadiusKm returns the session's search radius
func (s *Session) RadiusKm() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.radiusKm
}

// SetRadiusKm validates and persists a new search radius
func (s *Session) SetRadiusKm(ctx context.Context, km int) error {
	if km < entities.MinRadiusKm || km > entities.MaxRadiusKm {
		return apperrors.NewValidationError(fmt.Sprintf("radius must be between %d and %d km", entities.MinRadiusKm, entities.MaxRadiusKm))
	}
	if s.deps.Settings != nil {
		if err := s.deps.Settings.SetSearchRadius(ctx, s.UserID, km); err != nil {
			return apperrors.NewInternalError("failed to save radius", err)
		}
	}

	s.mu.Lock()
	s.radiusKm = km
	s.mu.Unlock()
	return nil
}

// Discover resolves the caller's position and ranks providers around it.
// Without a position the fallback coordinate is reported and no radius is
// applied. On DiscoveryUnavailable the last good list is returned marked
// stale, together with the error.
func (s *Session) Discover(ctx context.Context, params DiscoveryParams) (*DiscoveryResult, error) {
	radius := params.RadiusKm
	if radius == 0 {
		radius = s.RadiusKm()
	}

	coord, radiusEnabled := s.deps.Location.Resolve(ctx)
	query := entities.DiscoveryQuery{
		RadiusKm:           radius,
		ServiceFilter:      params.ServiceFilter,
		NeighborhoodFilter: params.NeighborhoodFilter,
		FreeText:           params.FreeText,
		ResultCap:          params.ResultCap,
	}
	if radiusEnabled {
		query.Origin = &coord
	}

	ranked, err := s.deps.Discovery.ListCandidates(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastParams = &params

	if err != nil {
		if !apperrors.IsType(err, apperrors.ErrorTypeDiscoveryUnavailable) || s.last == nil {
			return nil, err
		}
		stale := *s.last
		stale.Stale = true
		return &stale, err
	}

	result := &DiscoveryResult{
		Providers:     ranked,
		Origin:        coord,
		RadiusKm:      entities.ClampRadius(radius),
		RadiusEnabled: radiusEnabled,
	}
	s.last = result
	return result, nil
}

// Refresh reruns the last discovery. It is the manual retry after DiscoveryUnavailable.
func (s *Session) Refresh(ctx context.Context) (*DiscoveryResult, error) {
	s.mu.Lock()
	params := DiscoveryParams{}
	if s.lastParams != nil {
		params = *s.lastParams
	}
	s.mu.Unlock()
	return s.Discover(ctx, params)
}

// LastResult returns the last successfully loaded discovery result, if any
func (s *Session) LastResult() (*DiscoveryResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil, false
	}
	result := *s.last
	return &result, true
}

// Notifications returns the session's notification aggregator
func (s *Session) Notifications() *NotificationAggregator {
	return s.aggregator
}

func (s *Session) close() {
	s.aggregator.Stop()
	s.mu.Lock()
	s.last = nil
	s.lastParams = nil
	s.mu.Unlock()
}
