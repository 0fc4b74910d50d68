package handlers

import (
	"net/http"
	"strings"

	"github.com/zatekoja/localservices/internal/api/middleware"
	"github.com/zatekoja/localservices/internal/application/services"
	"github.com/zatekoja/localservices/internal/domain/entities"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

// DiscoveryHandler serves provider discovery
type DiscoveryHandler struct {
	sessions  *services.SessionManager
	discovery *services.DiscoveryService
	location  *services.LocationService
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(sessions *services.SessionManager, discovery *services.DiscoveryService, location *services.LocationService) *DiscoveryHandler {
	return &DiscoveryHandler{
		sessions:  sessions,
		discovery: discovery,
		location:  location,
	}
}

type discoveryResponse struct {
	*services.DiscoveryResult
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

// Discover handles GET /api/providers/discover
func (h *DiscoveryHandler) Discover(w http.ResponseWriter, r *http.Request) {
	params, err := discoveryParams(r)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	var result *services.DiscoveryResult
	if session := h.openSession(r); session != nil {
		result, err = session.Discover(r.Context(), params)
	} else {
		result, err = h.discoverAnonymous(r, params)
	}

	if err != nil {
		// A stale list is still worth showing, next to the failure.
		if result != nil && result.Stale {
			respondWithJSON(w, http.StatusOK, discoveryResponse{
				DiscoveryResult: result,
				Count:           len(result.Providers),
				Error:           err.Error(),
			})
			return
		}
		respondWithAppError(w, r, err)
		return
	}

	respondWithJSON(w, http.StatusOK, discoveryResponse{
		DiscoveryResult: result,
		Count:           len(result.Providers),
	})
}

// Refresh handles POST /api/providers/discover/refresh, the manual retry
func (h *DiscoveryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	session := h.openSession(r)
	if session == nil {
		respondWithError(w, http.StatusNotFound, "no open session")
		return
	}
	result, err := session.Refresh(r.Context())
	if err != nil && (result == nil || !result.Stale) {
		respondWithAppError(w, r, err)
		return
	}
	resp := discoveryResponse{DiscoveryResult: result, Count: len(result.Providers)}
	if err != nil {
		resp.Error = err.Error()
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *DiscoveryHandler) openSession(r *http.Request) *services.Session {
	if h.sessions == nil {
		return nil
	}
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		return nil
	}
	session, ok := h.sessions.Get(caller.UserID)
	if !ok {
		return nil
	}
	return session
}

// discoverAnonymous ranks without session state: no saved radius, no stale fallback
func (h *DiscoveryHandler) discoverAnonymous(r *http.Request, params services.DiscoveryParams) (*services.DiscoveryResult, error) {
	coord, radiusEnabled := h.location.Resolve(r.Context())
	query := entities.DiscoveryQuery{
		RadiusKm:           params.RadiusKm,
		ServiceFilter:      params.ServiceFilter,
		NeighborhoodFilter: params.NeighborhoodFilter,
		FreeText:           params.FreeText,
		ResultCap:          params.ResultCap,
	}
	if radiusEnabled {
		query.Origin = &coord
	}

	ranked, err := h.discovery.ListCandidates(r.Context(), query)
	if err != nil {
		return nil, err
	}
	radius := params.RadiusKm
	if radius == 0 {
		radius = entities.DefaultRadiusKm
	}
	return &services.DiscoveryResult{
		Providers:     ranked,
		Origin:        coord,
		RadiusKm:      entities.ClampRadius(radius),
		RadiusEnabled: radiusEnabled,
	}, nil
}

func discoveryParams(r *http.Request) (services.DiscoveryParams, error) {
	q := r.URL.Query()
	radius, err := intParam(r, "radius")
	if err != nil {
		return services.DiscoveryParams{}, err
	}
	limit, err := intParam(r, "limit")
	if err != nil {
		return services.DiscoveryParams{}, err
	}
	if radius != 0 && (radius < entities.MinRadiusKm || radius > entities.MaxRadiusKm) {
		return services.DiscoveryParams{}, apperrors.NewValidationError("radius must be between 1 and 50 km")
	}
	return services.DiscoveryParams{
		RadiusKm:           radius,
		ServiceFilter:      strings.TrimSpace(q.Get("service")),
		NeighborhoodFilter: strings.TrimSpace(q.Get("neighborhood")),
		FreeText:           strings.TrimSpace(q.Get("q")),
		ResultCap:          limit,
	}, nil
}
