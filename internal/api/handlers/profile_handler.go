package handlers

import (
	"net/http"

	"github.com/zatekoja/localservices/internal/application/services"
	"github.com/zatekoja/localservices/internal/domain/entities"
)

// ProfileHandler handles user profile requests
type ProfileHandler struct {
	profiles *services.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

type saveProfileRequest struct {
	DisplayName string                    `json:"display_name"`
	Phone       string                    `json:"phone"`
	Provider    *entities.ProviderDetails `json:"provider,omitempty"`
}

// Me handles GET /api/profile
func (h *ProfileHandler) Me(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	profile, err := h.profiles.Get(r.Context(), caller.UserID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, profile)
}

// Get handles GET /api/profiles/{id}
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	// Contact details stay private to the owner.
	profile.Phone = ""
	respondWithJSON(w, http.StatusOK, profile)
}

// Save handles PUT /api/profile. The role is the caller's role.
func (h *ProfileHandler) Save(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var payload saveProfileRequest
	if err := decodeJSON(r, &payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	profile := &entities.UserProfile{
		ID:          caller.UserID,
		Role:        caller.Role,
		DisplayName: payload.DisplayName,
		Phone:       payload.Phone,
	}
	if caller.Role == entities.RoleProvider {
		profile.Provider = payload.Provider
	}

	saved, err := h.profiles.Save(r.Context(), profile)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, saved)
}
