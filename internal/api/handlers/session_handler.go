package handlers

import (
	"net/http"

	"github.com/zatekoja/localservices/internal/application/services"
	"github.com/zatekoja/localservices/internal/domain/entities"
)

// SessionHandler opens and closes user sessions and edits session settings
type SessionHandler struct {
	sessions *services.SessionManager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *services.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type sessionResponse struct {
	UserID      string        `json:"user_id"`
	Role        entities.Role `json:"role"`
	RadiusKm    int           `json:"radius_km"`
	UnreadCount int           `json:"unread_count"`
}

func newSessionResponse(s *services.Session) sessionResponse {
	return sessionResponse{
		UserID:      s.UserID,
		Role:        s.Role,
		RadiusKm:    s.RadiusKm(),
		UnreadCount: s.Notifications().UnreadCount(),
	}
}

// Open handles POST /api/sessions
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	session, err := h.sessions.Open(r.Context(), caller.UserID, caller.Role)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, newSessionResponse(session))
}

// Close handles DELETE /api/sessions
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	h.sessions.Close(caller.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// GetRadius handles GET /api/settings/radius
func (h *SessionHandler) GetRadius(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"radius_km": session.RadiusKm()})
}

type radiusRequest struct {
	RadiusKm int `json:"radius_km"`
}

// SetRadius handles PUT /api/settings/radius
func (h *SessionHandler) SetRadius(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	var payload radiusRequest
	if err := decodeJSON(r, &payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := session.SetRadiusKm(r.Context(), payload.RadiusKm); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"radius_km": session.RadiusKm()})
}

// sessionFor returns the caller's session, opening it on first use
func sessionFor(w http.ResponseWriter, r *http.Request, sessions *services.SessionManager) (*services.Session, bool) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return nil, false
	}
	if session, ok := sessions.Get(caller.UserID); ok && session.Role == caller.Role {
		return session, true
	}
	session, err := sessions.Open(r.Context(), caller.UserID, caller.Role)
	if err != nil {
		respondWithAppError(w, r, err)
		return nil, false
	}
	return session, true
}

