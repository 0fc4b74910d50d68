package handlers

import (
	"net/http"
	"time"

	"github.com/zatekoja/localservices/internal/application/services"
	"github.com/zatekoja/localservices/internal/domain/entities"
)

// NotificationHandler serves the caller's notification feed
type NotificationHandler struct {
	sessions *services.SessionManager
	now      func() time.Time
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(sessions *services.SessionManager) *NotificationHandler {
	return &NotificationHandler{sessions: sessions, now: time.Now}
}

// notificationView is a feed entry with its display-ready age
type notificationView struct {
	entities.NotificationEvent
	TimeAgo string `json:"time_ago"`
}

type feedResponse struct {
	Events      []notificationView `json:"events"`
	UnreadCount int                `json:"unread_count"`
}

func newFeedResponse(snap services.NotificationSnapshot, now time.Time) feedResponse {
	views := make([]notificationView, len(snap.Events))
	for i, e := range snap.Events {
		views[i] = notificationView{
			NotificationEvent: e,
			TimeAgo:           services.FormatRelativeTime(now, e.OccurredAt),
		}
	}
	return feedResponse{Events: views, UnreadCount: snap.UnreadCount}
}

// List handles GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, newFeedResponse(session.Notifications().Snapshot(), h.now()))
}

// MarkRead handles POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	if err := session.Notifications().MarkRead(r.Context(), r.PathValue("id")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int{"unread_count": session.Notifications().UnreadCount()})
}

// MarkAllRead handles POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFor(w, r, h.sessions)
	if !ok {
		return
	}
	session.Notifications().MarkAllRead(r.Context())
	respondWithJSON(w, http.StatusOK, map[string]int{"unread_count": session.Notifications().UnreadCount()})
}
