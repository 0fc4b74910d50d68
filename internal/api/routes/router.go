package routes

import (
	"net/http"

	"github.com/zatekoja/localservices/internal/api/handlers"
	"github.com/zatekoja/localservices/internal/api/middleware"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	"github.com/zatekoja/localservices/internal/loaders"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	discoveryHandler    *handlers.DiscoveryHandler
	sessionHandler      *handlers.SessionHandler
	conversationHandler *handlers.ConversationHandler
	notificationHandler *handlers.NotificationHandler
	reviewHandler       *handlers.ReviewHandler
	profileHandler      *handlers.ProfileHandler
	sseHandler          *handlers.SSEHandler

	userRepo repositories.UserRepository
	metrics  *observability.Metrics
}

// NewRouter creates a new router. Nil handlers leave their routes unmounted.
func NewRouter(
	discoveryHandler *handlers.DiscoveryHandler,
	sessionHandler *handlers.SessionHandler,
	conversationHandler *handlers.ConversationHandler,
	notificationHandler *handlers.NotificationHandler,
	reviewHandler *handlers.ReviewHandler,
	profileHandler *handlers.ProfileHandler,
	sseHandler *handlers.SSEHandler,
	userRepo repositories.UserRepository,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                 http.NewServeMux(),
		discoveryHandler:    discoveryHandler,
		sessionHandler:      sessionHandler,
		conversationHandler: conversationHandler,
		notificationHandler: notificationHandler,
		reviewHandler:       reviewHandler,
		profileHandler:      profileHandler,
		sseHandler:          sseHandler,
		userRepo:            userRepo,
		metrics:             metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	if r.discoveryHandler != nil {
		r.mux.HandleFunc("GET /api/providers/discover", r.discoveryHandler.Discover)
		r.mux.HandleFunc("POST /api/providers/discover/refresh", r.discoveryHandler.Refresh)
	}

	if r.sessionHandler != nil {
		r.mux.HandleFunc("POST /api/sessions", r.sessionHandler.Open)
		r.mux.HandleFunc("DELETE /api/sessions", r.sessionHandler.Close)
		r.mux.HandleFunc("GET /api/settings/radius", r.sessionHandler.GetRadius)
		r.mux.HandleFunc("PUT /api/settings/radius", r.sessionHandler.SetRadius)
	}

	if r.conversationHandler != nil {
		r.mux.HandleFunc("POST /api/conversations", r.conversationHandler.CreateOrGet)
		r.mux.HandleFunc("GET /api/conversations", r.conversationHandler.List)
		r.mux.HandleFunc("GET /api/conversations/{id}/messages", r.conversationHandler.ListMessages)
		r.mux.HandleFunc("POST /api/conversations/{id}/messages", r.conversationHandler.SendMessage)
	}

	if r.notificationHandler != nil {
		r.mux.HandleFunc("GET /api/notifications", r.notificationHandler.List)
		r.mux.HandleFunc("POST /api/notifications/read-all", r.notificationHandler.MarkAllRead)
		r.mux.HandleFunc("POST /api/notifications/{id}/read", r.notificationHandler.MarkRead)
	}

	if r.reviewHandler != nil {
		r.mux.HandleFunc("POST /api/providers/{id}/reviews", r.reviewHandler.Submit)
		r.mux.HandleFunc("GET /api/providers/{id}/reviews", r.reviewHandler.List)
	}

	if r.profileHandler != nil {
		r.mux.HandleFunc("GET /api/profile", r.profileHandler.Me)
		r.mux.HandleFunc("PUT /api/profile", r.profileHandler.Save)
		r.mux.HandleFunc("GET /api/profiles/{id}", r.profileHandler.Get)
	}

	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/conversations/{id}/messages", r.sseHandler.StreamMessages)
		r.mux.HandleFunc("GET /api/stream/notifications", r.sseHandler.StreamNotifications)
		r.mux.HandleFunc("GET /api/stream/stats", r.sseHandler.Stats)
	}

	// Applied in reverse order: the last wrapper runs first.
	var handler http.Handler = r.mux
	if r.userRepo != nil {
		handler = loaders.Middleware(r.userRepo)(handler)
	}
	handler = middleware.DeviceLocationMiddleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.IdentityMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so preflights never reach the handlers
	handler = middleware.CORSMiddleware(handler)

	return handler
}
