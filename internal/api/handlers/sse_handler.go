package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/zatekoja/localservices/internal/application/services"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
)

const defaultHeartbeatInterval = 30 * time.Second

// NotificationSources are the collaborators needed to build an aggregator
// for callers without an open session in this process
type NotificationSources struct {
	ConversationRepo repositories.ConversationRepository
	ReviewRepo       repositories.ReviewRepository
	ReadMarks        repositories.NotificationReadRepository
	EventBus         providers.EventBus
}

// SSEHandler streams conversation messages and notification feeds as Server-Sent Events
type SSEHandler struct {
	chat      *services.ChatSessionService
	messages  *services.MessageService
	sessions  *services.SessionManager
	sources   NotificationSources
	metrics   *observability.Metrics
	heartbeat time.Duration
	now       func() time.Time
	clients   atomic.Int64
}

// NewSSEHandler creates a new SSE handler. sessions may be nil, in which case
// every notification stream runs its own aggregator.
func NewSSEHandler(
	chat *services.ChatSessionService,
	messages *services.MessageService,
	sessions *services.SessionManager,
	sources NotificationSources,
	metrics *observability.Metrics,
) *SSEHandler {
	return &SSEHandler{
		chat:      chat,
		messages:  messages,
		sessions:  sessions,
		sources:   sources,
		metrics:   metrics,
		heartbeat: defaultHeartbeatInterval,
		now:       time.Now,
	}
}

// SetHeartbeatInterval overrides the keep-alive period
func (h *SSEHandler) SetHeartbeatInterval(d time.Duration) {
	if d > 0 {
		h.heartbeat = d
	}
}

// StreamMessages handles GET /api/stream/conversations/{id}/messages.
// The full history is replayed first, then each new message as it arrives.
func (h *SSEHandler) StreamMessages(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	conversationID := r.PathValue("id")
	if conversationID == "" {
		respondWithError(w, http.StatusBadRequest, "conversation ID is required")
		return
	}
	if _, err := h.chat.GetConversation(r.Context(), conversationID, caller.UserID); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub, err := h.messages.Subscribe(r.Context(), conversationID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	defer sub.Cancel()

	logger := observability.LoggerFromContext(r.Context())
	observability.TrackStream(r.Context(), h.metrics, "messages", 1)
	defer observability.TrackStream(r.Context(), h.metrics, "messages", -1)
	h.clients.Add(1)
	defer h.clients.Add(-1)

	setStreamHeaders(w)
	h.sendEvent(w, "connected", map[string]interface{}{
		"conversation_id": conversationID,
		"timestamp":       h.now().UTC(),
	})
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Str("conversation_id", conversationID).Msg("client disconnected from message stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{"timestamp": h.now().UTC()})
			flusher.Flush()
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			h.sendEvent(w, "message", msg)
			flusher.Flush()
		}
	}
}

// StreamNotifications handles GET /api/stream/notifications. A snapshot of
// the feed is sent on connect and after every change.
func (h *SSEHandler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var aggregator *services.NotificationAggregator
	if h.sessions != nil {
		if session, ok := h.sessions.Get(caller.UserID); ok && session.Role == caller.Role {
			aggregator = session.Notifications()
		}
	}
	if aggregator == nil {
		aggregator = services.NewNotificationAggregator(caller.UserID, caller.Role,
			h.sources.ConversationRepo, h.sources.ReviewRepo, h.sources.EventBus)
		if h.sources.ReadMarks != nil {
			aggregator.WithReadMarks(h.sources.ReadMarks)
		}
		if err := aggregator.Start(r.Context()); err != nil {
			respondWithAppError(w, r, err)
			return
		}
		defer aggregator.Stop()
	}

	watch := aggregator.Watch()
	defer watch.Cancel()

	logger := observability.LoggerFromContext(r.Context())
	observability.TrackStream(r.Context(), h.metrics, "notifications", 1)
	defer observability.TrackStream(r.Context(), h.metrics, "notifications", -1)
	h.clients.Add(1)
	defer h.clients.Add(-1)

	setStreamHeaders(w)
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Msg("client disconnected from notification stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{"timestamp": h.now().UTC()})
			flusher.Flush()
		case snap, ok := <-watch.C():
			if !ok {
				return
			}
			h.sendEvent(w, "notifications", newFeedResponse(snap, h.now()))
			flusher.Flush()
		}
	}
}

// GetClientCount returns the number of open streams
func (h *SSEHandler) GetClientCount() int {
	return int(h.clients.Load())
}

// Stats handles GET /api/stream/stats
func (h *SSEHandler) Stats(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]int{"connected_clients": h.GetClientCount()})
}

func setStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}

// sendEvent sends an SSE event to the client
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		observability.GetLogger().Error().Err(err).Str("event", eventType).Msg("failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}
