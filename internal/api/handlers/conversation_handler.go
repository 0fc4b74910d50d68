package handlers

import (
	"net/http"
	"strconv"

	"github.com/zatekoja/localservices/internal/application/services"
)

// ConversationHandler handles conversation and message requests
type ConversationHandler struct {
	chat     *services.ChatSessionService
	messages *services.MessageService
	limiter  *RateLimiter
}

// NewConversationHandler creates a new conversation handler. limiter may be nil.
func NewConversationHandler(chat *services.ChatSessionService, messages *services.MessageService, limiter *RateLimiter) *ConversationHandler {
	return &ConversationHandler{
		chat:     chat,
		messages: messages,
		limiter:  limiter,
	}
}

type createConversationRequest struct {
	OtherUserID string `json:"other_user_id"`
	MyName      string `json:"my_name"`
	OtherName   string `json:"other_name"`
}

// CreateOrGet handles POST /api/conversations
func (h *ConversationHandler) CreateOrGet(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var payload createConversationRequest
	if err := decodeJSON(r, &payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	id, err := h.chat.CreateOrGetConversation(r.Context(), caller.UserID, payload.OtherUserID, payload.MyName, payload.OtherName)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"id": id})
}

// List handles GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	conversations, err := h.chat.ListConversations(r.Context(), caller.UserID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"conversations": conversations,
		"count":         len(conversations),
	})
}

// ListMessages handles GET /api/conversations/{id}/messages
func (h *ConversationHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	conversationID := r.PathValue("id")
	if _, err := h.chat.GetConversation(r.Context(), conversationID, caller.UserID); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	messages, err := h.messages.History(r.Context(), conversationID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"count":    len(messages),
	})
}

type sendMessageRequest struct {
	Text       string `json:"text"`
	SenderName string `json:"sender_name"`
}

// SendMessage handles POST /api/conversations/{id}/messages
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var payload sendMessageRequest
	if err := decodeJSON(r, &payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if allowed, retryAfter := h.limiter.Allow(r.Context(), caller.UserID); !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	msg, err := h.messages.Send(r.Context(), r.PathValue("id"), caller.UserID, payload.SenderName, payload.Text)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, msg)
}

