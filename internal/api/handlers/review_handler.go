package handlers

import (
	"net/http"
	"strconv"

	"github.com/zatekoja/localservices/internal/application/services"
)

const defaultReviewListLimit = 20

// ReviewHandler handles provider review requests
type ReviewHandler struct {
	reviews *services.ReviewService
	limiter *RateLimiter
}

// NewReviewHandler creates a new review handler. limiter may be nil.
func NewReviewHandler(reviews *services.ReviewService, limiter *RateLimiter) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, limiter: limiter}
}

type submitReviewRequest struct {
	Rating       int    `json:"rating"`
	Comment      string `json:"comment"`
	ReviewerName string `json:"reviewer_name"`
}

// Submit handles POST /api/providers/{id}/reviews
func (h *ReviewHandler) Submit(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var payload submitReviewRequest
	if err := decodeJSON(r, &payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if allowed, retryAfter := h.limiter.Allow(r.Context(), caller.UserID); !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(retryAfter)))
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	review, err := h.reviews.Submit(r.Context(), r.PathValue("id"), caller.UserID, payload.ReviewerName, payload.Rating, payload.Comment)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, review)
}

// List handles GET /api/providers/{id}/reviews
func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit")
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if limit <= 0 || limit > 100 {
		limit = defaultReviewListLimit
	}

	reviews, err := h.reviews.ListForProvider(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"reviews": reviews,
		"count":   len(reviews),
	})
}
