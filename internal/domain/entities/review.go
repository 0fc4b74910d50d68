package entities

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxReviewCommentLength bounds review comments, in characters
const MaxReviewCommentLength = 500

var reviewNamespace = uuid.MustParse("b3f0d7e4-8a61-4c2f-a5d9-71c3e2b09f46")

// Review is a client's rating of a provider. A reviewer holds at most one
// review per provider; resubmitting replaces it.
type Review struct {
	ID           string    `json:"id" db:"id"`
	ProviderID   string    `json:"provider_id" db:"provider_id"`
	ReviewerID   string    `json:"reviewer_id" db:"reviewer_id"`
	ReviewerName string    `json:"reviewer_name" db:"reviewer_name"`
	Rating       int       `json:"rating" db:"rating"` // 1-5
	Comment      string    `json:"comment" db:"comment"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

var (
	ErrInvalidRating  = errors.New("rating must be between 1 and 5")
	ErrCommentTooLong = errors.New("comment exceeds 500 characters")
)

// ReviewID returns the stable id of the review a reviewer holds for a provider
func ReviewID(providerID, reviewerID string) string {
	return uuid.NewSHA1(reviewNamespace, []byte(providerID+"\x00"+reviewerID)).String()
}

// Validate checks rating and comment bounds
func (r *Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidRating
	}
	if utf8.RuneCountInString(r.Comment) > MaxReviewCommentLength {
		return ErrCommentTooLong
	}
	return nil
}
