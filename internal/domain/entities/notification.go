package entities

import "time"

// NotificationKind identifies the source of a notification
type NotificationKind string

const (
	NotificationKindMessage NotificationKind = "message"
	NotificationKindReview  NotificationKind = "review"
	NotificationKindService NotificationKind = "service"
)

// NotificationEvent is one entry of the merged notification feed
type NotificationEvent struct {
	ID         string           `json:"id"`
	Kind       NotificationKind `json:"kind"`
	SourceID   string           `json:"source_id"`
	Title      string           `json:"title"`
	Body       string           `json:"body"`
	OccurredAt time.Time        `json:"occurred_at"`
	Read       bool             `json:"read"`

	// Version identifies the state of the source this event was built from.
	// A read mark only covers the version it was taken on.
	Version string `json:"-"`
}

// NotificationReadMark records that one version of a feed entry was read
type NotificationReadMark struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

// NotificationID returns the feed id for a (kind, sourceId) pair
func NotificationID(kind NotificationKind, sourceID string) string {
	return string(kind) + ":" + sourceID
}
