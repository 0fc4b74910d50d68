package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

const defaultReviewFeedLimit = 50

// NotificationSnapshot is the feed as seen at one point in time
type NotificationSnapshot struct {
	Events      []entities.NotificationEvent `json:"events"`
	UnreadCount int                          `json:"unread_count"`
}

// NotificationAggregator merges the user's conversation and review sources
// into one feed ordered by occurredAt, newest first.
//
// Each source update replaces every event of its kind. A read mark holds the
// source version it was taken on and survives a replacement only while that
// version is current; newer data for the same source shows up unread again.
// Marks set here are shared with every other aggregator of the same user
// through the event bus and the optional read mark repository.
type NotificationAggregator struct {
	instanceID       string
	userID           string
	role             entities.Role
	conversationRepo repositories.ConversationRepository
	reviewRepo       repositories.ReviewRepository
	readRepo         repositories.NotificationReadRepository
	eventBus         providers.EventBus
	reviewLimit      int

	mu       sync.RWMutex
	byKind   map[entities.NotificationKind][]entities.NotificationEvent
	marks    map[string]string
	feed     []entities.NotificationEvent
	unread   int
	watchers map[chan struct{}]struct{}

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopped   chan struct{}
}

// NewNotificationAggregator creates an aggregator for one user session.
// Review events are only collected for providers.
func NewNotificationAggregator(
	userID string,
	role entities.Role,
	conversationRepo repositories.ConversationRepository,
	reviewRepo repositories.ReviewRepository,
	eventBus providers.EventBus,
) *NotificationAggregator {
	return &NotificationAggregator{
		instanceID:       uuid.NewString(),
		userID:           userID,
		role:             role,
		conversationRepo: conversationRepo,
		reviewRepo:       reviewRepo,
		eventBus:         eventBus,
		reviewLimit:      defaultReviewFeedLimit,
		byKind:           make(map[entities.NotificationKind][]entities.NotificationEvent),
		marks:            make(map[string]string),
		watchers:         make(map[chan struct{}]struct{}),
		stopped:          make(chan struct{}),
	}
}

// WithReadMarks persists read marks in repo and loads them on Start
func (a *NotificationAggregator) WithReadMarks(repo repositories.NotificationReadRepository) *NotificationAggregator {
	a.readRepo = repo
	return a
}

type readMarksPayload struct {
	Origin string                          `json:"origin"`
	Marks  []entities.NotificationReadMark `json:"marks"`
}

// Start subscribes to both sources and loads their current state. Each
// change signal on a source triggers a fresh query of that source.
func (a *NotificationAggregator) Start(ctx context.Context) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()
	if a.cancel != nil {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	logger := observability.LoggerFromContext(ctx)

	type source struct {
		channel string
		refresh func(context.Context) error
	}
	sources := []source{{
		channel: providers.UserConversationsChannel(a.userID),
		refresh: a.RefreshMessages,
	}}
	if a.collectsReviews() {
		sources = append(sources, source{
			channel: providers.UserReviewsChannel(a.userID),
			refresh: a.RefreshReviews,
		})
	}

	feeds := make([]<-chan *entities.ChangeEvent, 0, len(sources))
	if a.eventBus != nil {
		for _, src := range sources {
			events, err := a.eventBus.Subscribe(runCtx, src.channel)
			if err != nil {
				cancel()
				return fmt.Errorf("failed to subscribe to %s: %w", src.channel, err)
			}
			feeds = append(feeds, events)
		}
	}

	var reads <-chan *entities.ChangeEvent
	if a.eventBus != nil {
		channel := providers.UserNotificationReadsChannel(a.userID)
		events, err := a.eventBus.Subscribe(runCtx, channel)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}
		reads = events
	}

	if a.readRepo != nil {
		marks, err := a.readRepo.GetReadMarks(runCtx, a.userID)
		if err != nil {
			logger.Warn().Err(err).Str("user_id", a.userID).Msg("failed to load notification read marks")
		}
		a.mu.Lock()
		for id, version := range marks {
			a.marks[id] = version
		}
		a.mu.Unlock()
	}

	for _, src := range sources {
		if err := src.refresh(runCtx); err != nil {
			logger.Warn().Err(err).Str("channel", src.channel).Msg("initial notification load failed")
		}
	}

	for i, events := range feeds {
		refresh := sources[i].refresh
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.follow(runCtx, events, refresh)
		}()
	}
	if reads != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.followReads(runCtx, reads)
		}()
	}

	a.cancel = cancel
	return nil
}

func (a *NotificationAggregator) follow(ctx context.Context, events <-chan *entities.ChangeEvent, refresh func(context.Context) error) {
	logger := observability.LoggerFromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			if err := refresh(ctx); err != nil && ctx.Err() == nil {
				logger.Warn().Err(err).Str("user_id", a.userID).Msg("failed to refresh notification source")
			}
		}
	}
}

func (a *NotificationAggregator) followReads(ctx context.Context, events <-chan *entities.ChangeEvent) {
	logger := observability.LoggerFromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			var payload readMarksPayload
			if err := event.Decode(&payload); err != nil {
				logger.Warn().Err(err).Str("user_id", a.userID).Msg("invalid read marks event")
				continue
			}
			if payload.Origin == a.instanceID {
				continue
			}
			a.ApplyReadMarks(payload.Marks)
		}
	}
}

// Stop releases both source subscriptions and ends every watcher
func (a *NotificationAggregator) Stop() {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if a.cancel != nil {
		a.cancel()
		a.wg.Wait()
	}
	select {
	case <-a.stopped:
	default:
		close(a.stopped)
	}
}

func (a *NotificationAggregator) collectsReviews() bool {
	return a.role == entities.RoleProvider && a.reviewRepo != nil
}

// RefreshMessages re-queries the user's conversations and replaces the message events
func (a *NotificationAggregator) RefreshMessages(ctx context.Context) error {
	conversations, err := a.conversationRepo.ListByParticipant(ctx, a.userID)
	if err != nil {
		return err
	}
	a.ApplyMessageSnapshot(conversations)
	return nil
}

// RefreshReviews re-queries the reviews addressed to the user and replaces the review events
func (a *NotificationAggregator) RefreshReviews(ctx context.Context) error {
	if !a.collectsReviews() {
		return nil
	}
	reviews, err := a.reviewRepo.ListForProvider(ctx, a.userID, a.reviewLimit)
	if err != nil {
		return err
	}
	a.ApplyReviewSnapshot(reviews)
	return nil
}

// ApplyMessageSnapshot replaces the message events with one per conversation.
// Conversations without messages, or whose last message the user sent, yield none.
func (a *NotificationAggregator) ApplyMessageSnapshot(conversations []*entities.Conversation) {
	events := make([]entities.NotificationEvent, 0, len(conversations))
	for _, c := range conversations {
		if c == nil || c.LastMessageText == "" || c.LastMessageSenderID == a.userID {
			continue
		}
		title := c.ParticipantNames[c.OtherParticipant(a.userID)]
		if title == "" {
			title = "Nova mensagem"
		}
		events = append(events, entities.NotificationEvent{
			ID:         entities.NotificationID(entities.NotificationKindMessage, c.ID),
			Kind:       entities.NotificationKindMessage,
			SourceID:   c.ID,
			Title:      title,
			Body:       c.LastMessageText,
			OccurredAt: c.LastMessageAt,
			Version:    strconv.FormatInt(c.MessageCount, 10),
		})
	}
	a.ReplaceKind(entities.NotificationKindMessage, events)
}

// ApplyReviewSnapshot replaces the review events with one per review
func (a *NotificationAggregator) ApplyReviewSnapshot(reviews []*entities.Review) {
	events := make([]entities.NotificationEvent, 0, len(reviews))
	for _, r := range reviews {
		if r == nil {
			continue
		}
		title := "Nova avaliação"
		if r.ReviewerName != "" {
			title = "Nova avaliação de " + r.ReviewerName
		}
		body := fmt.Sprintf("%d estrelas", r.Rating)
		if r.Comment != "" {
			body += ": " + r.Comment
		}
		events = append(events, entities.NotificationEvent{
			ID:         entities.NotificationID(entities.NotificationKindReview, r.ID),
			Kind:       entities.NotificationKindReview,
			SourceID:   r.ID,
			Title:      title,
			Body:       body,
			OccurredAt: r.CreatedAt,
			Version:    fmt.Sprintf("%s|%d|%s", r.CreatedAt.UTC().Format(time.RFC3339Nano), r.Rating, r.Comment),
		})
	}
	a.ReplaceKind(entities.NotificationKindReview, events)
}

// ReplaceKind swaps every held event of kind for fresh. Within fresh, the
// newest entry per sourceId wins. Events without a version are versioned by
// their occurredAt.
func (a *NotificationAggregator) ReplaceKind(kind entities.NotificationKind, fresh []entities.NotificationEvent) {
	latest := make(map[string]entities.NotificationEvent, len(fresh))
	order := make([]string, 0, len(fresh))
	for _, e := range fresh {
		e.Kind = kind
		e.ID = entities.NotificationID(kind, e.SourceID)
		if e.Version == "" {
			e.Version = e.OccurredAt.UTC().Format(time.RFC3339Nano)
		}
		prev, seen := latest[e.SourceID]
		if !seen {
			order = append(order, e.SourceID)
		}
		if !seen || e.OccurredAt.After(prev.OccurredAt) {
			latest[e.SourceID] = e
		}
	}

	events := make([]entities.NotificationEvent, 0, len(order))
	for _, sourceID := range order {
		events = append(events, latest[sourceID])
	}

	a.mu.Lock()
	prefix := string(kind) + ":"
	for id := range a.marks {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if _, ok := latest[strings.TrimPrefix(id, prefix)]; !ok {
			delete(a.marks, id)
		}
	}
	for _, old := range a.byKind[kind] {
		current := latest[old.SourceID]
		if a.marks[old.ID] == old.Version && current.Version != old.Version {
			delete(a.marks, old.ID)
		}
	}
	a.byKind[kind] = events
	a.rebuildLocked()
	a.mu.Unlock()

	a.notify()
}

// rebuildLocked recombines all kinds, applies read marks and resorts
func (a *NotificationAggregator) rebuildLocked() {
	total := 0
	for _, events := range a.byKind {
		total += len(events)
	}

	feed := make([]entities.NotificationEvent, 0, total)
	unread := 0
	for _, events := range a.byKind {
		for _, e := range events {
			version, ok := a.marks[e.ID]
			e.Read = ok && version == e.Version
			if !e.Read {
				unread++
			}
			feed = append(feed, e)
		}
	}

	sort.Slice(feed, func(i, j int) bool {
		if !feed[i].OccurredAt.Equal(feed[j].OccurredAt) {
			return feed[i].OccurredAt.After(feed[j].OccurredAt)
		}
		return feed[i].ID < feed[j].ID
	})

	a.feed = feed
	a.unread = unread
}

// Feed returns the merged feed, newest first
func (a *NotificationAggregator) Feed() []entities.NotificationEvent {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]entities.NotificationEvent(nil), a.feed...)
}

// UnreadCount returns the number of unread events
func (a *NotificationAggregator) UnreadCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.unread
}

// Snapshot returns the feed together with its unread count
func (a *NotificationAggregator) Snapshot() NotificationSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return NotificationSnapshot{
		Events:      append([]entities.NotificationEvent(nil), a.feed...),
		UnreadCount: a.unread,
	}
}

// MarkRead marks a single event as read
func (a *NotificationAggregator) MarkRead(ctx context.Context, id string) error {
	a.mu.Lock()
	var marked []entities.NotificationReadMark
	for _, e := range a.feed {
		if e.ID == id {
			a.marks[id] = e.Version
			marked = append(marked, entities.NotificationReadMark{ID: id, Version: e.Version})
			break
		}
	}
	if len(marked) > 0 {
		a.rebuildLocked()
	}
	a.mu.Unlock()

	if len(marked) == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("notification %s not found", id))
	}
	a.notify()
	a.shareReadMarks(ctx, marked)
	return nil
}

// MarkAllRead marks every held event as read
func (a *NotificationAggregator) MarkAllRead(ctx context.Context) {
	a.mu.Lock()
	marked := make([]entities.NotificationReadMark, 0, len(a.feed))
	for _, e := range a.feed {
		a.marks[e.ID] = e.Version
		marked = append(marked, entities.NotificationReadMark{ID: e.ID, Version: e.Version})
	}
	a.rebuildLocked()
	a.mu.Unlock()

	a.notify()
	a.shareReadMarks(ctx, marked)
}

// ApplyReadMarks records marks set by another session of the same user
func (a *NotificationAggregator) ApplyReadMarks(marks []entities.NotificationReadMark) {
	if len(marks) == 0 {
		return
	}
	a.mu.Lock()
	for _, m := range marks {
		a.marks[m.ID] = m.Version
	}
	a.rebuildLocked()
	a.mu.Unlock()

	a.notify()
}

// shareReadMarks persists the mark set and tells the user's other aggregators.
// Failures only cost other sessions the update, so they are logged.
func (a *NotificationAggregator) shareReadMarks(ctx context.Context, marked []entities.NotificationReadMark) {
	if len(marked) == 0 {
		return
	}
	logger := observability.LoggerFromContext(ctx)

	if a.readRepo != nil {
		a.mu.RLock()
		all := make(map[string]string, len(a.marks))
		for id, version := range a.marks {
			all[id] = version
		}
		a.mu.RUnlock()
		if err := a.readRepo.SaveReadMarks(ctx, a.userID, all); err != nil {
			logger.Warn().Err(err).Str("user_id", a.userID).Msg("failed to save notification read marks")
		}
	}

	if a.eventBus == nil {
		return
	}
	event, err := entities.NewChangeEvent(entities.ChangeEventNotificationsRead, a.userID,
		readMarksPayload{Origin: a.instanceID, Marks: marked})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to build read marks event")
		return
	}
	if err := a.eventBus.Publish(ctx, providers.UserNotificationReadsChannel(a.userID), event); err != nil {
		logger.Warn().Err(err).Str("user_id", a.userID).Msg("failed to publish read marks")
	}
}

// Watch streams a snapshot now and after every change. Intermediate changes
// may be coalesced; the latest state is always delivered.
func (a *NotificationAggregator) Watch() *Subscription[NotificationSnapshot] {
	signal := make(chan struct{}, 1)
	signal <- struct{}{}

	a.mu.Lock()
	a.watchers[signal] = struct{}{}
	a.mu.Unlock()

	sub := newSubscription[NotificationSnapshot]()
	sub.run(func() {
		defer func() {
			a.mu.Lock()
			delete(a.watchers, signal)
			a.mu.Unlock()
		}()
		for {
			select {
			case <-sub.Done():
				return
			case <-a.stopped:
				return
			case <-signal:
				if !sub.send(a.Snapshot()) {
					return
				}
			}
		}
	})
	return sub
}

func (a *NotificationAggregator) notify() {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for signal := range a.watchers {
		select {
		case signal <- struct{}{}:
		default:
		}
	}
}

// FormatRelativeTime renders how long ago occurredAt was, floor-divided:
// under a minute "Agora", then minutes, hours and days.
func FormatRelativeTime(now, occurredAt time.Time) string {
	elapsed := now.Sub(occurredAt)
	switch {
	case elapsed < time.Minute:
		return "Agora"
	case elapsed < time.Hour:
		return fmt.Sprintf("%d min atrás", int(elapsed/time.Minute))
	case elapsed < 24*time.Hour:
		return fmt.Sprintf("%d h atrás", int(elapsed/time.Hour))
	default:
		return fmt.Sprintf("%d d atrás", int(elapsed/(24*time.Hour)))
	}
}
