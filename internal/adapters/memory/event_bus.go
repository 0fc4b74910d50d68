package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/providers"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
)

var _ providers.EventBus = (*EventBus)(nil)

const subscriberBuffer = 100

// EventBus is an in-process EventBus
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *entities.ChangeEvent]struct{}
	closed      bool
}

// NewEventBus creates an in-process event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string]map[chan *entities.ChangeEvent]struct{}),
	}
}

// Publish delivers event to every current subscriber of channel, dropping it for full subscribers
func (b *EventBus) Publish(ctx context.Context, channel string, event *entities.ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.New("event bus closed")
	}

	for subscriber := range b.subscribers[channel] {
		e := *event
		select {
		case subscriber <- &e:
		default:
			observability.LoggerFromContext(ctx).Warn().Str("channel", channel).Str("event_id", event.ID).
				Msg("subscriber channel full, dropping event")
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is cancelled
func (b *EventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.ChangeEvent, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errors.New("event bus closed")
	}
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[chan *entities.ChangeEvent]struct{})
	}
	eventChan := make(chan *entities.ChangeEvent, subscriberBuffer)
	b.subscribers[channel][eventChan] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(channel, eventChan)
	}()
	return eventChan, nil
}

// SubscriberCount returns the number of live subscribers on channel
func (b *EventBus) SubscriberCount(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[channel])
}

func (b *EventBus) remove(channel string, eventChan chan *entities.ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[channel]
	if !ok {
		return
	}
	if _, ok := subs[eventChan]; !ok {
		return
	}
	delete(subs, eventChan)
	close(eventChan)
	if len(subs) == 0 {
		delete(b.subscribers, channel)
	}
}

// Close closes every subscription
func (b *EventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for channel, subs := range b.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(b.subscribers, channel)
	}
	return nil
}
