// Package memory provides in-process implementations of the store and event
// bus ports, used for local development and behavioural tests.
package memory

import (
	"sync"
	"time"

	"github.com/zatekoja/localservices/internal/domain/entities"
)

// Store is the shared in-memory backing for every repository view.
// Views returned by its accessors all read and write the same data.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	providers     map[string]*entities.ProviderRecord
	providerOrder []string
	users         map[string]*entities.UserProfile
	conversations map[string]*entities.Conversation
	messages      map[string][]*entities.Message
	reviews       map[string]*entities.Review
	radius        map[string]int
}

// NewStore creates an empty store using the wall clock
func NewStore() *Store {
	return &Store{
		now:           time.Now,
		providers:     make(map[string]*entities.ProviderRecord),
		users:         make(map[string]*entities.UserProfile),
		conversations: make(map[string]*entities.Conversation),
		messages:      make(map[string][]*entities.Message),
		reviews:       make(map[string]*entities.Review),
		radius:        make(map[string]int),
	}
}

// SetClock replaces the store clock
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Providers returns the provider repository view
func (s *Store) Providers() *ProviderStore { return &ProviderStore{s: s} }

// Users returns the user repository view
func (s *Store) Users() *UserStore { return &UserStore{s: s} }

// Conversations returns the conversation repository view
func (s *Store) Conversations() *ConversationStore { return &ConversationStore{s: s} }

// Messages returns the message repository view
func (s *Store) Messages() *MessageStore { return &MessageStore{s: s} }

// Reviews returns the review repository view
func (s *Store) Reviews() *ReviewStore { return &ReviewStore{s: s} }

// Settings returns the settings repository view
func (s *Store) Settings() *SettingsStore { return &SettingsStore{s: s} }

// putProviderLocked stores a provider record, keeping first-insert order. Caller holds mu.
func (s *Store) putProviderLocked(p *entities.ProviderRecord) {
	if _, exists := s.providers[p.ID]; !exists {
		s.providerOrder = append(s.providerOrder, p.ID)
	}
	cp := copyProvider(p)
	s.providers[p.ID] = cp
}

func copyProvider(p *entities.ProviderRecord) *entities.ProviderRecord {
	cp := *p
	if p.Coordinate != nil {
		c := *p.Coordinate
		cp.Coordinate = &c
	}
	return &cp
}

func copyConversation(c *entities.Conversation) *entities.Conversation {
	cp := *c
	cp.ParticipantIDs = append([]string(nil), c.ParticipantIDs...)
	cp.ParticipantNames = make(map[string]string, len(c.ParticipantNames))
	for k, v := range c.ParticipantNames {
		cp.ParticipantNames[k] = v
	}
	return &cp
}

func copyUser(u *entities.UserProfile) *entities.UserProfile {
	cp := *u
	if u.Provider != nil {
		p := *u.Provider
		if u.Provider.Coordinate != nil {
			c := *u.Provider.Coordinate
			p.Coordinate = &c
		}
		cp.Provider = &p
	}
	return &cp
}
