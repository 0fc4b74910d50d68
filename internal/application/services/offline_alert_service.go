package services

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	"github.com/zatekoja/localservices/internal/infrastructure/observability"
)

const (
	alertPreviewLength = 80
	alertSendTimeout   = 15 * time.Second
)

// AlertSender delivers an out-of-app alert to a phone number
type AlertSender interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendTemplate(ctx context.Context, to, templateName, languageCode string, parameters []string) (string, error)
}

// Presence tells whether a user is currently in the app
type Presence interface {
	IsOnline(userID string) bool
}

// OfflineAlertOptions configures OfflineAlertService
type OfflineAlertOptions struct {
	// TemplateName selects a WhatsApp template; empty sends plain text
	TemplateName string
	LanguageCode string
	// Cooldown is the minimum gap between alerts for one conversation and recipient
	Cooldown time.Duration
}

// OfflineAlertService alerts message recipients who have no open session.
// It observes MessageService and never blocks a send.
type OfflineAlertService struct {
	userRepo repositories.UserRepository
	sender   AlertSender
	presence Presence
	opts     OfflineAlertOptions
	now      func() time.Time

	mu        sync.Mutex
	lastSent  map[string]time.Time
	lastSweep time.Time
	wg        sync.WaitGroup
}

var _ MessageObserver = (*OfflineAlertService)(nil)

// NewOfflineAlertService creates a new offline alert service
func NewOfflineAlertService(userRepo repositories.UserRepository, sender AlertSender, presence Presence, opts OfflineAlertOptions) *OfflineAlertService {
	if opts.LanguageCode == "" {
		opts.LanguageCode = "pt_BR"
	}
	return &OfflineAlertService{
		userRepo: userRepo,
		sender:   sender,
		presence: presence,
		opts:     opts,
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// MessageSent schedules an alert for the recipient when they are offline
func (s *OfflineAlertService) MessageSent(ctx context.Context, conversation *entities.Conversation, msg *entities.Message) {
	recipient := conversation.OtherParticipant(msg.SenderID)
	if recipient == "" || (s.presence != nil && s.presence.IsOnline(recipient)) {
		return
	}
	if !s.reserve(recipient + ":" + conversation.ID) {
		return
	}

	// The request that sent the message may finish before the alert does.
	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertSendTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.deliver(alertCtx, recipient, msg)
	}()
}

// reserve claims the alert slot for key, honouring the cooldown. Entries
// whose cooldown has passed are swept at most once per cooldown.
func (s *OfflineAlertService) reserve(key string) bool {
	if s.opts.Cooldown <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if now.Sub(s.lastSweep) >= s.opts.Cooldown {
		for k, last := range s.lastSent {
			if now.Sub(last) >= s.opts.Cooldown {
				delete(s.lastSent, k)
			}
		}
		s.lastSweep = now
	}
	if last, ok := s.lastSent[key]; ok && now.Sub(last) < s.opts.Cooldown {
		return false
	}
	s.lastSent[key] = now
	return true
}

func (s *OfflineAlertService) deliver(ctx context.Context, recipientID string, msg *entities.Message) {
	logger := observability.LoggerFromContext(ctx)

	profile, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		logger.Debug().Err(err).Str("recipient_id", recipientID).Msg("no profile for offline alert")
		return
	}
	if profile.Phone == "" {
		return
	}

	sender := msg.SenderName
	if sender == "" {
		sender = "Nova mensagem"
	}
	preview := truncateRunes(msg.Text, alertPreviewLength)

	if s.opts.TemplateName != "" {
		_, err = s.sender.SendTemplate(ctx, profile.Phone, s.opts.TemplateName, s.opts.LanguageCode, []string{sender, preview})
	} else {
		_, err = s.sender.SendText(ctx, profile.Phone, fmt.Sprintf("%s: %s", sender, preview))
	}
	if err != nil {
		logger.Warn().Err(err).Str("recipient_id", recipientID).Msg("failed to send offline alert")
		return
	}
	logger.Debug().Str("recipient_id", recipientID).Str("conversation_id", msg.ConversationID).Msg("offline alert sent")
}

// Wait blocks until every scheduled alert has finished
func (s *OfflineAlertService) Wait() {
	s.wg.Wait()
}

func truncateRunes(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max-1]) + "…"
}
